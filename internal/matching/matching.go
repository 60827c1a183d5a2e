// Package matching runs producer-proposing deferred acceptance over the two
// preference tables, producing a stable one-to-one matching between producer
// and consumer wallets.
//
// Producers propose down their ranking; a consumer holds its best proposal so
// far and rejects the rest. Every rejection strictly advances a bounded
// per-producer cursor, so the run terminates within the sum of all ranking
// lengths. All state lives in a matcher value scoped to one run.
package matching

import (
	"github.com/enermatch/settlement-engine/internal/model"
	"github.com/enermatch/settlement-engine/internal/ranking"
)

// matcher holds the mutable state of one deferred-acceptance run.
type matcher struct {
	rankings *ranking.Rankings

	// consumerRank[c][p] is p's index in c's preference list, for O(1)
	// rival comparison.
	consumerRank map[string]map[string]int

	// cursor is each producer's next proposal index. Monotonically
	// non-decreasing, never past the ranking length.
	cursor map[string]int

	// holds maps a consumer to the producer currently holding it.
	holds map[string]string

	// matched marks producers currently holding a consumer.
	matched map[string]string
}

// Match computes a stable injective partial mapping from producers to
// consumers. Iteration over producers follows offer-book order, so identical
// rankings always yield identical matches.
func Match(r *ranking.Rankings) []model.Match {
	m := &matcher{
		rankings:     r,
		consumerRank: make(map[string]map[string]int, len(r.ConsumerPrefs)),
		cursor:       make(map[string]int, len(r.ProducerPrefs)),
		holds:        make(map[string]string),
		matched:      make(map[string]string),
	}
	for consumer, prefs := range r.ConsumerPrefs {
		idx := make(map[string]int, len(prefs))
		for i, producer := range prefs {
			idx[producer] = i
		}
		m.consumerRank[consumer] = idx
	}

	m.run()

	matches := make([]model.Match, 0, len(m.matched))
	for _, producer := range r.ProducerOrder {
		if consumer, ok := m.matched[producer]; ok {
			matches = append(matches, model.Match{Producer: producer, Consumer: consumer})
		}
	}
	return matches
}

// run loops proposal passes until no unmatched producer has a preference
// left. An explicit step budget (sum of ranking lengths, plus one commit per
// producer) bounds the loop even if the ranking data is malformed.
func (m *matcher) run() {
	// Every proposal either takes a free consumer or advances a cursor,
	// so total proposals cannot exceed this.
	budget := len(m.rankings.ProducerOrder) + len(m.rankings.ConsumerOrder)
	for _, prefs := range m.rankings.ProducerPrefs {
		budget += len(prefs)
	}

	steps := 0
	for steps <= budget {
		progress := false
		for _, producer := range m.rankings.ProducerOrder {
			if _, ok := m.matched[producer]; ok {
				continue
			}
			prefs := m.rankings.ProducerPrefs[producer]
			if m.cursor[producer] >= len(prefs) {
				continue
			}
			m.propose(producer, prefs[m.cursor[producer]])
			progress = true
			steps++
		}
		if !progress {
			return
		}
	}
}

// propose has producer offer itself to target. The target accepts if free or
// if it ranks the proposer ahead of its current holder; the displaced rival
// re-enters the pool with its cursor advanced.
func (m *matcher) propose(producer, target string) {
	rival, held := m.holds[target]
	if !held {
		m.commit(producer, target)
		return
	}

	if m.prefers(target, producer, rival) {
		delete(m.matched, rival)
		m.cursor[rival]++
		m.commit(producer, target)
		return
	}

	// Rejected; next preference on the next pass.
	m.cursor[producer]++
}

func (m *matcher) commit(producer, consumer string) {
	m.holds[consumer] = producer
	m.matched[producer] = consumer
}

// prefers reports whether consumer ranks challenger strictly ahead of
// incumbent. A producer absent from the consumer's ranking never wins, which
// keeps malformed one-sided rankings from pinning the loop.
func (m *matcher) prefers(consumer, challenger, incumbent string) bool {
	idx := m.consumerRank[consumer]
	ci, ok := idx[challenger]
	if !ok {
		return false
	}
	ii, ok := idx[incumbent]
	if !ok {
		return true
	}
	return ci < ii
}
