// Package ranking builds the two preference tables the matcher consumes:
// for every producer, eligible consumers ranked by descending potential
// revenue; for every consumer, eligible producers ranked by ascending cost.
//
// Both sides use the same metric, grossEnergy × producerPrice, evaluated on
// price-normalized books. Eligibility and the metric are distance-dependent
// through the transmission-loss estimate. Everything here is deterministic
// and pure: no I/O, no randomness, ties keep original book order.
package ranking

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/enermatch/settlement-engine/internal/geo"
	"github.com/enermatch/settlement-engine/internal/model"
)

// Rankings holds the preference tables for one round. Read-only to the
// matcher; recomputed fresh every round.
type Rankings struct {
	// ProducerPrefs maps a producer wallet to eligible consumer wallets,
	// highest potential revenue first.
	ProducerPrefs map[string][]string

	// ConsumerPrefs maps a consumer wallet to eligible producer wallets,
	// lowest cost first.
	ConsumerPrefs map[string][]string

	// ProducerOrder lists producer wallets in offer-book order, so matcher
	// iteration stays deterministic regardless of map ordering.
	ProducerOrder []string

	// ConsumerOrder lists consumer wallets in order-book order.
	ConsumerOrder []string
}

// pairing is one eligible producer/consumer combination with its metric.
type pairing struct {
	wallet string
	metric decimal.Decimal
}

// evalPair evaluates a single producer/consumer combination on normalized
// records. Returns the ranking metric and whether the pair is eligible:
//
//	(a) grossEnergy <= producerAmount
//	(b) consumerPrice * consumerAmount >= producerPrice * grossEnergy
//	(c) consumerGrade <= producerGrade (lexicographic, literal)
//
// A pair whose coordinates fail to parse is simply ineligible; ingestion
// validation makes that unreachable for book records.
func evalPair(producer, consumer model.Record) (decimal.Decimal, bool) {
	dist, err := geo.Distance(producer.Lat, producer.Long, consumer.Lat, consumer.Long)
	if err != nil {
		return decimal.Zero, false
	}

	gross := geo.GrossEnergy(consumer.Amount, dist)
	if gross.GreaterThan(producer.Amount) {
		return decimal.Zero, false
	}
	budget := consumer.Price.Mul(consumer.Amount)
	metric := producer.Price.Mul(gross)
	if budget.LessThan(metric) {
		return decimal.Zero, false
	}
	if consumer.Grade > producer.Grade {
		return decimal.Zero, false
	}
	return metric, true
}

// Eligible reports whether a producer/consumer pair passes all three
// eligibility conditions. Records must already be price-normalized.
func Eligible(producer, consumer model.Record) bool {
	_, ok := evalPair(producer, consumer)
	return ok
}

// Build computes both preference tables from normalized books. Offers and
// orders are walked in book order; stable sorts keep encounter order on
// metric ties.
func Build(offers, orders []model.Record) *Rankings {
	r := &Rankings{
		ProducerPrefs: make(map[string][]string, len(offers)),
		ConsumerPrefs: make(map[string][]string, len(orders)),
		ProducerOrder: make([]string, 0, len(offers)),
		ConsumerOrder: make([]string, 0, len(orders)),
	}

	for _, offer := range offers {
		r.ProducerOrder = append(r.ProducerOrder, offer.Wallet)

		var eligible []pairing
		for _, order := range orders {
			if metric, ok := evalPair(offer, order); ok {
				eligible = append(eligible, pairing{order.Wallet, metric})
			}
		}
		// Descending revenue for the producer side.
		sort.SliceStable(eligible, func(i, j int) bool {
			return eligible[i].metric.GreaterThan(eligible[j].metric)
		})
		r.ProducerPrefs[offer.Wallet] = wallets(eligible)
	}

	for _, order := range orders {
		r.ConsumerOrder = append(r.ConsumerOrder, order.Wallet)

		var eligible []pairing
		for _, offer := range offers {
			if metric, ok := evalPair(offer, order); ok {
				eligible = append(eligible, pairing{offer.Wallet, metric})
			}
		}
		// Ascending cost for the consumer side.
		sort.SliceStable(eligible, func(i, j int) bool {
			return eligible[i].metric.LessThan(eligible[j].metric)
		})
		r.ConsumerPrefs[order.Wallet] = wallets(eligible)
	}

	return r
}

func wallets(pairings []pairing) []string {
	out := make([]string, len(pairings))
	for i, p := range pairings {
		out[i] = p.wallet
	}
	return out
}
