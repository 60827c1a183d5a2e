package matching

import (
	"reflect"
	"testing"

	"github.com/enermatch/settlement-engine/internal/model"
	"github.com/enermatch/settlement-engine/internal/ranking"
)

// rankings builds a Rankings value with deterministic iteration orders.
func rankings(producerPrefs, consumerPrefs map[string][]string, producerOrder, consumerOrder []string) *ranking.Rankings {
	return &ranking.Rankings{
		ProducerPrefs: producerPrefs,
		ConsumerPrefs: consumerPrefs,
		ProducerOrder: producerOrder,
		ConsumerOrder: consumerOrder,
	}
}

func TestMatch_SinglePair(t *testing.T) {
	r := rankings(
		map[string][]string{"p": {"c"}},
		map[string][]string{"c": {"p"}},
		[]string{"p"}, []string{"c"},
	)

	matches := Match(r)
	want := []model.Match{{Producer: "p", Consumer: "c"}}
	if !reflect.DeepEqual(matches, want) {
		t.Errorf("expected %v, got %v", want, matches)
	}
}

func TestMatch_ConsumerKeepsPreferredProposer(t *testing.T) {
	// Both producers want c; c ranks p2 first. p1 proposes first (book
	// order) but is displaced when p2 proposes.
	r := rankings(
		map[string][]string{"p1": {"c"}, "p2": {"c"}},
		map[string][]string{"c": {"p2", "p1"}},
		[]string{"p1", "p2"}, []string{"c"},
	)

	matches := Match(r)
	want := []model.Match{{Producer: "p2", Consumer: "c"}}
	if !reflect.DeepEqual(matches, want) {
		t.Errorf("expected %v, got %v", want, matches)
	}
}

func TestMatch_DisplacedProducerFallsBack(t *testing.T) {
	r := rankings(
		map[string][]string{
			"p1": {"c1", "c2"},
			"p2": {"c1"},
		},
		map[string][]string{
			"c1": {"p2", "p1"},
			"c2": {"p1"},
		},
		[]string{"p1", "p2"}, []string{"c1", "c2"},
	)

	matches := Match(r)
	want := []model.Match{
		{Producer: "p1", Consumer: "c2"},
		{Producer: "p2", Consumer: "c1"},
	}
	if !reflect.DeepEqual(matches, want) {
		t.Errorf("expected %v, got %v", want, matches)
	}
}

func TestMatch_Injective(t *testing.T) {
	r := rankings(
		map[string][]string{
			"p1": {"c1", "c2"},
			"p2": {"c1", "c2"},
			"p3": {"c2", "c1"},
		},
		map[string][]string{
			"c1": {"p1", "p2", "p3"},
			"c2": {"p3", "p2", "p1"},
		},
		[]string{"p1", "p2", "p3"}, []string{"c1", "c2"},
	)

	matches := Match(r)

	producers := make(map[string]bool)
	consumers := make(map[string]bool)
	for _, m := range matches {
		if producers[m.Producer] {
			t.Errorf("producer %s matched twice", m.Producer)
		}
		if consumers[m.Consumer] {
			t.Errorf("consumer %s matched twice", m.Consumer)
		}
		producers[m.Producer] = true
		consumers[m.Consumer] = true
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches with 2 consumers, got %d", len(matches))
	}
}

func TestMatch_Stable(t *testing.T) {
	r := rankings(
		map[string][]string{
			"p1": {"c1", "c2", "c3"},
			"p2": {"c2", "c1", "c3"},
			"p3": {"c1", "c3", "c2"},
		},
		map[string][]string{
			"c1": {"p2", "p1", "p3"},
			"c2": {"p1", "p3", "p2"},
			"c3": {"p3", "p1", "p2"},
		},
		[]string{"p1", "p2", "p3"}, []string{"c1", "c2", "c3"},
	)

	matches := Match(r)
	assertStable(t, r, matches)
}

// assertStable fails if any eligible pair would rather be with each other
// than with their committed partners.
func assertStable(t *testing.T, r *ranking.Rankings, matches []model.Match) {
	t.Helper()

	matchOf := make(map[string]string)   // producer → consumer
	holderOf := make(map[string]string)  // consumer → producer
	for _, m := range matches {
		matchOf[m.Producer] = m.Consumer
		holderOf[m.Consumer] = m.Producer
	}

	rank := func(list []string, wallet string) int {
		for i, w := range list {
			if w == wallet {
				return i
			}
		}
		return len(list)
	}

	for producer, prefs := range r.ProducerPrefs {
		for _, consumer := range prefs {
			// Does the producer strictly prefer this consumer?
			current, matched := matchOf[producer]
			if matched && rank(prefs, consumer) >= rank(prefs, current) {
				continue
			}
			// Does the consumer strictly prefer this producer?
			cprefs := r.ConsumerPrefs[consumer]
			holder, held := holderOf[consumer]
			if held && rank(cprefs, producer) >= rank(cprefs, holder) {
				continue
			}
			t.Errorf("blocking pair: %s and %s prefer each other over their matches", producer, consumer)
		}
	}
}

func TestMatch_Deterministic(t *testing.T) {
	r := rankings(
		map[string][]string{
			"p1": {"c1", "c2"},
			"p2": {"c2", "c1"},
		},
		map[string][]string{
			"c1": {"p2", "p1"},
			"c2": {"p1", "p2"},
		},
		[]string{"p1", "p2"}, []string{"c1", "c2"},
	)

	first := Match(r)
	second := Match(r)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical rankings should yield identical matches: %v vs %v", first, second)
	}
}

func TestMatch_TerminatesOnOneSidedRanking(t *testing.T) {
	// Consumer c never ranked anyone. The first proposer takes it; later
	// proposers are rejected and must not spin forever.
	r := rankings(
		map[string][]string{"p1": {"c"}, "p2": {"c"}},
		map[string][]string{"c": {}},
		[]string{"p1", "p2"}, []string{"c"},
	)

	matches := Match(r)
	want := []model.Match{{Producer: "p1", Consumer: "c"}}
	if !reflect.DeepEqual(matches, want) {
		t.Errorf("expected %v, got %v", want, matches)
	}
}

func TestMatch_ExhaustedProducersStayUnmatched(t *testing.T) {
	r := rankings(
		map[string][]string{
			"p1": {"c"},
			"p2": {"c"},
			"p3": {},
		},
		map[string][]string{"c": {"p1", "p2"}},
		[]string{"p1", "p2", "p3"}, []string{"c"},
	)

	matches := Match(r)
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(matches))
	}
	if matches[0].Producer != "p1" || matches[0].Consumer != "c" {
		t.Errorf("expected p1-c (c's first preference), got %v", matches[0])
	}
}

func TestMatch_Empty(t *testing.T) {
	matches := Match(rankings(
		map[string][]string{},
		map[string][]string{},
		nil, nil,
	))
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %v", matches)
	}
}
