package ranking

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/enermatch/settlement-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// rec builds a normalized record at the given location.
func rec(wallet string, amount, price float64, lat, long, grade string) model.Record {
	return model.Record{
		Wallet:   wallet,
		Amount:   d(amount),
		Price:    d(price),
		Lat:      lat,
		Long:     long,
		Grade:    grade,
		Currency: "ALGO",
	}
}

// colocated builds a record at a fixed reference location, so distance and
// transmission loss drop out of the expected numbers.
func colocated(wallet string, amount, price float64, grade string) model.Record {
	return rec(wallet, amount, price, "+001.3143", "+103.7093", grade)
}

// --- Eligibility tests ---

func TestEligible_SupplyTooSmall(t *testing.T) {
	producer := colocated("p", 100, 1, "A")
	consumer := colocated("c", 200, 10, "A")
	if Eligible(producer, consumer) {
		t.Error("consumer demanding more than supply should be ineligible")
	}
}

func TestEligible_TransmissionLossBreaksSupply(t *testing.T) {
	// Exactly matching amounts are eligible only at zero distance: any
	// distance adds loss and pushes gross energy past the supply.
	producer := rec("p", 1000, 1, "+001.3143", "+103.7093", "A")
	near := rec("c1", 1000, 10, "+001.3143", "+103.7093", "A")
	far := rec("c2", 1000, 10, "+001.3450", "+103.9832", "A")

	if !Eligible(producer, near) {
		t.Error("colocated consumer with exact demand should be eligible")
	}
	if Eligible(producer, far) {
		t.Error("distant consumer should be ineligible once loss is added")
	}
}

func TestEligible_BudgetTooSmall(t *testing.T) {
	producer := colocated("p", 1000, 10, "A")
	consumer := colocated("c", 100, 5, "A")
	// Budget 5*100 = 500 < cost 10*100 = 1000.
	if Eligible(producer, consumer) {
		t.Error("consumer priced below producer cost should be ineligible")
	}
}

func TestEligible_GradeExclusion(t *testing.T) {
	producer := colocated("p", 1000, 1, "A")
	consumer := colocated("c", 100, 10, "B")
	// "B" > "A" lexicographically, so a B-requiring consumer never sees an
	// A-grade producer.
	if Eligible(producer, consumer) {
		t.Error("consumer grade above producer grade should be ineligible")
	}
}

func TestEligible_GradeLiteralOrdering(t *testing.T) {
	// The comparison is the literal lexicographic consumerGrade <= producerGrade:
	// an A-requiring consumer is compatible with any grade at or above "A".
	producer := colocated("p", 1000, 1, "B")
	consumer := colocated("c", 100, 10, "A")
	if !Eligible(producer, consumer) {
		t.Error("consumer grade below producer grade should be eligible")
	}
}

// --- Ranking order tests ---

func TestBuild_ProducerRanksByDescendingRevenue(t *testing.T) {
	offers := []model.Record{colocated("p", 10000, 1, "A")}
	orders := []model.Record{
		colocated("c1", 100, 10, "A"),
		colocated("c2", 200, 10, "A"),
		colocated("c3", 150, 10, "A"),
	}

	r := Build(offers, orders)
	want := []string{"c2", "c3", "c1"}
	if !reflect.DeepEqual(r.ProducerPrefs["p"], want) {
		t.Errorf("expected producer ranking %v, got %v", want, r.ProducerPrefs["p"])
	}
}

func TestBuild_ConsumerRanksByAscendingCost(t *testing.T) {
	offers := []model.Record{
		colocated("p1", 1000, 5, "A"),
		colocated("p2", 1000, 3, "A"),
		colocated("p3", 1000, 4, "A"),
	}
	orders := []model.Record{colocated("c", 100, 100, "A")}

	r := Build(offers, orders)
	want := []string{"p2", "p3", "p1"}
	if !reflect.DeepEqual(r.ConsumerPrefs["c"], want) {
		t.Errorf("expected consumer ranking %v, got %v", want, r.ConsumerPrefs["c"])
	}
}

func TestBuild_TiesKeepBookOrder(t *testing.T) {
	offers := []model.Record{colocated("p", 10000, 1, "A")}
	orders := []model.Record{
		colocated("c1", 100, 10, "A"),
		colocated("c2", 100, 10, "A"),
		colocated("c3", 100, 10, "A"),
	}

	r := Build(offers, orders)
	want := []string{"c1", "c2", "c3"}
	if !reflect.DeepEqual(r.ProducerPrefs["p"], want) {
		t.Errorf("tied metrics should keep book order %v, got %v", want, r.ProducerPrefs["p"])
	}
}

func TestBuild_OrderSlicesFollowBooks(t *testing.T) {
	offers := []model.Record{
		colocated("pA", 10000, 1, "A"),
		colocated("pB", 10000, 1000, "A"), // nobody can afford pB
	}
	orders := []model.Record{colocated("c", 100, 10, "A")}

	r := Build(offers, orders)

	if !reflect.DeepEqual(r.ProducerOrder, []string{"pA", "pB"}) {
		t.Errorf("producer order should follow offer book, got %v", r.ProducerOrder)
	}
	if !reflect.DeepEqual(r.ConsumerOrder, []string{"c"}) {
		t.Errorf("consumer order should follow order book, got %v", r.ConsumerOrder)
	}
	if len(r.ProducerPrefs["pB"]) != 0 {
		t.Errorf("pB should have no eligible consumers, got %v", r.ProducerPrefs["pB"])
	}
}

func TestBuild_Deterministic(t *testing.T) {
	offers := []model.Record{
		colocated("p1", 5000, 2, "B"),
		colocated("p2", 5000, 3, "A"),
	}
	orders := []model.Record{
		colocated("c1", 100, 10, "A"),
		colocated("c2", 300, 10, "A"),
	}

	a := Build(offers, orders)
	b := Build(offers, orders)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs should yield identical rankings")
	}
}
