// Package model defines the core domain types shared across the settlement
// engine. All monetary and energy values use shopspring/decimal — never
// float64 for money.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/enermatch/settlement-engine/internal/geo"
)

// Transfer directions. A deficit is a negative consumer refund (the consumer
// owes more than it reserved); it is surfaced as its own direction so callers
// can apply their own policy instead of the engine silently clamping.
const (
	DirectionPay     = "pay"
	DirectionRefund  = "refund"
	DirectionDeficit = "deficit"
)

var (
	// ErrMalformedGrade is returned when a sustainability grade is not a
	// single uppercase letter.
	ErrMalformedGrade = errors.New("model: sustainability grade must be a single letter A-Z")

	// ErrInvalidAmount is returned when an energy amount is not positive.
	ErrInvalidAmount = errors.New("model: energy amount must be positive")

	// ErrInvalidPrice is returned when a unit price is negative.
	ErrInvalidPrice = errors.New("model: price must not be negative")
)

// Record is one side of a listing: a producer's offer or a consumer's order.
// Both books share the same shape. Price is per kWh in the record's native
// currency; Lat and Long are fixed 9-character signed-degree strings.
type Record struct {
	Wallet   string          `json:"wallet" db:"wallet"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Price    decimal.Decimal `json:"price" db:"price"`
	Lat      string          `json:"lat" db:"lat"`
	Long     string          `json:"long" db:"long"`
	Grade    string          `json:"grade" db:"grade"`
	Currency string          `json:"currency" db:"currency"`
}

// Validate checks the fixed-format fields. A malformed record fails alone at
// ingestion; it never enters a book and so never corrupts a round.
func (r Record) Validate() error {
	if r.Wallet == "" {
		return errors.New("model: wallet is required")
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, r.Amount)
	}
	if r.Price.IsNegative() {
		return fmt.Errorf("%w: got %s", ErrInvalidPrice, r.Price)
	}
	if _, err := geo.ParseCoordinate(r.Lat); err != nil {
		return fmt.Errorf("lat: %w", err)
	}
	if _, err := geo.ParseCoordinate(r.Long); err != nil {
		return fmt.Errorf("long: %w", err)
	}
	if len(r.Grade) != 1 || r.Grade[0] < 'A' || r.Grade[0] > 'Z' {
		return fmt.Errorf("%w: got %q", ErrMalformedGrade, r.Grade)
	}
	if r.Currency == "" {
		return errors.New("model: currency is required")
	}
	return nil
}

// Match pairs a producer wallet with a consumer wallet. All committed matches
// of a round form an injective partial mapping: no wallet occupies either
// role twice.
type Match struct {
	Producer string `json:"producer"`
	Consumer string `json:"consumer"`
}

// Transfer is one immutable settlement instruction for the external execution
// collaborator. Amount is in the wallet's native currency.
type Transfer struct {
	ID        string          `json:"id" db:"id"`
	RoundID   string          `json:"round_id" db:"round_id"`
	Wallet    string          `json:"wallet" db:"wallet"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Currency  string          `json:"currency" db:"currency"`
	Direction string          `json:"direction" db:"direction"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Round records one settlement run. Balances are in reference units; the
// final balance may be negative — a modeling signal, never clamped.
type Round struct {
	ID             string          `json:"id" db:"id"`
	Offers         int             `json:"offers" db:"offers"`
	Orders         int             `json:"orders" db:"orders"`
	Matches        int             `json:"matches" db:"matches"`
	Transfers      int             `json:"transfers" db:"transfers"`
	OpeningBalance decimal.Decimal `json:"opening_balance" db:"opening_balance"`
	FinalBalance   decimal.Decimal `json:"final_balance" db:"final_balance"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
