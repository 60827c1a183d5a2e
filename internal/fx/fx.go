// Package fx converts listing prices between their native currencies and the
// reference unit all comparisons are made in.
//
// Rates are static per process: reference units per one native unit. The
// default table mirrors the pooled exchanges this engine settles for.
package fx

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/enermatch/settlement-engine/internal/model"
)

var (
	// ErrUnknownCurrency is returned when a currency code has no rate.
	// Fatal to the whole normalization call: downstream comparisons are
	// meaningless without a valid reference conversion.
	ErrUnknownCurrency = errors.New("fx: unknown currency")

	// ErrInvalidRate is returned when a rate table entry is not positive.
	ErrInvalidRate = errors.New("fx: rate must be positive")
)

// RateTable maps a currency code to its reference-unit rate.
type RateTable map[string]decimal.Decimal

// DefaultRates returns the built-in rate table: 1 ETHE = 2000 reference
// units, 1 ALGO = 1.5 reference units.
func DefaultRates() RateTable {
	return RateTable{
		"ETHE": decimal.NewFromInt(2000),
		"ALGO": decimal.NewFromFloat(1.5),
	}
}

// NewRateTable validates and copies a currency→rate mapping.
func NewRateTable(rates map[string]decimal.Decimal) (RateTable, error) {
	t := make(RateTable, len(rates))
	for code, rate := range rates {
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%w: %s=%s", ErrInvalidRate, code, rate)
		}
		t[code] = rate
	}
	return t, nil
}

// Known reports whether the table has a rate for the currency code.
func (t RateTable) Known(currency string) bool {
	_, ok := t[currency]
	return ok
}

// ToReference converts a native-currency amount into reference units.
func (t RateTable) ToReference(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	rate, ok := t[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, currency)
	}
	return amount.Mul(rate), nil
}

// FromReference converts a reference-unit amount back into native currency
// using the inverse rate.
func (t RateTable) FromReference(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	rate, ok := t[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, currency)
	}
	return amount.Div(rate), nil
}

// Normalize returns a new book with every price converted to reference
// units. Amount, location, grade, and currency code are preserved; the
// currency is kept so settlement can convert back later. Any record with an
// unknown currency aborts the whole call with no partial result.
func (t RateTable) Normalize(book []model.Record) ([]model.Record, error) {
	out := make([]model.Record, 0, len(book))
	for _, r := range book {
		price, err := t.ToReference(r.Price, r.Currency)
		if err != nil {
			return nil, fmt.Errorf("normalize %s: %w", r.Wallet, err)
		}
		r.Price = price
		out = append(out, r)
	}
	return out, nil
}
