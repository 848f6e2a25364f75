// Package types provides common type aliases and utilities.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of fractional digits kept for prices,
// markups and margin percentages.
const CurrencyPlaces int32 = 2

// StoredPlaces is the scale of persisted markups and cost prices
// (NUMERIC(_, 4) columns).
const StoredPlaces int32 = 4

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Markup is the multiplier applied to a cost price (sale = cost * markup).
type Markup = decimal.Decimal

// Percent is a percentage in the 0..100 scale (83.33 means 83.33%).
type Percent = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// Hundred returns decimal 100.
func Hundred() decimal.Decimal { return hundred }

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustDecimal parses s, panics on error.
// Use only for constants and tests.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("types: invalid decimal %q: %v", s, err))
	}
	return d
}

// RoundCurrency rounds half away from zero to CurrencyPlaces,
// which is half-up for the non-negative values prices take.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// RoundStored rounds half away from zero to StoredPlaces. Markups and costs
// pass through it before a sale price is derived from them, so the stored
// row reproduces the same sale price.
func RoundStored(d decimal.Decimal) decimal.Decimal {
	return d.Round(StoredPlaces)
}

// RoundStoredPtr is RoundStored for optional patch fields. nil stays nil.
func RoundStoredPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	return Ptr(RoundStored(*d))
}

// Ptr returns a pointer to d. Handy for optional patch fields.
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
