// Package core holds the ledger domain types.
//
// Monetary values travel through the domain as decimals with two fractional
// digits and are persisted as integer cents, so SQL aggregation stays exact.
package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Cents converts a monetary decimal to integer cents with half-up rounding
// on the third fractional digit.
//
// Examples:
//
//	Cents(decimal.NewFromFloat(12.34))  -> 1234
//	Cents(decimal.NewFromFloat(12.345)) -> 1235
func Cents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromCents converts integer cents back to a two-digit monetary decimal.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
