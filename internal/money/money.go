// Package money provides rounding helpers for fixed-point decimal arithmetic.
// Every value that ends up in an order, the ledger, or a report goes through
// one of these so the quantization rule is explicit at the call site.
package money

import (
	"github.com/shopspring/decimal"
)

// RoundUp rounds d away from zero to the given number of decimal places.
// Used for buy-side price estimates: the estimate must never be below what
// the buyer could actually pay.
func RoundUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundUp(places)
}

// RoundDown truncates d toward zero to the given number of decimal places.
// Used for sell-side estimates and for order amounts, which exchanges reject
// when they exceed the available precision.
func RoundDown(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundDown(places)
}

// Precision returns the number of significant decimal places in d.
// Trailing zeros do not count: Precision(10.3100) == 2.
func Precision(d decimal.Decimal) int32 {
	exp := d.Exponent()
	if exp >= 0 {
		return 0
	}
	// Strip trailing zeros in the coefficient so "10.50" reports 1.
	norm := d.Truncate(-exp)
	for places := -exp; places > 0; places-- {
		if norm.Equal(norm.Truncate(places - 1)) {
			continue
		}
		return places
	}
	return 0
}

// StepDown quantizes d down to a multiple of step. A zero or negative step
// leaves d untouched.
func StepDown(d, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return d
	}
	return d.Div(step).Floor().Mul(step)
}

// StepPlaces converts a precision step (0.001) to its decimal-place count (3).
// Steps that are not powers of ten fall back to the step's own precision.
func StepPlaces(step decimal.Decimal) int32 {
	if !step.IsPositive() {
		return 0
	}
	return Precision(step)
}
