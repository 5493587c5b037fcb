// Package money converts between display prices and the integer minor units
// payment providers expect.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const minorExponent = 2

// ToMinorUnits rounds amount to the nearest cent: round(amount * 100).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(minorExponent).Round(0).IntPart()
}

// FromMinorUnits turns cents back into a decimal amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorExponent)
}

// FromFloat converts a JSON number into a decimal, rejecting negatives.
func FromFloat(v float64) (decimal.Decimal, error) {
	d := decimal.NewFromFloat(v)
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative")
	}
	return d, nil
}
