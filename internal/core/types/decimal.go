// Package types provides money and quantity helpers on top of decimal.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// Quantity is a stock or labour quantity (pieces, hours).
// It shares the decimal representation with Money so that
// qty × rate never passes through floating point.
type Quantity = decimal.Decimal

// Hundred is used by percentage calculations.
var Hundred = decimal.NewFromInt(100)

// NewMoney creates a Money value from a float.
// WARNING: Use MustMoney or NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Qty creates a Quantity from an integer count.
func Qty(n int64) Quantity {
	return decimal.NewFromInt(n)
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Percent returns base × pct / 100.
func Percent(base Money, pct decimal.Decimal) Money {
	return base.Mul(pct).Div(Hundred)
}

// RoundHalfEven rounds to the given number of places using banker's rounding.
func RoundHalfEven(m Money, places int32) Money {
	return m.RoundBank(places)
}

// Sum adds all values.
func Sum(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
