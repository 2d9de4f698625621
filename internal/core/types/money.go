// Package types provides the money type used by the ledger.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits kept on every stored amount.
const MoneyScale int32 = 2

var hundred = decimal.NewFromInt(100)

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

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Round rounds to MoneyScale digits, half away from zero (HALF_UP for
// the non-negative amounts the ledger stores).
func Round(m Money) Money {
	return m.Round(MoneyScale)
}

// Percent returns round(base × pct / 100).
func Percent(base, pct Money) Money {
	return Round(base.Mul(pct).Div(hundred))
}

// Times returns round(price × qty).
func Times(price Money, qty int64) Money {
	return Round(price.Mul(decimal.NewFromInt(qty)))
}

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// IsValidPercent reports whether 0 < pct <= 100.
func IsValidPercent(pct Money) bool {
	return pct.IsPositive() && pct.LessThanOrEqual(hundred)
}
