package promo

import (
	"posledger/internal/core/types"
)

// Pricing functions. Every result is rounded to two decimals, half up.

// LineSubtotal is qty × price.
func LineSubtotal(qty int64, price types.Money) types.Money {
	return types.Times(price, qty)
}

// Tax is amount × rate / 100.
func Tax(amount, rate types.Money) types.Money {
	return types.Percent(amount, rate)
}

// FixedDiscount never exceeds the base it applies to.
func FixedDiscount(value, base types.Money) types.Money {
	if !base.IsPositive() {
		return types.Zero()
	}
	return types.Round(types.Min(value, base))
}

// PercentageDiscount is base × pct / 100.
func PercentageDiscount(base, pct types.Money) types.Money {
	if !base.IsPositive() {
		return types.Zero()
	}
	return types.Percent(base, pct)
}

// PercentageDiscountWithCap clamps the percentage discount to limit when set.
func PercentageDiscountWithCap(base, pct types.Money, limit *types.Money) types.Money {
	amount := PercentageDiscount(base, pct)
	if limit != nil && amount.GreaterThan(*limit) {
		return types.Round(*limit)
	}
	return amount
}

// PromoDiscount prices a promo code against base.
func PromoDiscount(code *Code, base types.Money) types.Money {
	switch code.Kind {
	case KindPercentage:
		return PercentageDiscountWithCap(base, code.Value, code.MaxDiscountAmount)
	default:
		return FixedDiscount(code.Value, base)
	}
}
