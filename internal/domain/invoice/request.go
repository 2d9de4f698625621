package invoice

import (
	"fmt"
	"strings"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/promo"
)

// CreateRequest is the input of Service.Create.
type CreateRequest struct {
	BranchID       id.ID
	CustomerID     *id.ID
	CustomerType   CustomerType
	CashierID      string
	Items          []ItemRequest
	Discounts      []DiscountRequest
	IdempotencyKey string
	Notes          string
}

// ItemRequest is one requested line.
type ItemRequest struct {
	ProductID id.ID
	Quantity  int64
}

// DiscountRequest is one requested discount, applied in order.
type DiscountRequest struct {
	Kind        promo.DiscountKind
	Value       types.Money
	PromoCode   string
	Description string
}

// Validate checks the request shape without touching the store.
func (r *CreateRequest) Validate() error {
	if id.IsNil(r.BranchID) {
		return apperror.NewValidation("branch is required").WithDetail("field", "branchId")
	}
	if r.CustomerType == "" {
		r.CustomerType = CustomerWalkIn
	}
	if !r.CustomerType.IsValid() {
		return apperror.NewValidation("unknown customer type").WithDetail("field", "customerType")
	}
	if len(r.Items) == 0 {
		return apperror.NewValidation("invoice must have at least one item").WithDetail("field", "items")
	}
	for i, item := range r.Items {
		if id.IsNil(item.ProductID) {
			return apperror.NewValidation(fmt.Sprintf("item %d: product is required", i+1)).
				WithDetail("field", fmt.Sprintf("items[%d].productId", i))
		}
		if item.Quantity <= 0 {
			return apperror.NewValidation(fmt.Sprintf("item %d: quantity must be greater than 0", i+1)).
				WithDetail("field", fmt.Sprintf("items[%d].quantity", i))
		}
	}
	for i, d := range r.Discounts {
		if err := d.Validate(); err != nil {
			return err.WithDetail("field", fmt.Sprintf("discounts[%d]", i))
		}
	}
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
	if len(r.IdempotencyKey) > 100 {
		return apperror.NewValidation("idempotency key must be at most 100 characters").WithDetail("field", "idempotencyKey")
	}
	return nil
}

// Validate checks one discount input.
func (d DiscountRequest) Validate() *apperror.AppError {
	switch d.Kind {
	case promo.KindPromoCode:
		if strings.TrimSpace(d.PromoCode) == "" {
			return apperror.NewValidation("Promo code is required for PROMO_CODE discount type")
		}
	case promo.KindFixedAmount:
		if !d.Value.IsPositive() {
			return apperror.NewValidation("Discount value must be greater than 0")
		}
	case promo.KindPercentage:
		if !d.Value.IsPositive() {
			return apperror.NewValidation("Discount value must be greater than 0")
		}
		if !types.IsValidPercent(d.Value) {
			return apperror.NewValidation("Percentage discount cannot exceed 100%")
		}
	default:
		return apperror.NewValidation("unknown discount type")
	}
	return nil
}
