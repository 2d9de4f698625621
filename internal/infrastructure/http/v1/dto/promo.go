package dto

import (
	"time"

	"posledger/internal/core/types"
	"posledger/internal/domain/promo"
)

// --- Request DTOs ---

// CreatePromoCodeRequest represents a request to create a promo code.
type CreatePromoCodeRequest struct {
	Code              string       `json:"code" binding:"required,max=50"`
	Description       string       `json:"description,omitempty"`
	DiscountType      string       `json:"discountType" binding:"required,oneof=FIXED_AMOUNT PERCENTAGE"`
	DiscountValue     types.Money  `json:"discountValue"`
	MaxDiscountAmount *types.Money `json:"maxDiscountAmount,omitempty"`
	MinPurchaseAmount *types.Money `json:"minPurchaseAmount,omitempty"`
	UsageLimit        *int64       `json:"usageLimit,omitempty" binding:"omitempty,gt=0"`
	ValidFrom         string       `json:"validFrom" binding:"required"`
	ValidUntil        string       `json:"validUntil" binding:"required"`
	Status            string       `json:"status,omitempty"`
}

// ToRequest converts the DTO.
func (r *CreatePromoCodeRequest) ToRequest() (promo.CreateRequest, error) {
	from, err := ParseDate("validFrom", r.ValidFrom)
	if err != nil {
		return promo.CreateRequest{}, err
	}
	until, err := ParseDate("validUntil", r.ValidUntil)
	if err != nil {
		return promo.CreateRequest{}, err
	}
	return promo.CreateRequest{
		Code:              r.Code,
		Description:       r.Description,
		Kind:              promo.DiscountKind(r.DiscountType),
		Value:             r.DiscountValue,
		MaxDiscountAmount: r.MaxDiscountAmount,
		MinPurchaseAmount: r.MinPurchaseAmount,
		UsageLimit:        r.UsageLimit,
		ValidFrom:         *from,
		ValidUntil:        *until,
		Status:            promo.Status(r.Status),
	}, nil
}

// UpdatePromoCodeRequest carries the mutable fields of a promo code.
type UpdatePromoCodeRequest struct {
	Description       *string      `json:"description,omitempty"`
	DiscountValue     *types.Money `json:"discountValue,omitempty"`
	MaxDiscountAmount *types.Money `json:"maxDiscountAmount,omitempty"`
	MinPurchaseAmount *types.Money `json:"minPurchaseAmount,omitempty"`
	UsageLimit        *int64       `json:"usageLimit,omitempty" binding:"omitempty,gt=0"`
	ValidFrom         *string      `json:"validFrom,omitempty"`
	ValidUntil        *string      `json:"validUntil,omitempty"`
	Status            *string      `json:"status,omitempty"`
	Active            *bool        `json:"active,omitempty"`
}

// ToRequest converts the DTO.
func (r *UpdatePromoCodeRequest) ToRequest() (promo.UpdateRequest, error) {
	req := promo.UpdateRequest{
		Description:       r.Description,
		Value:             r.DiscountValue,
		MaxDiscountAmount: r.MaxDiscountAmount,
		MinPurchaseAmount: r.MinPurchaseAmount,
		UsageLimit:        r.UsageLimit,
		Active:            r.Active,
	}

	var err error
	if r.ValidFrom != nil {
		if req.ValidFrom, err = ParseDate("validFrom", *r.ValidFrom); err != nil {
			return req, err
		}
	}
	if r.ValidUntil != nil {
		if req.ValidUntil, err = ParseDate("validUntil", *r.ValidUntil); err != nil {
			return req, err
		}
	}
	if r.Status != nil {
		status := promo.Status(*r.Status)
		req.Status = &status
	}
	return req, nil
}

// ValidatePromoCodeRequest asks whether a code is usable, optionally for an amount.
type ValidatePromoCodeRequest struct {
	Code           string       `json:"code" binding:"required"`
	PurchaseAmount *types.Money `json:"purchaseAmount,omitempty"`
}

// --- Response DTOs ---

// PromoValidationResponse reports a usable code and, when an amount was
// given, the discount it would grant.
type PromoValidationResponse struct {
	Valid          bool         `json:"valid"`
	PromoCode      *promo.Code  `json:"promoCode"`
	DiscountAmount *types.Money `json:"discountAmount,omitempty"`
	CheckedAt      time.Time    `json:"checkedAt"`
}
