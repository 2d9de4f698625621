// Package promo holds discount pricing and promo code rules.
package promo

import (
	"strings"
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/types"
)

// DiscountKind is how a discount amount is computed.
type DiscountKind string

const (
	KindFixedAmount DiscountKind = "FIXED_AMOUNT"
	KindPercentage  DiscountKind = "PERCENTAGE"
	KindPromoCode   DiscountKind = "PROMO_CODE"
)

// IsValid reports whether k is a known kind.
func (k DiscountKind) IsValid() bool {
	switch k {
	case KindFixedAmount, KindPercentage, KindPromoCode:
		return true
	}
	return false
}

// Status of a promo code.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusExpired   Status = "EXPIRED"
	StatusUsedUp    Status = "USED_UP"
	StatusDisabled  Status = "DISABLED"
	StatusScheduled Status = "SCHEDULED"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusUsedUp, StatusDisabled, StatusScheduled:
		return true
	}
	return false
}

// Rejection reasons carried in InvalidPromoCode details.
const (
	ReasonNotFound          = "NOT_FOUND"
	ReasonInactive          = "INACTIVE"
	ReasonStatusNotActive   = "STATUS_NOT_ACTIVE"
	ReasonNotYetValid       = "NOT_YET_VALID"
	ReasonExpired           = "EXPIRED"
	ReasonUsageLimitReached = "USAGE_LIMIT_REACHED"
	ReasonMinPurchaseNotMet = "MIN_PURCHASE_NOT_MET"
)

// Code is a promo code.
type Code struct {
	entity.Base

	Code              string       `db:"code" json:"code"`
	Description       string       `db:"description" json:"description,omitempty"`
	Kind              DiscountKind `db:"discount_type" json:"discountType"`
	Value             types.Money  `db:"discount_value" json:"discountValue"`
	MaxDiscountAmount *types.Money `db:"max_discount_amount" json:"maxDiscountAmount,omitempty"`
	MinPurchaseAmount *types.Money `db:"min_purchase_amount" json:"minPurchaseAmount,omitempty"`
	UsageLimit        *int64       `db:"usage_limit" json:"usageLimit,omitempty"`
	TimesUsed         int64        `db:"times_used" json:"timesUsed"`
	ValidFrom         time.Time    `db:"valid_from" json:"validFrom"`
	ValidUntil        time.Time    `db:"valid_until" json:"validUntil"`
	Status            Status       `db:"status" json:"status"`
	Active            bool         `db:"active" json:"active"`
	DeletedAt         *time.Time   `db:"deleted_at" json:"-"`
}

// Check runs the eligibility rules in order and reports the first failure.
func (c *Code) Check(today time.Time) error {
	if !c.Active {
		return apperror.NewInvalidPromoCode(c.Code, ReasonInactive, "Promo code is inactive")
	}
	if c.Status != StatusActive {
		return apperror.NewInvalidPromoCode(c.Code, ReasonStatusNotActive, "Promo code is not active").
			WithDetail("status", string(c.Status))
	}
	day := DateOf(today)
	if day.Before(DateOf(c.ValidFrom)) {
		return apperror.NewInvalidPromoCode(c.Code, ReasonNotYetValid, "Promo code is not yet valid")
	}
	if day.After(DateOf(c.ValidUntil)) {
		return apperror.NewInvalidPromoCode(c.Code, ReasonExpired, "Promo code has expired")
	}
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		return apperror.NewInvalidPromoCode(c.Code, ReasonUsageLimitReached, "Promo code usage limit reached")
	}
	return nil
}

// CheckPurchase verifies the minimum purchase amount against base.
func (c *Code) CheckPurchase(base types.Money) error {
	if c.MinPurchaseAmount != nil && base.LessThan(*c.MinPurchaseAmount) {
		return apperror.NewInvalidPromoCode(c.Code, ReasonMinPurchaseNotMet, "Minimum purchase amount not met").
			WithDetail("min_purchase_amount", c.MinPurchaseAmount.StringFixed(2)).
			WithDetail("amount", base.StringFixed(2))
	}
	return nil
}

// RecordUse counts one redemption and flips the status once the limit is hit.
func (c *Code) RecordUse(now time.Time) {
	c.TimesUsed++
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		c.Status = StatusUsedUp
	}
	c.Touch(now)
}

// ValidateDefinition checks the fields an operator controls.
func (c *Code) ValidateDefinition() error {
	if strings.TrimSpace(c.Code) == "" {
		return apperror.NewValidation("promo code is required").WithDetail("field", "code")
	}
	if len(c.Code) > 50 {
		return apperror.NewValidation("promo code must be at most 50 characters").WithDetail("field", "code")
	}
	if c.Kind != KindFixedAmount && c.Kind != KindPercentage {
		return apperror.NewValidation("discount type must be FIXED_AMOUNT or PERCENTAGE").WithDetail("field", "discountType")
	}
	if !c.Value.IsPositive() {
		return apperror.NewValidation("discount value must be greater than 0").WithDetail("field", "discountValue")
	}
	if c.Kind == KindPercentage && !types.IsValidPercent(c.Value) {
		return apperror.NewValidation("percentage cannot exceed 100").WithDetail("field", "discountValue")
	}
	if c.MaxDiscountAmount != nil && c.MaxDiscountAmount.IsNegative() {
		return apperror.NewValidation("max discount amount cannot be negative").WithDetail("field", "maxDiscountAmount")
	}
	if c.MinPurchaseAmount != nil && c.MinPurchaseAmount.IsNegative() {
		return apperror.NewValidation("min purchase amount cannot be negative").WithDetail("field", "minPurchaseAmount")
	}
	if c.UsageLimit != nil && *c.UsageLimit < 1 {
		return apperror.NewValidation("usage limit must be at least 1").WithDetail("field", "usageLimit")
	}
	if c.ValidFrom.IsZero() || c.ValidUntil.IsZero() {
		return apperror.NewValidation("validity window is required").WithDetail("field", "validFrom")
	}
	if DateOf(c.ValidUntil).Before(DateOf(c.ValidFrom)) {
		return apperror.NewValidation("valid until must not be before valid from").WithDetail("field", "validUntil")
	}
	if !c.Status.IsValid() {
		return apperror.NewValidation("unknown promo code status").WithDetail("field", "status")
	}
	return nil
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateRequest is the input of Service.Create.
type CreateRequest struct {
	Code              string
	Description       string
	Kind              DiscountKind
	Value             types.Money
	MaxDiscountAmount *types.Money
	MinPurchaseAmount *types.Money
	UsageLimit        *int64
	ValidFrom         time.Time
	ValidUntil        time.Time
	Status            Status
}

// UpdateRequest carries the mutable fields; nil means unchanged.
type UpdateRequest struct {
	Description       *string
	Value             *types.Money
	MaxDiscountAmount *types.Money
	MinPurchaseAmount *types.Money
	UsageLimit        *int64
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	Status            *Status
	Active            *bool
}

// Apply copies the set fields onto c.
func (r UpdateRequest) Apply(c *Code) {
	if r.Description != nil {
		c.Description = *r.Description
	}
	if r.Value != nil {
		c.Value = *r.Value
	}
	if r.MaxDiscountAmount != nil {
		c.MaxDiscountAmount = r.MaxDiscountAmount
	}
	if r.MinPurchaseAmount != nil {
		c.MinPurchaseAmount = r.MinPurchaseAmount
	}
	if r.UsageLimit != nil {
		c.UsageLimit = r.UsageLimit
	}
	if r.ValidFrom != nil {
		c.ValidFrom = DateOf(*r.ValidFrom)
	}
	if r.ValidUntil != nil {
		c.ValidUntil = DateOf(*r.ValidUntil)
	}
	if r.Status != nil {
		c.Status = *r.Status
	}
	if r.Active != nil {
		c.Active = *r.Active
	}
}

// Redemption is the outcome of a successful Redeem.
type Redemption struct {
	Code   *Code
	Amount types.Money
}
