package promo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/core/apperror"
)

var today = time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

func validCode() *Code {
	limit := int64(3)
	return &Code{
		Code:       "SUMMER",
		Kind:       KindPercentage,
		Value:      money("10"),
		UsageLimit: &limit,
		ValidFrom:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		Status:     StatusActive,
		Active:     true,
	}
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, apperror.CodeInvalidPromoCode, appErr.Code)
	return appErr.Details["reason"].(string)
}

func TestCheck_Valid(t *testing.T) {
	assert.NoError(t, validCode().Check(today))
}

func TestCheck_ReasonsInOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Code)
		reason string
	}{
		{"inactive wins over status", func(c *Code) { c.Active = false; c.Status = StatusDisabled }, ReasonInactive},
		{"status", func(c *Code) { c.Status = StatusScheduled }, ReasonStatusNotActive},
		{"not yet valid", func(c *Code) { c.ValidFrom = today.AddDate(0, 0, 1) }, ReasonNotYetValid},
		{"expired", func(c *Code) { c.ValidUntil = today.AddDate(0, 0, -1) }, ReasonExpired},
		{"expired wins over usage", func(c *Code) { c.ValidUntil = today.AddDate(0, 0, -1); c.TimesUsed = 3 }, ReasonExpired},
		{"usage limit", func(c *Code) { c.TimesUsed = 3 }, ReasonUsageLimitReached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCode()
			tt.mutate(c)
			assert.Equal(t, tt.reason, reasonOf(t, c.Check(today)))
		})
	}
}

func TestCheck_WindowIsInclusive(t *testing.T) {
	c := validCode()
	c.ValidFrom = today
	c.ValidUntil = today
	assert.NoError(t, c.Check(today.Add(9*time.Hour)))
}

func TestCheckPurchase(t *testing.T) {
	c := validCode()
	minimum := money("50")
	c.MinPurchaseAmount = &minimum

	assert.Equal(t, ReasonMinPurchaseNotMet, reasonOf(t, c.CheckPurchase(money("49.99"))))
	assert.NoError(t, c.CheckPurchase(money("50")))
}

func TestRecordUse_FlipsToUsedUp(t *testing.T) {
	c := validCode()
	c.TimesUsed = 2
	c.Version = 1

	c.RecordUse(today)

	assert.Equal(t, int64(3), c.TimesUsed)
	assert.Equal(t, StatusUsedUp, c.Status)
	assert.Equal(t, 2, c.Version)
}

func TestValidateDefinition(t *testing.T) {
	c := validCode()
	require.NoError(t, c.ValidateDefinition())

	c.Value = money("101")
	assert.True(t, apperror.HasCode(c.ValidateDefinition(), apperror.CodeValidation))

	c = validCode()
	c.ValidUntil = c.ValidFrom.AddDate(0, 0, -1)
	assert.True(t, apperror.HasCode(c.ValidateDefinition(), apperror.CodeValidation))

	c = validCode()
	c.Kind = KindPromoCode
	assert.True(t, apperror.HasCode(c.ValidateDefinition(), apperror.CodeValidation))
}
