package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStock_CarriesQuantities(t *testing.T) {
	err := NewInsufficientStock("p-1", "Coffee", 2, 5)

	assert.Equal(t, CodeInsufficientStock, err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	assert.Equal(t, int64(2), err.Details["available"])
	assert.Equal(t, int64(5), err.Details["requested"])
	assert.Equal(t, "Coffee", err.Details["product_name"])
}

func TestHasCode_ThroughWrapping(t *testing.T) {
	base := NewInvalidPromoCode("SPRING", "EXPIRED", "Promo code has expired")
	wrapped := fmt.Errorf("apply discount: %w", base)

	assert.True(t, HasCode(wrapped, CodeInvalidPromoCode))
	assert.False(t, HasCode(wrapped, CodeBusinessRule))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "EXPIRED", appErr.Details["reason"])
}

func TestInvalidState_Details(t *testing.T) {
	err := NewInvalidState("invoice", "42", "CANCELLED", "cancel")

	assert.Equal(t, http.StatusConflict, StatusOf(err))
	assert.Equal(t, "CANCELLED", err.Details["status"])
	assert.Contains(t, err.Error(), "cannot cancel invoice in status CANCELLED")
}

func TestUnwrap_ExposesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(cause))
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("branch", "BR01")))
	assert.True(t, IsConcurrentModification(NewConcurrentModification("invoice", 1)))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestNew_UnknownCodeIsServerError(t *testing.T) {
	err := New("SOMETHING_ELSE", "odd", nil)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus)
	assert.Equal(t, "SOMETHING_ELSE: odd", err.Error())
}
