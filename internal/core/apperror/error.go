// Package apperror provides the ledger's error value. Services return
// *AppError for every failure a client can act on; the API renders it as a
// {code, message, details} body with the status registered for its code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeInternal   = "INTERNAL_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"

	CodeBusinessRule      = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeInvalidPromoCode  = "INVALID_PROMO_CODE"

	CodeInvalidState           = "INVALID_STATE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeDuplicate              = "DUPLICATE_ENTRY"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"

	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
)

var statusByCode = map[string]int{
	CodeInternal:               http.StatusInternalServerError,
	CodeValidation:             http.StatusBadRequest,
	CodeNotFound:               http.StatusNotFound,
	CodeBusinessRule:           http.StatusUnprocessableEntity,
	CodeInsufficientStock:      http.StatusUnprocessableEntity,
	CodeInvalidPromoCode:       http.StatusUnprocessableEntity,
	CodeInvalidState:           http.StatusConflict,
	CodeConcurrentModification: http.StatusConflict,
	CodeDuplicate:              http.StatusConflict,
	CodeIdempotency:            http.StatusConflict,
	CodeUnauthorized:           http.StatusUnauthorized,
	CodeForbidden:              http.StatusForbidden,
}

// AppError is a client-facing failure.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is derived from Code.
	HTTPStatus int `json:"-"`

	// Err is the cause; it is logged, never rendered.
	Err error `json:"-"`
}

// New builds an error for a registered code. Unknown codes map to 500.
func New(code, message string, details map[string]any) *AppError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail sets one detail entry.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// WithCause attaches the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func NewValidation(message string) *AppError {
	return New(CodeValidation, message, nil)
}

func NewNotFound(entity string, id any) *AppError {
	return New(CodeNotFound, entity+" not found", map[string]any{"entity": entity, "id": id})
}

func NewBusinessRule(message string) *AppError {
	return New(CodeBusinessRule, message, nil)
}

// NewInsufficientStock names the product that could not be covered.
func NewInsufficientStock(productID, productName string, available, requested int64) *AppError {
	return New(CodeInsufficientStock,
		fmt.Sprintf("Insufficient stock for %s: available %d, requested %d", productName, available, requested),
		map[string]any{
			"product_id":   productID,
			"product_name": productName,
			"available":    available,
			"requested":    requested,
		})
}

// NewInvalidPromoCode carries a machine-readable reason such as EXPIRED.
func NewInvalidPromoCode(code, reason, message string) *AppError {
	return New(CodeInvalidPromoCode, message, map[string]any{"code": code, "reason": reason})
}

// NewInvalidState rejects an operation the entity's status does not allow.
func NewInvalidState(entity string, id any, status, operation string) *AppError {
	return New(CodeInvalidState,
		fmt.Sprintf("cannot %s %s in status %s", operation, entity, status),
		map[string]any{"entity": entity, "id": id, "status": status, "operation": operation})
}

// NewConcurrentModification reports a lost optimistic-lock race.
func NewConcurrentModification(entity string, id any) *AppError {
	return New(CodeConcurrentModification, "Record was modified concurrently. Please retry.",
		map[string]any{"entity": entity, "id": id})
}

// NewInternal hides err from the client.
func NewInternal(err error) *AppError {
	return New(CodeInternal, "Internal server error", nil).WithCause(err)
}

func NewUnauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, nil)
}

func NewForbidden(message string) *AppError {
	return New(CodeForbidden, message, nil)
}

// NewIdempotencyConflict means a request with the same key is still in flight.
func NewIdempotencyConflict(key string) *AppError {
	return New(CodeIdempotency, "Operation with this idempotency key is already in progress",
		map[string]any{"idempotency_key": key})
}

func NewDuplicate(entity, field, value string) *AppError {
	return New(CodeDuplicate, fmt.Sprintf("%s with this %s already exists", entity, field),
		map[string]any{"entity": entity, "field": field, "value": value})
}

// AsAppError finds an AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// StatusOf returns the HTTP status for err; plain errors are 500.
func StatusOf(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

func IsConcurrentModification(err error) bool { return HasCode(err, CodeConcurrentModification) }
