// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// --- Pagination ---

// PaginationRequest contains limit/offset paging parameters.
type PaginationRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// --- List Response ---

// ListResponse wraps list results with the paging that produced them.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Count  int `json:"count"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// NewListResponse never renders items as null.
func NewListResponse[T any](items []T, limit, offset int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items), Limit: limit, Offset: offset}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Parsing helpers ---

// ParseID parses a required id field.
func ParseID(field, value string) (id.ID, error) {
	parsed, err := id.Parse(value)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid id format").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return parsed, nil
}

// ParseOptionalID parses an id field that may be absent.
func ParseOptionalID(field, value string) (*id.ID, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := ParseID(field, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339; empty means absent.
func ParseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperror.NewValidation("invalid date").
		WithDetail("field", field).
		WithDetail("value", value)
}

// ParseDateUntil is ParseDate for an inclusive upper bound: a bare date covers the whole day.
func ParseDateUntil(field, value string) (*time.Time, error) {
	t, err := ParseDate(field, value)
	if err != nil || t == nil {
		return t, err
	}
	if len(value) == len(time.DateOnly) {
		end := t.Add(24*time.Hour - time.Nanosecond)
		return &end, nil
	}
	return t, nil
}

// ParseOptionalMoney parses a decimal amount that may be absent.
func ParseOptionalMoney(field, value string) (*types.Money, error) {
	if value == "" {
		return nil, nil
	}
	m, err := types.NewMoneyFromString(value)
	if err != nil || m.IsNegative() {
		return nil, apperror.NewValidation("invalid amount").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return &m, nil
}
