package dto

import (
	"fmt"
	"strings"

	"posledger/internal/core/types"
	"posledger/internal/domain/invoice"
	"posledger/internal/domain/promo"
)

// --- Request DTOs ---

// CreateInvoiceRequest represents a request to create an invoice.
type CreateInvoiceRequest struct {
	BranchID       string                   `json:"branchId" binding:"required,uuid"`
	CustomerID     string                   `json:"customerId,omitempty" binding:"omitempty,uuid"`
	CustomerType   string                   `json:"customerType,omitempty" binding:"omitempty,oneof=REGISTERED WALK_IN WHOLESALE CORPORATE"`
	CashierID      string                   `json:"cashierId,omitempty"`
	Items          []InvoiceItemRequest     `json:"items" binding:"required,min=1,dive"`
	Discounts      []InvoiceDiscountRequest `json:"discounts,omitempty" binding:"omitempty,dive"`
	IdempotencyKey string                   `json:"idempotencyKey,omitempty" binding:"omitempty,max=255"`
	Notes          string                   `json:"notes,omitempty"`
}

// InvoiceItemRequest represents a line in a create request.
type InvoiceItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
}

// InvoiceDiscountRequest represents a discount in a create request.
type InvoiceDiscountRequest struct {
	Type        string      `json:"type" binding:"required,oneof=FIXED_AMOUNT PERCENTAGE PROMO_CODE"`
	Value       types.Money `json:"value"`
	PromoCode   string      `json:"promoCode,omitempty"`
	Description string      `json:"description,omitempty"`
}

// ToRequest converts the DTO. headerKey, when set, wins over the body key.
func (r *CreateInvoiceRequest) ToRequest(headerKey string) (invoice.CreateRequest, error) {
	branchID, err := ParseID("branchId", r.BranchID)
	if err != nil {
		return invoice.CreateRequest{}, err
	}
	customerID, err := ParseOptionalID("customerId", r.CustomerID)
	if err != nil {
		return invoice.CreateRequest{}, err
	}

	req := invoice.CreateRequest{
		BranchID:       branchID,
		CustomerID:     customerID,
		CustomerType:   invoice.CustomerType(r.CustomerType),
		CashierID:      r.CashierID,
		IdempotencyKey: strings.TrimSpace(r.IdempotencyKey),
		Notes:          r.Notes,
	}
	if key := strings.TrimSpace(headerKey); key != "" {
		req.IdempotencyKey = key
	}

	for i, item := range r.Items {
		productID, err := ParseID(fmt.Sprintf("items[%d].productId", i), item.ProductID)
		if err != nil {
			return invoice.CreateRequest{}, err
		}
		req.Items = append(req.Items, invoice.ItemRequest{ProductID: productID, Quantity: item.Quantity})
	}

	for _, d := range r.Discounts {
		req.Discounts = append(req.Discounts, invoice.DiscountRequest{
			Kind:        promo.DiscountKind(d.Type),
			Value:       d.Value,
			PromoCode:   d.PromoCode,
			Description: d.Description,
		})
	}
	return req, nil
}

// CancelInvoiceRequest carries the cancellation reason.
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

// InvoiceFilterRequest is the query of GET /invoices.
type InvoiceFilterRequest struct {
	PaginationRequest
	BranchID     string   `form:"branchId" binding:"omitempty,uuid"`
	CustomerID   string   `form:"customerId" binding:"omitempty,uuid"`
	CashierID    string   `form:"cashierId"`
	CustomerType string   `form:"customerType" binding:"omitempty,oneof=REGISTERED WALK_IN WHOLESALE CORPORATE"`
	Status       []string `form:"status"`
	From         string   `form:"from"`
	To           string   `form:"to"`
	MinAmount    string   `form:"minAmount"`
	MaxAmount    string   `form:"maxAmount"`
}

// ToFilter converts the query.
func (r *InvoiceFilterRequest) ToFilter() (invoice.Filter, error) {
	f := invoice.Filter{
		CashierID:    r.CashierID,
		CustomerType: invoice.CustomerType(r.CustomerType),
		Limit:        r.Limit,
		Offset:       r.Offset,
	}

	var err error
	if f.BranchID, err = ParseOptionalID("branchId", r.BranchID); err != nil {
		return f, err
	}
	if f.CustomerID, err = ParseOptionalID("customerId", r.CustomerID); err != nil {
		return f, err
	}
	if f.From, err = ParseDate("from", r.From); err != nil {
		return f, err
	}
	if f.To, err = ParseDateUntil("to", r.To); err != nil {
		return f, err
	}
	if f.MinAmount, err = ParseOptionalMoney("minAmount", r.MinAmount); err != nil {
		return f, err
	}
	if f.MaxAmount, err = ParseOptionalMoney("maxAmount", r.MaxAmount); err != nil {
		return f, err
	}

	for _, s := range r.Status {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				f.Statuses = append(f.Statuses, invoice.Status(strings.ToUpper(part)))
			}
		}
	}
	return f.Normalize(), nil
}
