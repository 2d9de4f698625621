package dto

import (
	"fmt"
	"strings"

	"posledger/internal/domain/returns"
)

// CreateReturnRequest represents a request to open a return.
type CreateReturnRequest struct {
	InvoiceID string              `json:"invoiceId" binding:"required,uuid"`
	Reason    string              `json:"reason" binding:"required"`
	Notes     string              `json:"notes,omitempty"`
	Items     []ReturnItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ReturnItemRequest is one returned line.
type ReturnItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	Condition string `json:"condition,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// ToRequest converts the DTO.
func (r *CreateReturnRequest) ToRequest() (returns.CreateRequest, error) {
	invoiceID, err := ParseID("invoiceId", r.InvoiceID)
	if err != nil {
		return returns.CreateRequest{}, err
	}

	req := returns.CreateRequest{
		InvoiceID: invoiceID,
		Reason:    returns.Reason(r.Reason),
		Notes:     r.Notes,
	}
	for i, item := range r.Items {
		productID, err := ParseID(fmt.Sprintf("items[%d].productId", i), item.ProductID)
		if err != nil {
			return returns.CreateRequest{}, err
		}
		req.Items = append(req.Items, returns.ItemRequest{
			ProductID: productID,
			Quantity:  item.Quantity,
			Condition: item.Condition,
			Notes:     item.Notes,
		})
	}
	return req, nil
}

// RejectReturnRequest carries the rejection reason.
type RejectReturnRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

// ReturnFilterRequest is the query of GET /returns.
type ReturnFilterRequest struct {
	PaginationRequest
	BranchID  string   `form:"branchId" binding:"omitempty,uuid"`
	InvoiceID string   `form:"invoiceId" binding:"omitempty,uuid"`
	Status    []string `form:"status"`
	From      string   `form:"from"`
	To        string   `form:"to"`
}

// ToFilter converts the query.
func (r *ReturnFilterRequest) ToFilter() (returns.Filter, error) {
	f := returns.Filter{Limit: r.Limit, Offset: r.Offset}

	var err error
	if f.BranchID, err = ParseOptionalID("branchId", r.BranchID); err != nil {
		return f, err
	}
	if f.InvoiceID, err = ParseOptionalID("invoiceId", r.InvoiceID); err != nil {
		return f, err
	}
	if f.From, err = ParseDate("from", r.From); err != nil {
		return f, err
	}
	if f.To, err = ParseDateUntil("to", r.To); err != nil {
		return f, err
	}
	for _, s := range r.Status {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				f.Statuses = append(f.Statuses, returns.Status(strings.ToUpper(part)))
			}
		}
	}
	return f.Normalize(), nil
}
