// Package returns processes goods returned against an invoice.
package returns

import (
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// Reason the customer gives for a return.
type Reason string

const (
	ReasonDefective       Reason = "DEFECTIVE"
	ReasonWrongItem       Reason = "WRONG_ITEM"
	ReasonNotAsDescribed  Reason = "NOT_AS_DESCRIBED"
	ReasonExpired         Reason = "EXPIRED"
	ReasonCustomerRequest Reason = "CUSTOMER_REQUEST"
	ReasonSizeIssue       Reason = "SIZE_ISSUE"
	ReasonColorIssue      Reason = "COLOR_ISSUE"
	ReasonQualityIssue    Reason = "QUALITY_ISSUE"
	ReasonDuplicateOrder  Reason = "DUPLICATE_ORDER"
	ReasonOther           Reason = "OTHER"
)

// IsValid reports whether r is a known reason.
func (r Reason) IsValid() bool {
	switch r {
	case ReasonDefective, ReasonWrongItem, ReasonNotAsDescribed, ReasonExpired, ReasonCustomerRequest,
		ReasonSizeIssue, ReasonColorIssue, ReasonQualityIssue, ReasonDuplicateOrder, ReasonOther:
		return true
	}
	return false
}

// Status of a return.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Return is a request to take goods back. At most one exists per invoice.
type Return struct {
	entity.Base

	Number            string      `db:"number" json:"number"`
	InvoiceID         id.ID       `db:"invoice_id" json:"invoiceId"`
	BranchID          id.ID       `db:"branch_id" json:"branchId"`
	ProcessedBy       string      `db:"processed_by" json:"processedBy"`
	ReturnDate        time.Time   `db:"return_date" json:"returnDate"`
	Reason            Reason      `db:"reason" json:"reason"`
	Notes             string      `db:"notes" json:"notes,omitempty"`
	Status            Status      `db:"status" json:"status"`
	TotalReturnAmount types.Money `db:"total_return_amount" json:"totalReturnAmount"`

	Items []Item `db:"-" json:"items,omitempty"`
}

// Item is one returned product line.
type Item struct {
	ID           id.ID       `db:"id" json:"id"`
	ReturnID     id.ID       `db:"return_id" json:"returnId"`
	ProductID    id.ID       `db:"product_id" json:"productId"`
	ProductName  string      `db:"product_name" json:"productName"`
	Quantity     int64       `db:"quantity" json:"quantity"`
	UnitPrice    types.Money `db:"unit_price" json:"unitPrice"`
	ReturnAmount types.Money `db:"return_amount" json:"returnAmount"`
	Condition    string      `db:"condition" json:"condition,omitempty"`
	Notes        string      `db:"notes" json:"notes,omitempty"`
}

// CreateRequest is the input of Service.Create.
type CreateRequest struct {
	InvoiceID id.ID
	Items     []ItemRequest
	Reason    Reason
	Notes     string
}

// ItemRequest is one requested return line.
type ItemRequest struct {
	ProductID id.ID
	Quantity  int64
	Condition string
	Notes     string
}

// Validate checks the request shape.
func (r CreateRequest) Validate() error {
	if id.IsNil(r.InvoiceID) {
		return apperror.NewValidation("invoice is required").WithDetail("field", "invoiceId")
	}
	if !r.Reason.IsValid() {
		return apperror.NewValidation("unknown return reason").WithDetail("field", "reason")
	}
	if len(r.Items) == 0 {
		return apperror.NewValidation("return must have at least one item").WithDetail("field", "items")
	}
	for i, item := range r.Items {
		if id.IsNil(item.ProductID) {
			return apperror.NewValidation("product is required").WithDetail("field", "items").WithDetail("index", i)
		}
		if item.Quantity <= 0 {
			return apperror.NewValidation("quantity must be greater than 0").WithDetail("field", "items").WithDetail("index", i)
		}
	}
	return nil
}

// Filter narrows List.
type Filter struct {
	BranchID  *id.ID
	InvoiceID *id.ID
	Statuses  []Status
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// Normalize applies paging defaults.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches evaluates the filter in memory.
func (f Filter) Matches(r *Return) bool {
	if f.BranchID != nil && r.BranchID != *f.BranchID {
		return false
	}
	if f.InvoiceID != nil && r.InvoiceID != *f.InvoiceID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			found = found || r.Status == s
		}
		if !found {
			return false
		}
	}
	if f.From != nil && r.ReturnDate.Before(*f.From) {
		return false
	}
	if f.To != nil && r.ReturnDate.After(*f.To) {
		return false
	}
	return true
}
