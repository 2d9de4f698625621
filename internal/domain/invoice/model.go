// Package invoice manages the invoice lifecycle: creation with stock
// consumption and discounts, cancellation, and lookups.
package invoice

import (
	"time"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/promo"
)

// Status of an invoice.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusPending       Status = "PENDING"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusCancelled     Status = "CANCELLED"
	StatusRefunded      Status = "REFUNDED"
	StatusVoid          Status = "VOID"
	StatusOverdue       Status = "OVERDUE"
)

// CanBeModified reports whether lines may still change.
func (s Status) CanBeModified() bool {
	return s == StatusDraft || s == StatusPending
}

// CanBeCancelled reports whether the invoice may be cancelled.
func (s Status) CanBeCancelled() bool {
	return s == StatusDraft || s == StatusPending || s == StatusPartiallyPaid
}

// IsPaid reports whether the invoice is settled.
func (s Status) IsPaid() bool {
	return s == StatusPaid || s == StatusRefunded
}

// AcceptsPayment reports whether payments may be recorded.
func (s Status) AcceptsPayment() bool {
	return s != StatusCancelled && s != StatusRefunded && s != StatusVoid
}

// AcceptsReturn reports whether goods may be returned against the invoice.
func (s Status) AcceptsReturn() bool {
	return s != StatusCancelled && s != StatusVoid
}

// CustomerType classifies the buyer.
type CustomerType string

const (
	CustomerRegistered CustomerType = "REGISTERED"
	CustomerWalkIn     CustomerType = "WALK_IN"
	CustomerWholesale  CustomerType = "WHOLESALE"
	CustomerCorporate  CustomerType = "CORPORATE"
)

// IsValid reports whether t is a known customer type.
func (t CustomerType) IsValid() bool {
	switch t {
	case CustomerRegistered, CustomerWalkIn, CustomerWholesale, CustomerCorporate:
		return true
	}
	return false
}

// Invoice is a sale at a branch.
//
// TotalAmount always equals Subtotal + TaxAmount - DiscountAmount and
// OutstandingBalance always equals TotalAmount - PaidAmount.
type Invoice struct {
	entity.Base

	Number             string       `db:"number" json:"number"`
	BranchID           id.ID        `db:"branch_id" json:"branchId"`
	BranchCode         string       `db:"branch_code" json:"branchCode"`
	CustomerID         *id.ID       `db:"customer_id" json:"customerId,omitempty"`
	CustomerType       CustomerType `db:"customer_type" json:"customerType"`
	CashierID          string       `db:"cashier_id" json:"cashierId"`
	IssueDate          time.Time    `db:"issue_date" json:"issueDate"`
	Subtotal           types.Money  `db:"subtotal" json:"subtotal"`
	TaxAmount          types.Money  `db:"tax_amount" json:"taxAmount"`
	DiscountAmount     types.Money  `db:"discount_amount" json:"discountAmount"`
	TotalAmount        types.Money  `db:"total_amount" json:"totalAmount"`
	PaidAmount         types.Money  `db:"paid_amount" json:"paidAmount"`
	OutstandingBalance types.Money  `db:"outstanding_balance" json:"outstandingBalance"`
	Status             Status       `db:"status" json:"status"`
	IdempotencyKey     *string      `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	Notes              string       `db:"notes" json:"notes,omitempty"`

	Items     []Item     `db:"-" json:"items,omitempty"`
	Discounts []Discount `db:"-" json:"discounts,omitempty"`
	Payments  []Payment  `db:"-" json:"payments,omitempty"`
}

// Recalculate derives total and outstanding from the stored components.
func (inv *Invoice) Recalculate() {
	inv.TotalAmount = types.Round(inv.Subtotal.Add(inv.TaxAmount).Sub(inv.DiscountAmount))
	inv.OutstandingBalance = types.Round(inv.TotalAmount.Sub(inv.PaidAmount))
}

// ApplyPayment adds amount to the paid total and moves the status.
func (inv *Invoice) ApplyPayment(amount types.Money) {
	inv.PaidAmount = types.Round(inv.PaidAmount.Add(amount))
	inv.Recalculate()
	switch {
	case inv.OutstandingBalance.IsZero():
		inv.Status = StatusPaid
	case inv.PaidAmount.IsPositive():
		inv.Status = StatusPartiallyPaid
	}
}

// AppendNote adds a line to the notes.
func (inv *Invoice) AppendNote(note string) {
	if inv.Notes == "" {
		inv.Notes = note
		return
	}
	inv.Notes += "\n" + note
}

// Item is an immutable invoice line with prices captured at sale time.
type Item struct {
	ID             id.ID       `db:"id" json:"id"`
	InvoiceID      id.ID       `db:"invoice_id" json:"invoiceId"`
	LineNo         int         `db:"line_no" json:"lineNo"`
	ProductID      id.ID       `db:"product_id" json:"productId"`
	ProductName    string      `db:"product_name" json:"productName"`
	Quantity       int64       `db:"quantity" json:"quantity"`
	UnitPrice      types.Money `db:"unit_price" json:"unitPrice"`
	TaxRate        types.Money `db:"tax_rate" json:"taxRate"`
	LineSubtotal   types.Money `db:"line_subtotal" json:"lineSubtotal"`
	TaxAmount      types.Money `db:"tax_amount" json:"taxAmount"`
	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`
	LineTotal      types.Money `db:"line_total" json:"lineTotal"`
}

// Discount is an invoice-level discount line.
type Discount struct {
	ID          id.ID              `db:"id" json:"id"`
	InvoiceID   id.ID              `db:"invoice_id" json:"invoiceId"`
	Kind        promo.DiscountKind `db:"kind" json:"kind"`
	Value       types.Money        `db:"value" json:"value"`
	Amount      types.Money        `db:"amount" json:"amount"`
	PromoCodeID *id.ID             `db:"promo_code_id" json:"promoCodeId,omitempty"`
	PromoCode   string             `db:"promo_code" json:"promoCode,omitempty"`
	Description string             `db:"description" json:"description"`
	AppliedBy   string             `db:"applied_by" json:"appliedBy"`
	AppliedAt   time.Time          `db:"applied_at" json:"appliedAt"`
}

// PaymentMethod is how a payment was tendered.
type PaymentMethod string

const (
	MethodCash          PaymentMethod = "CASH"
	MethodCreditCard    PaymentMethod = "CREDIT_CARD"
	MethodDebitCard     PaymentMethod = "DEBIT_CARD"
	MethodDigitalWallet PaymentMethod = "DIGITAL_WALLET"
	MethodBankTransfer  PaymentMethod = "BANK_TRANSFER"
	MethodMobileMoney   PaymentMethod = "MOBILE_MONEY"
	MethodCheck         PaymentMethod = "CHECK"
	MethodGiftCard      PaymentMethod = "GIFT_CARD"
)

// IsValid reports whether m is a known method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodCreditCard, MethodDebitCard, MethodDigitalWallet,
		MethodBankTransfer, MethodMobileMoney, MethodCheck, MethodGiftCard:
		return true
	}
	return false
}

// PaymentStatus of a payment record.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentProcessing        PaymentStatus = "PROCESSING"
	PaymentCompleted         PaymentStatus = "COMPLETED"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentCancelled         PaymentStatus = "CANCELLED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// Payment is money received against an invoice. Payments belong to the
// invoice aggregate; the payment package records them.
type Payment struct {
	ID              id.ID         `db:"id" json:"id"`
	InvoiceID       id.ID         `db:"invoice_id" json:"invoiceId"`
	BranchID        id.ID         `db:"branch_id" json:"branchId"`
	Method          PaymentMethod `db:"method" json:"method"`
	Amount          types.Money   `db:"amount" json:"amount"`
	Status          PaymentStatus `db:"status" json:"status"`
	ReferenceNumber string        `db:"reference_number" json:"referenceNumber,omitempty"`
	Notes           string        `db:"notes" json:"notes,omitempty"`
	PaymentDate     time.Time     `db:"payment_date" json:"paymentDate"`
	ProcessedBy     string        `db:"processed_by" json:"processedBy"`
}
