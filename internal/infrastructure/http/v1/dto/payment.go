package dto

import (
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/invoice"
	"posledger/internal/domain/payment"
)

// ProcessPaymentRequest represents a payment against an invoice.
type ProcessPaymentRequest struct {
	Method          string      `json:"paymentMethod" binding:"required"`
	Amount          types.Money `json:"amount"`
	ReferenceNumber string      `json:"referenceNumber,omitempty" binding:"omitempty,max=100"`
	Notes           string      `json:"notes,omitempty"`
}

// ToRequest converts the DTO for the invoice in the path.
func (r *ProcessPaymentRequest) ToRequest(invoiceID id.ID) payment.ProcessRequest {
	return payment.ProcessRequest{
		InvoiceID:       invoiceID,
		Method:          invoice.PaymentMethod(r.Method),
		Amount:          r.Amount,
		ReferenceNumber: r.ReferenceNumber,
		Notes:           r.Notes,
	}
}
