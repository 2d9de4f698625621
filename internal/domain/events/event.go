// Package events defines the ledger events written to the transactional outbox.
package events

import (
	"context"

	"posledger/internal/core/id"
)

// Event types.
const (
	InvoiceCreated   = "invoice.created"
	InvoiceCancelled = "invoice.cancelled"
	PaymentProcessed = "payment.processed"
	ReturnCreated    = "return.created"
	ReturnApproved   = "return.approved"
	ReturnRejected   = "return.rejected"
	StockAdjusted    = "stock.adjusted"
	StockTransferred = "stock.transferred"
)

// Event is a domain event bound for the outbox.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher writes events as part of the transaction carried by ctx.
// An event is delivered only if that transaction commits.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
