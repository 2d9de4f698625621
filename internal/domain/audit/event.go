// Package audit records who changed what in the ledger.
//
// Recording is fire-and-forget: services hand events to a Recorder after
// their transaction commits, and a failure to persist an event is logged
// but never reported back to the caller.
package audit

import (
	"context"
	"time"

	"posledger/internal/core/id"
)

// Action identifies the audited operation.
type Action string

const (
	ActionInvoiceCreate   Action = "INVOICE_CREATE"
	ActionInvoiceCancel   Action = "INVOICE_CANCEL"
	ActionPaymentProcess  Action = "PAYMENT_PROCESS"
	ActionReturnCreate    Action = "RETURN_CREATE"
	ActionReturnApprove   Action = "RETURN_APPROVE"
	ActionReturnReject    Action = "RETURN_REJECT"
	ActionStockAdjustment Action = "STOCK_ADJUSTMENT"
	ActionStockTransfer   Action = "STOCK_TRANSFER"
	ActionPromoCodeUse    Action = "PROMO_CODE_USE"
	ActionPromoCodeCreate Action = "PROMO_CODE_CREATE"
	ActionPromoCodeUpdate Action = "PROMO_CODE_UPDATE"
	ActionPromoCodeDelete Action = "PROMO_CODE_DELETE"
)

// IsFinancial reports whether the action moves money or invoice balances.
func (a Action) IsFinancial() bool {
	switch a {
	case ActionInvoiceCreate, ActionInvoiceCancel, ActionPaymentProcess, ActionReturnApprove:
		return true
	}
	return false
}

// Event is one audit record.
type Event struct {
	EntityType string
	EntityID   id.ID
	Action     Action
	OldValues  map[string]any
	NewValues  map[string]any
	Actor      string
	OccurredAt time.Time
}

// Sink persists events.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Reader returns the recorded history of one entity, newest first.
type Reader interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Event, error)
}

// Logger is what services depend on. Log must not block on the sink
// and must not fail.
type Logger interface {
	Log(ctx context.Context, event Event)
}

// Nop discards events.
type Nop struct{}

// Log implements Logger.
func (Nop) Log(context.Context, Event) {}
