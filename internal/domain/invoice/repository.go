package invoice

import (
	"context"

	"posledger/internal/core/id"
)

// Repository persists invoices with their items and discounts.
type Repository interface {
	// Create inserts the invoice, its items and discounts. A taken number or
	// idempotency key is reported as apperror Duplicate with the field name.
	Create(ctx context.Context, inv *Invoice) error

	GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Invoice, error)

	// GetByIDForUpdate locks the invoice row for the current transaction.
	GetByIDForUpdate(ctx context.Context, invoiceID id.ID) (*Invoice, error)

	// Update writes status, balances and notes. The stored version must
	// equal inv.Version-1, otherwise apperror ConcurrentModification.
	Update(ctx context.Context, inv *Invoice) error

	GetItems(ctx context.Context, invoiceID id.ID) ([]Item, error)
	GetDiscounts(ctx context.Context, invoiceID id.ID) ([]Discount, error)
	GetPayments(ctx context.Context, invoiceID id.ID) ([]Payment, error)

	// List returns invoice headers, newest first.
	List(ctx context.Context, filter Filter) ([]Invoice, error)
}

// Locker serializes work on one idempotency key across processes.
type Locker interface {
	// Lock returns a release func, or apperror IdempotencyConflict when the
	// key is held elsewhere.
	Lock(ctx context.Context, key string) (release func(), err error)
}

// NoopLocker never blocks.
type NoopLocker struct{}

// Lock implements Locker.
func (NoopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }
