package returns

import (
	"context"

	"posledger/internal/core/id"
)

// Repository persists returns and their items.
type Repository interface {
	// Create inserts the return with items. A second return for the same
	// invoice is reported as apperror Duplicate on field invoice_id.
	Create(ctx context.Context, r *Return) error

	GetByID(ctx context.Context, returnID id.ID) (*Return, error)
	GetByIDForUpdate(ctx context.Context, returnID id.ID) (*Return, error)
	GetByInvoice(ctx context.Context, invoiceID id.ID) (*Return, error)
	GetItems(ctx context.Context, returnID id.ID) ([]Item, error)

	// Update writes status and notes with a version check against r.Version-1.
	Update(ctx context.Context, r *Return) error

	List(ctx context.Context, filter Filter) ([]Return, error)
}
