package catalog

import (
	"context"

	"posledger/internal/core/id"
)

// Lookup is the read-only catalog contract used by ledger services.
// Missing records are reported as apperror NotFound.
type Lookup interface {
	GetBranch(ctx context.Context, branchID id.ID) (*Branch, error)
	GetProduct(ctx context.Context, productID id.ID) (*Product, error)
}

// Writer seeds catalog data. Only the operator CLI and tests use it.
type Writer interface {
	SaveBranch(ctx context.Context, b *Branch) error
	SaveProduct(ctx context.Context, p *Product) error
}
