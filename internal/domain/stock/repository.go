package stock

import (
	"context"

	"posledger/internal/core/id"
)

// Repository persists stock rows and adjustments.
// Locking methods must be called inside a transaction.
type Repository interface {
	// GetLevel returns the row or apperror NotFound.
	GetLevel(ctx context.Context, branchID, productID id.ID) (*Level, error)

	// GetLevelForUpdate locks and returns the row, or (nil, nil) if absent.
	GetLevelForUpdate(ctx context.Context, branchID, productID id.ID) (*Level, error)

	// LockOrCreateLevel locks the row, inserting it at zero first if absent.
	LockOrCreateLevel(ctx context.Context, branchID, productID id.ID) (*Level, error)

	// SaveLevel writes quantity, reserved quantity and restock time.
	SaveLevel(ctx context.Context, level *Level) error

	// ListByBranch returns all rows of a branch ordered by product.
	ListByBranch(ctx context.Context, branchID id.ID) ([]Level, error)

	// SumQuantityByProduct totals quantity across branches.
	SumQuantityByProduct(ctx context.Context, productID id.ID) (int64, error)

	CreateAdjustments(ctx context.Context, adjustments []Adjustment) error
	ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]Adjustment, error)
}

// AdjustmentFilter narrows ListAdjustments.
type AdjustmentFilter struct {
	BranchID  *id.ID
	ProductID *id.ID
	Kind      *AdjustmentKind
	Reference string
	Limit     int
	Offset    int
}
