package memory

import (
	"context"
	"sort"
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/stock"
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	s *Store
}

// NewStockRepo creates a stock repository over the store.
func NewStockRepo(s *Store) *StockRepo {
	return &StockRepo{s: s}
}

func (r *StockRepo) GetLevel(ctx context.Context, branchID, productID id.ID) (*stock.Level, error) {
	defer r.s.guard(ctx)()
	level, ok := r.s.st.levels[levelKey{branchID, productID}]
	if !ok {
		return nil, apperror.NewNotFound("stock level", productID.String()).
			WithDetail("branch_id", branchID.String())
	}
	return &level, nil
}

// GetLevelForUpdate needs no row lock: the transaction holds the store.
func (r *StockRepo) GetLevelForUpdate(ctx context.Context, branchID, productID id.ID) (*stock.Level, error) {
	defer r.s.guard(ctx)()
	level, ok := r.s.st.levels[levelKey{branchID, productID}]
	if !ok {
		return nil, nil
	}
	return &level, nil
}

func (r *StockRepo) LockOrCreateLevel(ctx context.Context, branchID, productID id.ID) (*stock.Level, error) {
	defer r.s.guard(ctx)()
	key := levelKey{branchID, productID}
	level, ok := r.s.st.levels[key]
	if !ok {
		level = *stock.NewLevel(branchID, productID, time.Now().UTC())
		r.s.st.levels[key] = level
	}
	return &level, nil
}

func (r *StockRepo) SaveLevel(ctx context.Context, level *stock.Level) error {
	defer r.s.guard(ctx)()
	if level.Quantity < 0 || level.ReservedQuantity < 0 {
		return apperror.NewBusinessRule("stock quantity cannot be negative")
	}
	r.s.st.levels[levelKey{level.BranchID, level.ProductID}] = *level
	return nil
}

func (r *StockRepo) ListByBranch(ctx context.Context, branchID id.ID) ([]stock.Level, error) {
	defer r.s.guard(ctx)()
	var result []stock.Level
	for key, level := range r.s.st.levels {
		if key.branchID == branchID {
			result = append(result, level)
		}
	}
	sort.Slice(result, func(i, j int) bool { return id.Less(result[i].ProductID, result[j].ProductID) })
	return result, nil
}

func (r *StockRepo) SumQuantityByProduct(ctx context.Context, productID id.ID) (int64, error) {
	defer r.s.guard(ctx)()
	var total int64
	for key, level := range r.s.st.levels {
		if key.productID == productID {
			total += level.Quantity
		}
	}
	return total, nil
}

func (r *StockRepo) CreateAdjustments(ctx context.Context, adjustments []stock.Adjustment) error {
	defer r.s.guard(ctx)()
	r.s.st.adjustments = append(r.s.st.adjustments, adjustments...)
	return nil
}

func (r *StockRepo) ListAdjustments(ctx context.Context, filter stock.AdjustmentFilter) ([]stock.Adjustment, error) {
	defer r.s.guard(ctx)()
	var result []stock.Adjustment
	// newest first
	for i := len(r.s.st.adjustments) - 1; i >= 0; i-- {
		adj := r.s.st.adjustments[i]
		if filter.BranchID != nil && adj.BranchID != *filter.BranchID {
			continue
		}
		if filter.ProductID != nil && adj.ProductID != *filter.ProductID {
			continue
		}
		if filter.Kind != nil && adj.Kind != *filter.Kind {
			continue
		}
		if filter.Reference != "" && adj.Reference != filter.Reference {
			continue
		}
		result = append(result, adj)
	}
	return page(result, filter.Limit, filter.Offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ stock.Repository = (*StockRepo)(nil)
