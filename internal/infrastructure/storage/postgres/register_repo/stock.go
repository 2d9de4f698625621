// Package register_repo provides the PostgreSQL stock ledger repository.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/stock"
	"posledger/internal/infrastructure/storage/postgres"
)

const (
	stockLevelsTable      = "stock_levels"
	stockAdjustmentsTable = "stock_adjustments"
)

var (
	levelColumns      = postgres.ExtractDBColumns[stock.Level]()
	adjustmentColumns = postgres.ExtractDBColumns[stock.Adjustment]()
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   postgres.Builder(),
	}
}

func (r *StockRepo) levelQuery(branchID, productID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(levelColumns...).
		From(stockLevelsTable).
		Where(squirrel.Eq{"branch_id": branchID, "product_id": productID}).
		Limit(1)
}

// GetLevel returns the row for the pair.
func (r *StockRepo) GetLevel(ctx context.Context, branchID, productID id.ID) (*stock.Level, error) {
	sql, args, err := r.levelQuery(branchID, productID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var level stock.Level
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &level, sql, args...); err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("stock level", productID.String()).
				WithDetail("branch_id", branchID.String())
		}
		return nil, fmt.Errorf("get stock level: %w", err)
	}
	return &level, nil
}

// GetLevelForUpdate locks the row. Absent rows return (nil, nil).
func (r *StockRepo) GetLevelForUpdate(ctx context.Context, branchID, productID id.ID) (*stock.Level, error) {
	sql, args, err := r.levelQuery(branchID, productID).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var level stock.Level
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &level, sql, args...); err != nil {
		if postgres.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock level for update: %w", err)
	}
	return &level, nil
}

// LockOrCreateLevel inserts a zero row if needed, then locks it.
// ON CONFLICT DO NOTHING makes concurrent first writers converge on one row.
func (r *StockRepo) LockOrCreateLevel(ctx context.Context, branchID, productID id.ID) (*stock.Level, error) {
	fresh := stock.NewLevel(branchID, productID, time.Now().UTC())

	insert, args, err := r.builder.Insert(stockLevelsTable).
		SetMap(postgres.StructToMap(fresh)).
		Suffix("ON CONFLICT (branch_id, product_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, insert, args...); err != nil {
		return nil, fmt.Errorf("insert stock level: %w", err)
	}

	level, err := r.GetLevelForUpdate(ctx, branchID, productID)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, fmt.Errorf("stock level %s/%s vanished after insert", branchID, productID)
	}
	return level, nil
}

// SaveLevel writes the mutable columns with a version check.
func (r *StockRepo) SaveLevel(ctx context.Context, level *stock.Level) error {
	sql, args, err := r.builder.Update(stockLevelsTable).
		Set("quantity", level.Quantity).
		Set("reserved_quantity", level.ReservedQuantity).
		Set("last_restocked_at", level.LastRestockedAt).
		Set("updated_at", level.UpdatedAt).
		Set("version", level.Version).
		Where(squirrel.Eq{"id": level.ID, "version": level.Version - 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if _, ok := postgres.CheckViolation(err); ok {
			return apperror.NewBusinessRule("stock quantity cannot be negative").WithCause(err)
		}
		return fmt.Errorf("update stock level: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("stock level", level.ID.String())
	}
	return nil
}

// ListByBranch returns all rows of a branch ordered by product.
func (r *StockRepo) ListByBranch(ctx context.Context, branchID id.ID) ([]stock.Level, error) {
	sql, args, err := r.builder.Select(levelColumns...).
		From(stockLevelsTable).
		Where(squirrel.Eq{"branch_id": branchID}).
		OrderBy("product_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var levels []stock.Level
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &levels, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock levels: %w", err)
	}
	return levels, nil
}

// SumQuantityByProduct totals quantity across branches.
func (r *StockRepo) SumQuantityByProduct(ctx context.Context, productID id.ID) (int64, error) {
	sql, args, err := r.builder.Select("COALESCE(SUM(quantity), 0)").
		From(stockLevelsTable).
		Where(squirrel.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var total int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum stock: %w", err)
	}
	return total, nil
}

// CreateAdjustments uses COPY inside a transaction and a multi-row INSERT otherwise.
func (r *StockRepo) CreateAdjustments(ctx context.Context, adjustments []stock.Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(adjustments))
	for _, a := range adjustments {
		rows = append(rows, adjustmentRow(a))
	}

	if r.txManager.InTransaction(ctx) {
		inserter := postgres.NewBatchInserter(r.txManager)
		if _, err := inserter.CopyFromSlice(ctx, stockAdjustmentsTable, adjustmentColumns, rows); err != nil {
			return fmt.Errorf("copy adjustments: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(stockAdjustmentsTable).Columns(adjustmentColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert adjustments: %w", err)
	}
	return nil
}

// adjustmentRow orders values like adjustmentColumns.
func adjustmentRow(a stock.Adjustment) []any {
	m := postgres.StructToMap(a)
	row := make([]any, len(adjustmentColumns))
	for i, col := range adjustmentColumns {
		row[i] = m[col]
	}
	return row
}

// ListAdjustments returns adjustments newest first.
func (r *StockRepo) ListAdjustments(ctx context.Context, filter stock.AdjustmentFilter) ([]stock.Adjustment, error) {
	sql, args, err := r.adjustmentsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var adjustments []stock.Adjustment
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &adjustments, sql, args...); err != nil {
		return nil, fmt.Errorf("select adjustments: %w", err)
	}
	return adjustments, nil
}

func (r *StockRepo) adjustmentsQuery(filter stock.AdjustmentFilter) squirrel.SelectBuilder {
	q := r.builder.Select(adjustmentColumns...).From(stockAdjustmentsTable)

	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.Reference != "" {
		q = q.Where(squirrel.Eq{"reference": filter.Reference})
	}

	q = q.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}
