package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/returns"
	"posledger/internal/infrastructure/storage/postgres"
)

const (
	returnsTable     = "returns"
	returnItemsTable = "return_items"
)

var (
	returnColumns     = postgres.ExtractDBColumns[returns.Return]()
	returnItemColumns = postgres.ExtractDBColumns[returns.Item]()
)

// ReturnRepo implements returns.Repository.
type ReturnRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ returns.Repository = (*ReturnRepo)(nil)

// NewReturnRepo creates a new return repository.
func NewReturnRepo(txManager *postgres.TxManager) *ReturnRepo {
	return &ReturnRepo{
		txManager: txManager,
		builder:   postgres.Builder(),
	}
}

// Create inserts the return and its items. Must run inside a transaction.
func (r *ReturnRepo) Create(ctx context.Context, ret *returns.Return) error {
	queries := make([]squirrel.Sqlizer, 0, 1+len(ret.Items))
	queries = append(queries, r.builder.Insert(returnsTable).SetMap(postgres.StructToMap(ret)))
	for i := range ret.Items {
		queries = append(queries, r.builder.Insert(returnItemsTable).SetMap(postgres.StructToMap(&ret.Items[i])))
	}

	err := postgres.NewBatchExecutor(r.txManager).ExecuteBatch(ctx, queries)
	if err == nil {
		return nil
	}

	switch name, _ := postgres.UniqueViolation(err); name {
	case "uq_returns_invoice_id":
		return apperror.NewDuplicate("return", "invoice_id", ret.InvoiceID.String()).WithCause(err)
	case "uq_returns_number":
		return apperror.NewDuplicate("return", "number", ret.Number).WithCause(err)
	}
	return fmt.Errorf("insert return: %w", err)
}

func (r *ReturnRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*returns.Return, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ret returns.Return
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &ret, sql, args...); err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("return", key)
		}
		return nil, fmt.Errorf("get return: %w", err)
	}
	return &ret, nil
}

func (r *ReturnRepo) headerSelect() squirrel.SelectBuilder {
	return r.builder.Select(returnColumns...).From(returnsTable)
}

// GetByID returns the return header.
func (r *ReturnRepo) GetByID(ctx context.Context, returnID id.ID) (*returns.Return, error) {
	return r.getOne(ctx, r.headerSelect().Where(squirrel.Eq{"id": returnID}).Limit(1), returnID.String())
}

// GetByIDForUpdate locks the return row.
func (r *ReturnRepo) GetByIDForUpdate(ctx context.Context, returnID id.ID) (*returns.Return, error) {
	q := r.headerSelect().Where(squirrel.Eq{"id": returnID}).Suffix("FOR UPDATE")
	return r.getOne(ctx, q, returnID.String())
}

// GetByInvoice returns the single return of an invoice.
func (r *ReturnRepo) GetByInvoice(ctx context.Context, invoiceID id.ID) (*returns.Return, error) {
	return r.getOne(ctx, r.headerSelect().Where(squirrel.Eq{"invoice_id": invoiceID}).Limit(1), invoiceID.String())
}

// GetItems returns the return lines.
func (r *ReturnRepo) GetItems(ctx context.Context, returnID id.ID) ([]returns.Item, error) {
	sql, args, err := r.builder.Select(returnItemColumns...).
		From(returnItemsTable).
		Where(squirrel.Eq{"return_id": returnID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []returns.Item
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select return items: %w", err)
	}
	return items, nil
}

// Update writes status and notes with an optimistic version check.
func (r *ReturnRepo) Update(ctx context.Context, ret *returns.Return) error {
	sql, args, err := r.builder.Update(returnsTable).
		Set("status", ret.Status).
		Set("notes", ret.Notes).
		Set("updated_at", ret.UpdatedAt).
		Set("version", ret.Version).
		Where(squirrel.Eq{"id": ret.ID, "version": ret.Version - 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update return: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("return", ret.ID.String())
	}
	return nil
}

// List returns return headers, newest number first.
func (r *ReturnRepo) List(ctx context.Context, filter returns.Filter) ([]returns.Return, error) {
	sql, args, err := r.listQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var list []returns.Return
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &list, sql, args...); err != nil {
		return nil, fmt.Errorf("select returns: %w", err)
	}
	return list, nil
}

func (r *ReturnRepo) listQuery(filter returns.Filter) squirrel.SelectBuilder {
	q := r.headerSelect()

	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.InvoiceID != nil {
		q = q.Where(squirrel.Eq{"invoice_id": *filter.InvoiceID})
	}
	if len(filter.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": filter.Statuses})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"return_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"return_date": *filter.To})
	}

	return paginate(q.OrderBy("number DESC"), filter.Limit, filter.Offset)
}
