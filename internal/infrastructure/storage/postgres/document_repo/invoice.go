// Package document_repo provides PostgreSQL repositories for invoices,
// payments and returns.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/invoice"
	"posledger/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable         = "invoices"
	invoiceItemsTable     = "invoice_items"
	invoiceDiscountsTable = "invoice_discounts"
	paymentsTable         = "payments"
)

var (
	invoiceColumns  = postgres.ExtractDBColumns[invoice.Invoice]()
	itemColumns     = postgres.ExtractDBColumns[invoice.Item]()
	discountColumns = postgres.ExtractDBColumns[invoice.Discount]()
	paymentColumns  = postgres.ExtractDBColumns[invoice.Payment]()
)

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ invoice.Repository = (*InvoiceRepo)(nil)

// NewInvoiceRepo creates a new invoice repository.
func NewInvoiceRepo(txManager *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		txManager: txManager,
		builder:   postgres.Builder(),
	}
}

// Create inserts the header, items and discounts in one round-trip.
// Must run inside a transaction.
func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	queries := make([]squirrel.Sqlizer, 0, 1+len(inv.Items)+len(inv.Discounts))
	queries = append(queries, r.builder.Insert(invoicesTable).SetMap(postgres.StructToMap(inv)))
	for i := range inv.Items {
		queries = append(queries, r.builder.Insert(invoiceItemsTable).SetMap(postgres.StructToMap(&inv.Items[i])))
	}
	for i := range inv.Discounts {
		queries = append(queries, r.builder.Insert(invoiceDiscountsTable).SetMap(postgres.StructToMap(&inv.Discounts[i])))
	}

	err := postgres.NewBatchExecutor(r.txManager).ExecuteBatch(ctx, queries)
	if err == nil {
		return nil
	}

	switch name, _ := postgres.UniqueViolation(err); name {
	case "uq_invoices_idempotency_key":
		key := ""
		if inv.IdempotencyKey != nil {
			key = *inv.IdempotencyKey
		}
		return apperror.NewDuplicate("invoice", "idempotency_key", key).WithCause(err)
	case "uq_invoices_number":
		return apperror.NewDuplicate("invoice", "number", inv.Number).WithCause(err)
	}
	return fmt.Errorf("insert invoice: %w", err)
}

func (r *InvoiceRepo) headerSelect() squirrel.SelectBuilder {
	return r.builder.Select(invoiceColumns...).From(invoicesTable)
}

func (r *InvoiceRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*invoice.Invoice, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inv invoice.Invoice
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &inv, sql, args...); err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", key)
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return &inv, nil
}

// GetByID returns the invoice header.
func (r *InvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	return r.getOne(ctx, r.headerSelect().Where(squirrel.Eq{"id": invoiceID}), invoiceID.String())
}

// GetByNumber returns the invoice header.
func (r *InvoiceRepo) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return r.getOne(ctx, r.headerSelect().Where(squirrel.Eq{"number": number}), number)
}

// GetByIdempotencyKey returns the invoice header.
func (r *InvoiceRepo) GetByIdempotencyKey(ctx context.Context, key string) (*invoice.Invoice, error) {
	return r.getOne(ctx, r.headerSelect().Where(squirrel.Eq{"idempotency_key": key}), key)
}

// GetByIDForUpdate locks the invoice row.
func (r *InvoiceRepo) GetByIDForUpdate(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	sql, args, err := r.headerSelect().
		Where(squirrel.Eq{"id": invoiceID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inv invoice.Invoice
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &inv, sql, args...); err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", invoiceID.String())
		}
		return nil, fmt.Errorf("get invoice for update: %w", err)
	}
	return &inv, nil
}

// Update writes status, balances and notes with an optimistic version check.
func (r *InvoiceRepo) Update(ctx context.Context, inv *invoice.Invoice) error {
	sql, args, err := r.updateQuery(inv).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("invoice", inv.ID.String())
	}
	return nil
}

func (r *InvoiceRepo) updateQuery(inv *invoice.Invoice) squirrel.UpdateBuilder {
	return r.builder.Update(invoicesTable).
		Set("status", inv.Status).
		Set("paid_amount", inv.PaidAmount).
		Set("outstanding_balance", inv.OutstandingBalance).
		Set("notes", inv.Notes).
		Set("updated_at", inv.UpdatedAt).
		Set("version", inv.Version).
		Where(squirrel.Eq{"id": inv.ID, "version": inv.Version - 1})
}

// GetItems returns invoice lines in line order.
func (r *InvoiceRepo) GetItems(ctx context.Context, invoiceID id.ID) ([]invoice.Item, error) {
	var items []invoice.Item
	err := r.selectChildren(ctx, &items, invoiceItemsTable, itemColumns, invoiceID, "line_no")
	return items, err
}

// GetDiscounts returns discounts in application order.
func (r *InvoiceRepo) GetDiscounts(ctx context.Context, invoiceID id.ID) ([]invoice.Discount, error) {
	var discounts []invoice.Discount
	err := r.selectChildren(ctx, &discounts, invoiceDiscountsTable, discountColumns, invoiceID, "applied_at", "id")
	return discounts, err
}

// GetPayments returns payments oldest first.
func (r *InvoiceRepo) GetPayments(ctx context.Context, invoiceID id.ID) ([]invoice.Payment, error) {
	var payments []invoice.Payment
	err := r.selectChildren(ctx, &payments, paymentsTable, paymentColumns, invoiceID, "payment_date", "id")
	return payments, err
}

func (r *InvoiceRepo) selectChildren(ctx context.Context, dst any, table string, columns []string, invoiceID id.ID, orderBy ...string) error {
	sql, args, err := r.builder.Select(columns...).
		From(table).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy(orderBy...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), dst, sql, args...); err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	return nil
}

// List returns invoice headers, newest first.
func (r *InvoiceRepo) List(ctx context.Context, filter invoice.Filter) ([]invoice.Invoice, error) {
	sql, args, err := r.listQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var invoices []invoice.Invoice
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &invoices, sql, args...); err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	return invoices, nil
}

func (r *InvoiceRepo) listQuery(filter invoice.Filter) squirrel.SelectBuilder {
	q := r.headerSelect()

	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.CustomerType != "" {
		q = q.Where(squirrel.Eq{"customer_type": filter.CustomerType})
	}
	if filter.CashierID != "" {
		q = q.Where(squirrel.Eq{"cashier_id": filter.CashierID})
	}
	if len(filter.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": filter.Statuses})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"issue_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"issue_date": *filter.To})
	}
	if filter.MinAmount != nil {
		q = q.Where(squirrel.GtOrEq{"total_amount": *filter.MinAmount})
	}
	if filter.MaxAmount != nil {
		q = q.Where(squirrel.LtOrEq{"total_amount": *filter.MaxAmount})
	}

	return paginate(q.OrderBy("created_at DESC", "number DESC"), filter.Limit, filter.Offset)
}

func paginate(q squirrel.SelectBuilder, limit, offset int) squirrel.SelectBuilder {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}
