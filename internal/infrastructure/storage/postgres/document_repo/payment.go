package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"posledger/internal/core/id"
	"posledger/internal/domain/invoice"
	"posledger/internal/domain/payment"
	"posledger/internal/infrastructure/storage/postgres"
)

// PaymentRepo implements payment.Repository.
type PaymentRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ payment.Repository = (*PaymentRepo)(nil)

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(txManager *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{
		txManager: txManager,
		builder:   postgres.Builder(),
	}
}

// Create inserts a payment.
func (r *PaymentRepo) Create(ctx context.Context, p *invoice.Payment) error {
	sql, args, err := r.builder.Insert(paymentsTable).SetMap(postgres.StructToMap(p)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// ListByInvoice returns payments oldest first.
func (r *PaymentRepo) ListByInvoice(ctx context.Context, invoiceID id.ID) ([]invoice.Payment, error) {
	q := r.builder.Select(paymentColumns...).
		From(paymentsTable).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy("payment_date", "id")
	return r.selectPayments(ctx, q)
}

// ListByBranch returns the newest payments of a branch.
func (r *PaymentRepo) ListByBranch(ctx context.Context, branchID id.ID, limit, offset int) ([]invoice.Payment, error) {
	return r.selectPayments(ctx, r.byBranchQuery(branchID, limit, offset))
}

func (r *PaymentRepo) byBranchQuery(branchID id.ID, limit, offset int) squirrel.SelectBuilder {
	q := r.builder.Select(paymentColumns...).
		From(paymentsTable).
		Where(squirrel.Eq{"branch_id": branchID}).
		OrderBy("payment_date DESC", "id DESC")
	return paginate(q, limit, offset)
}

func (r *PaymentRepo) selectPayments(ctx context.Context, q squirrel.SelectBuilder) ([]invoice.Payment, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	payments := []invoice.Payment{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &payments, sql, args...); err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	return payments, nil
}
