package document_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/invoice"
	"posledger/internal/domain/returns"
)

func TestInvoiceListQuery_Filters(t *testing.T) {
	branchID := id.New()
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)

	filter := invoice.Filter{
		BranchID:  &branchID,
		CashierID: "cashier-1",
		Statuses:  []invoice.Status{invoice.StatusPending, invoice.StatusPartiallyPaid},
		From:      &from,
		To:        &to,
	}.Normalize()

	sql, args, err := NewInvoiceRepo(nil).listQuery(filter).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM invoices WHERE branch_id = $1 AND cashier_id = $2 AND status IN ($3,$4) AND issue_date >= $5 AND issue_date <= $6")
	assert.Contains(t, sql, "ORDER BY created_at DESC, number DESC LIMIT 50")
	assert.NotContains(t, sql, "OFFSET")
	assert.Equal(t, []any{
		branchID.String(), "cashier-1",
		invoice.StatusPending, invoice.StatusPartiallyPaid,
		from, to,
	}, args)
}

func TestInvoiceListQuery_AmountAndCustomerType(t *testing.T) {
	lo, hi := types.MustMoney("10.00"), types.MustMoney("250.50")
	filter := invoice.Filter{
		CustomerType: invoice.CustomerWholesale,
		MinAmount:    &lo,
		MaxAmount:    &hi,
	}.Normalize()

	sql, args, err := NewInvoiceRepo(nil).listQuery(filter).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM invoices WHERE customer_type = $1 AND total_amount >= $2 AND total_amount <= $3")
	require.Len(t, args, 3)
	assert.Equal(t, invoice.CustomerWholesale, args[0])
}

func TestInvoiceUpdateQuery_ChecksPreviousVersion(t *testing.T) {
	inv := &invoice.Invoice{
		Base:               entity.NewBase(time.Now()),
		Status:             invoice.StatusPaid,
		PaidAmount:         types.MustMoney("100.00"),
		OutstandingBalance: types.Zero(),
	}
	inv.Version = 4

	sql, args, err := NewInvoiceRepo(nil).updateQuery(inv).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE invoices SET status = $1, paid_amount = $2, outstanding_balance = $3, notes = $4, updated_at = $5, version = $6 WHERE id = $7 AND version = $8",
		sql)
	assert.Equal(t, 4, args[5])
	assert.Equal(t, 3, args[7])
}

func TestReturnListQuery_Paging(t *testing.T) {
	invoiceID := id.New()
	filter := returns.Filter{
		InvoiceID: &invoiceID,
		Statuses:  []returns.Status{returns.StatusPending},
		Limit:     10,
		Offset:    20,
	}

	sql, args, err := NewReturnRepo(nil).listQuery(filter).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE invoice_id = $1 AND status IN ($2)")
	assert.Contains(t, sql, "ORDER BY number DESC LIMIT 10 OFFSET 20")
	assert.Len(t, args, 2)
}

func TestPaymentByBranchQuery(t *testing.T) {
	sql, _, err := NewPaymentRepo(nil).byBranchQuery(id.New(), 25, 0).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM payments WHERE branch_id = $1 ORDER BY payment_date DESC, id DESC LIMIT 25")
}

func TestColumns_SkipChildCollections(t *testing.T) {
	assert.NotContains(t, invoiceColumns, "items")
	assert.Contains(t, invoiceColumns, "idempotency_key")
	assert.Contains(t, returnColumns, "total_return_amount")
	assert.Contains(t, itemColumns, "line_total")
}
