package returns_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/app/apptest"
	"posledger/internal/core/apperror"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/invoice"
	"posledger/internal/domain/returns"
	"posledger/internal/domain/stock"
)

type setup struct {
	f       *apptest.Fixture
	product *catalog.Product
	invoice *invoice.Invoice
}

// newSetup sells 3 of 5 units of P1 in BR01, leaving 2 on hand.
func newSetup(t *testing.T) setup {
	t.Helper()
	f := apptest.New(t)
	p := f.AddProduct(t, "P1", "100.00", "14")
	f.SetStock(t, f.Branch, p, 5)
	inv, err := f.Services.Invoice.Create(f.Ctx(), invoice.CreateRequest{
		BranchID: f.Branch.ID,
		Items:    []invoice.ItemRequest{{ProductID: p.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	return setup{f: f, product: p, invoice: inv}
}

func (s setup) create(qty int64) (*returns.Return, error) {
	return s.f.Services.Returns.Create(s.f.Ctx(), returns.CreateRequest{
		InvoiceID: s.invoice.ID,
		Reason:    returns.ReasonDefective,
		Items:     []returns.ItemRequest{{ProductID: s.product.ID, Quantity: qty}},
	})
}

func TestCreate_ExceedingInvoicedQuantity(t *testing.T) {
	s := newSetup(t)

	_, err := s.create(4)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
	assert.Equal(t, "Return quantity (4) exceeds invoiced quantity (3)", appErr.Message)

	_, err = s.f.Services.Returns.GetByInvoice(s.f.Ctx(), s.invoice.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreate_PricesFromInvoice(t *testing.T) {
	s := newSetup(t)

	ret, err := s.create(2)
	require.NoError(t, err)

	assert.Equal(t, returns.StatusPending, ret.Status)
	assert.Equal(t, "RET-20250615-BR01-00001", ret.Number)
	assert.Equal(t, "200.00", ret.TotalReturnAmount.StringFixed(2))
	require.Len(t, ret.Items, 1)
	assert.Equal(t, "100.00", ret.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, int64(2), s.f.Quantity(t, s.f.Branch, s.product), "pending return does not touch stock")

	_, err = s.create(1)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule), "one return per invoice")
}

func TestCreate_UnknownProduct(t *testing.T) {
	s := newSetup(t)
	other := s.f.AddProduct(t, "Other", "1.00", "0")

	_, err := s.f.Services.Returns.Create(s.f.Ctx(), returns.CreateRequest{
		InvoiceID: s.invoice.ID,
		Reason:    returns.ReasonWrongItem,
		Items:     []returns.ItemRequest{{ProductID: other.ID, Quantity: 1}},
	})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Product not found in original invoice", appErr.Message)
}

func TestCreate_Guards(t *testing.T) {
	s := newSetup(t)

	_, err := s.f.Services.Returns.Create(context.Background(), returns.CreateRequest{
		InvoiceID: s.invoice.ID,
		Reason:    returns.ReasonOther,
		Items:     []returns.ItemRequest{{ProductID: s.product.ID, Quantity: 1}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	_, err = s.f.Services.Invoice.Cancel(s.f.Ctx(), s.invoice.ID, "")
	require.NoError(t, err)
	_, err = s.create(1)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestApprove_RestoresStock(t *testing.T) {
	s := newSetup(t)
	ret, err := s.create(2)
	require.NoError(t, err)

	approved, err := s.f.Services.Returns.Approve(s.f.Ctx(), ret.ID)
	require.NoError(t, err)

	assert.Equal(t, returns.StatusCompleted, approved.Status)
	assert.Equal(t, int64(4), s.f.Quantity(t, s.f.Branch, s.product))

	adjustments, err := s.f.Services.Stock.ListAdjustments(s.f.Ctx(), stock.AdjustmentFilter{Reference: ret.Number})
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
	assert.Equal(t, stock.KindReturn, adjustments[0].Kind)

	inv, err := s.f.Services.Invoice.Get(s.f.Ctx(), s.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPending, inv.Status, "approval does not refund")

	_, err = s.f.Services.Returns.Approve(s.f.Ctx(), ret.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestReject_AppendsReason(t *testing.T) {
	s := newSetup(t)
	ret, err := s.f.Services.Returns.Create(s.f.Ctx(), returns.CreateRequest{
		InvoiceID: s.invoice.ID,
		Reason:    returns.ReasonCustomerRequest,
		Notes:     "box opened",
		Items:     []returns.ItemRequest{{ProductID: s.product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	rejected, err := s.f.Services.Returns.Reject(s.f.Ctx(), ret.ID, "outside policy")
	require.NoError(t, err)

	assert.Equal(t, returns.StatusRejected, rejected.Status)
	assert.Equal(t, "box opened\nRejection reason: outside policy", rejected.Notes)
	assert.Equal(t, int64(2), s.f.Quantity(t, s.f.Branch, s.product))

	list, err := s.f.Services.Returns.List(s.f.Ctx(), returns.Filter{Statuses: []returns.Status{returns.StatusRejected}})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
