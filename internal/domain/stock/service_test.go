package stock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"posledger/internal/app/apptest"
	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/audit"
	"posledger/internal/domain/events"
	"posledger/internal/domain/stock"
	"posledger/pkg/logger"
)

func TestAdjustStock_Restock(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "Coffee", "10.00", "10")

	adj, err := f.Services.Stock.AdjustStock(f.Ctx(), stock.AdjustRequest{
		BranchID:  f.Branch.ID,
		ProductID: p.ID,
		Kind:      stock.KindRestock,
		Quantity:  12,
		Reason:    "weekly delivery",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), adj.QuantityBefore)
	assert.Equal(t, int64(12), adj.QuantityAfter)
	assert.Equal(t, "cashier-1", adj.AdjustedBy)

	view, err := f.Services.Stock.GetStockLevel(f.Ctx(), f.Branch.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), view.Quantity)
	assert.Equal(t, int64(12), view.AvailableQuantity)
	assert.NotNil(t, view.LastRestockedAt)
	assert.False(t, view.IsLowStock)

	var kinds []string
	for _, e := range f.Store.OutboxEvents() {
		kinds = append(kinds, e.EventType)
	}
	assert.Contains(t, kinds, events.StockAdjusted)
	assert.NotEmpty(t, f.Audit.Events("stock_level", p.ID.String()))
}

func TestAdjustStock_DecreaseBelowZeroLeavesRowUnchanged(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "Tea", "4.00", "0")
	f.SetStock(t, f.Branch, p, 3)

	_, err := f.Services.Stock.AdjustStock(f.Ctx(), stock.AdjustRequest{
		BranchID:  f.Branch.ID,
		ProductID: p.ID,
		Kind:      stock.KindDamage,
		Quantity:  4,
	})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, int64(3), appErr.Details["available"])
	assert.Equal(t, int64(4), appErr.Details["requested"])

	assert.Equal(t, int64(3), f.Quantity(t, f.Branch, p))
	adjustments, err := f.Services.Stock.ListAdjustments(f.Ctx(), stock.AdjustmentFilter{ProductID: &p.ID})
	require.NoError(t, err)
	assert.Len(t, adjustments, 1)
}

func TestAdjustStock_Validation(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "Tea", "4.00", "0")

	_, err := f.Services.Stock.AdjustStock(f.Ctx(), stock.AdjustRequest{
		BranchID: f.Branch.ID, ProductID: p.ID, Kind: stock.KindRestock, Quantity: 0,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.Services.Stock.AdjustStock(f.Ctx(), stock.AdjustRequest{
		BranchID: id.New(), ProductID: p.ID, Kind: stock.KindRestock, Quantity: 1,
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestTransferStock(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "Mug", "8.00", "0")
	f.SetStock(t, f.Branch, p, 10)

	result, err := f.Services.Stock.TransferStock(f.Ctx(), stock.TransferRequest{
		FromBranchID: f.Branch.ID,
		ToBranchID:   f.Branch2.ID,
		ProductID:    p.ID,
		Quantity:     4,
	})
	require.NoError(t, err)

	assert.Equal(t, stock.KindTransferOut, result.Out.Kind)
	assert.Equal(t, stock.KindTransferIn, result.In.Kind)
	assert.Equal(t, int64(6), f.Quantity(t, f.Branch, p))
	assert.Equal(t, int64(4), f.Quantity(t, f.Branch2, p))

	total, err := f.Services.Stock.TotalAcrossBranches(f.Ctx(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
	assert.NotEmpty(t, f.Audit.Events("stock_level", p.ID.String()))
	assert.Equal(t, audit.ActionStockTransfer, f.Audit.Events("stock_level", p.ID.String())[1].Action)
}

func TestTransferStock_Failures(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "Mug", "8.00", "0")

	req := stock.TransferRequest{FromBranchID: f.Branch.ID, ToBranchID: f.Branch.ID, ProductID: p.ID, Quantity: 1}
	_, err := f.Services.Stock.TransferStock(f.Ctx(), req)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	req.ToBranchID = f.Branch2.ID
	_, err = f.Services.Stock.TransferStock(f.Ctx(), req)
	assert.True(t, apperror.IsNotFound(err), "source row must exist")

	f.SetStock(t, f.Branch, p, 2)
	req.Quantity = 3
	_, err = f.Services.Stock.TransferStock(f.Ctx(), req)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, int64(2), f.Quantity(t, f.Branch, p))

	_, err = f.Services.Stock.GetStockLevel(f.Ctx(), f.Branch2.ID, p.ID)
	assert.True(t, apperror.IsNotFound(err), "failed transfer must not leave a destination row")
}

func TestConsume_ChecksEveryLineBeforeDecrementing(t *testing.T) {
	f := apptest.New(t)
	a := f.AddProduct(t, "A", "1.00", "0")
	b := f.AddProduct(t, "B", "1.00", "0")
	f.SetStock(t, f.Branch, a, 5)
	f.SetStock(t, f.Branch, b, 1)

	ctx := f.Ctx()
	err := f.Services.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := f.Services.Stock.Consume(ctx, f.Branch.ID, []stock.Line{
			{ProductID: a.ID, ProductName: "A", Quantity: 2},
			{ProductID: b.ID, ProductName: "B", Quantity: 2},
		}, "INV-TEST")
		return err
	})

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, "B", appErr.Details["product_name"])
	assert.Equal(t, int64(5), f.Quantity(t, f.Branch, a))
	assert.Equal(t, int64(1), f.Quantity(t, f.Branch, b))
}

func TestConsume_AggregatesDuplicateLines(t *testing.T) {
	f := apptest.New(t)
	a := f.AddProduct(t, "A", "1.00", "0")
	f.SetStock(t, f.Branch, a, 3)

	err := f.Services.TxManager.RunInTransaction(f.Ctx(), func(ctx context.Context) error {
		_, err := f.Services.Stock.Consume(ctx, f.Branch.ID, []stock.Line{
			{ProductID: a.ID, ProductName: "A", Quantity: 2},
			{ProductID: a.ID, ProductName: "A", Quantity: 2},
		}, "INV-TEST")
		return err
	})
	require.Error(t, err)

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(4), appErr.Details["requested"])
	assert.Equal(t, int64(3), f.Quantity(t, f.Branch, a))
}

func TestListLowStock(t *testing.T) {
	f := apptest.New(t)
	low := f.AddProduct(t, "Low", "1.00", "0")
	ok := f.AddProduct(t, "Ok", "1.00", "0")
	f.SetStock(t, f.Branch, low, 2)
	f.SetStock(t, f.Branch, ok, 50)

	views, err := f.Services.Stock.ListLowStock(f.Ctx(), f.Branch.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, low.ID, views[0].ProductID)
	assert.Equal(t, "BR01", views[0].BranchCode)

	all, err := f.Services.Stock.ListLevels(f.Ctx(), f.Branch.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAdjustmentKinds(t *testing.T) {
	for _, k := range []stock.AdjustmentKind{stock.KindRestock, stock.KindReturn, stock.KindTransferIn, stock.KindAdjustment, stock.KindInitialStock} {
		assert.True(t, k.IncreasesStock(), k)
	}
	for _, k := range []stock.AdjustmentKind{stock.KindSale, stock.KindDamage, stock.KindTheft, stock.KindTransferOut, stock.KindExpired} {
		assert.False(t, k.IncreasesStock(), k)
	}
	assert.False(t, stock.AdjustmentKind("LOST").IsValid())
	assert.Equal(t, int64(-3), stock.KindTheft.Delta(3))
}

func TestAdjustStock_LogKeepsActorBranchSeparate(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "Coffee", "10.00", "10")

	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.WithLogger(f.Ctx(), &logger.Logger{SugaredLogger: zap.New(core).Sugar()})

	_, err := f.Services.Stock.AdjustStock(ctx, stock.AdjustRequest{
		BranchID:  f.Branch2.ID,
		ProductID: p.ID,
		Kind:      stock.KindRestock,
		Quantity:  3,
		Reason:    "transfer in",
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("stock adjusted").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, f.Branch.ID.String(), fields["branch_id"])
	assert.Contains(t, fields, "stock_branch_id")
}
