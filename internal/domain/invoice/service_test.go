package invoice_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"posledger/internal/app/apptest"
	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/audit"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/events"
	"posledger/internal/domain/invoice"
	"posledger/internal/domain/promo"
	"posledger/internal/domain/stock"
	"posledger/pkg/logger"
)

func money(s string) types.Money { return types.MustMoney(s) }

func assertMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2))
}

func assertBalanced(t *testing.T, inv *invoice.Invoice) {
	t.Helper()
	assert.True(t, inv.TotalAmount.Equal(inv.Subtotal.Add(inv.TaxAmount).Sub(inv.DiscountAmount)), "total invariant")
	assert.True(t, inv.OutstandingBalance.Equal(inv.TotalAmount.Sub(inv.PaidAmount)), "outstanding invariant")
}

func request(branch *catalog.Branch, product *catalog.Product, qty int64) invoice.CreateRequest {
	return invoice.CreateRequest{
		BranchID: branch.ID,
		Items:    []invoice.ItemRequest{{ProductID: product.ID, Quantity: qty}},
	}
}

func TestCreate_ConsumesStockAndPrices(t *testing.T) {
	f := apptest.New(t)
	p1 := f.AddProduct(t, "P1", "100.00", "14")
	f.SetStock(t, f.Branch, p1, 5)

	inv, err := f.Services.Invoice.Create(f.Ctx(), request(f.Branch, p1, 3))
	require.NoError(t, err)

	assert.Equal(t, int64(2), f.Quantity(t, f.Branch, p1))
	assertMoney(t, "300.00", inv.Subtotal)
	assertMoney(t, "42.00", inv.TaxAmount)
	assertMoney(t, "342.00", inv.TotalAmount)
	assertMoney(t, "342.00", inv.OutstandingBalance)
	assertMoney(t, "0.00", inv.PaidAmount)
	assert.Equal(t, invoice.StatusPending, inv.Status)
	assert.Equal(t, invoice.CustomerWalkIn, inv.CustomerType)
	assert.Equal(t, "cashier-1", inv.CashierID)
	assert.Equal(t, "INV-20250615-BR01-00001", inv.Number)
	assertBalanced(t, inv)

	require.Len(t, inv.Items, 1)
	item := inv.Items[0]
	assertMoney(t, "100.00", item.UnitPrice)
	assertMoney(t, "342.00", item.LineTotal)

	adjustments, err := f.Services.Stock.ListAdjustments(f.Ctx(), stock.AdjustmentFilter{Reference: inv.Number})
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
	assert.Equal(t, stock.KindSale, adjustments[0].Kind)

	loaded, err := f.Services.Invoice.GetByNumber(f.Ctx(), inv.Number)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, loaded.ID)
	assert.Len(t, loaded.Items, 1)
}

func TestCreate_PercentageDiscount(t *testing.T) {
	f := apptest.New(t)
	p1 := f.AddProduct(t, "P1", "100.00", "14")
	f.SetStock(t, f.Branch, p1, 5)

	req := request(f.Branch, p1, 3)
	req.Discounts = []invoice.DiscountRequest{{Kind: promo.KindPercentage, Value: money("10")}}

	inv, err := f.Services.Invoice.Create(f.Ctx(), req)
	require.NoError(t, err)

	assertMoney(t, "34.20", inv.DiscountAmount)
	assertMoney(t, "307.80", inv.TotalAmount)
	require.Len(t, inv.Discounts, 1)
	assert.Equal(t, "cashier-1", inv.Discounts[0].AppliedBy)
	assertBalanced(t, inv)
}

func TestCreate_StackedDiscountsShareTheGrossBase(t *testing.T) {
	f := apptest.New(t)
	p1 := f.AddProduct(t, "P1", "100.00", "14")
	f.SetStock(t, f.Branch, p1, 5)

	req := request(f.Branch, p1, 3)
	req.Discounts = []invoice.DiscountRequest{
		{Kind: promo.KindPercentage, Value: money("10")},
		{Kind: promo.KindPercentage, Value: money("10")},
	}

	inv, err := f.Services.Invoice.Create(f.Ctx(), req)
	require.NoError(t, err)

	require.Len(t, inv.Discounts, 2)
	assertMoney(t, "34.20", inv.Discounts[0].Amount)
	assertMoney(t, "34.20", inv.Discounts[1].Amount)
	assertMoney(t, "68.40", inv.DiscountAmount)
	assertMoney(t, "273.60", inv.TotalAmount)
	assertBalanced(t, inv)
}

func TestCreate_DiscountsAboveGrossAreRejected(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "Cheap", "10.00", "0")
	f.SetStock(t, f.Branch, p, 5)

	req := request(f.Branch, p, 1)
	req.Discounts = []invoice.DiscountRequest{
		{Kind: promo.KindFixedAmount, Value: money("8")},
		{Kind: promo.KindFixedAmount, Value: money("8")},
	}

	_, err := f.Services.Invoice.Create(f.Ctx(), req)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule), err)
	assert.Equal(t, int64(5), f.Quantity(t, f.Branch, p))

	invoices, err := f.Services.Invoice.List(f.Ctx(), invoice.Filter{BranchID: &f.Branch.ID})
	require.NoError(t, err)
	assert.Empty(t, invoices)

	req.Discounts = []invoice.DiscountRequest{
		{Kind: promo.KindFixedAmount, Value: money("4")},
		{Kind: promo.KindFixedAmount, Value: money("6")},
	}
	inv, err := f.Services.Invoice.Create(f.Ctx(), req)
	require.NoError(t, err)
	assertMoney(t, "0.00", inv.TotalAmount)
	assertBalanced(t, inv)
}

func TestCreate_InsufficientStockLeavesNothingBehind(t *testing.T) {
	f := apptest.New(t)
	a := f.AddProduct(t, "A", "1.00", "0")
	b := f.AddProduct(t, "B", "1.00", "0")
	f.SetStock(t, f.Branch, a, 5)
	f.SetStock(t, f.Branch, b, 1)

	_, err := f.Services.Invoice.Create(f.Ctx(), invoice.CreateRequest{
		BranchID: f.Branch.ID,
		Items: []invoice.ItemRequest{
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 3},
		},
	})

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, b.ID.String(), appErr.Details["product_id"])
	assert.Equal(t, int64(5), f.Quantity(t, f.Branch, a))

	list, err := f.Services.Invoice.List(f.Ctx(), invoice.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	// the failed attempt did not consume a number
	f.SetStock(t, f.Branch, b, 10)
	inv, err := f.Services.Invoice.Create(f.Ctx(), request(f.Branch, b, 1))
	require.NoError(t, err)
	assert.Equal(t, "INV-20250615-BR01-00001", inv.Number)
}

func TestCreate_RequestValidation(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "A", "1.00", "0")

	tests := []struct {
		name string
		req  invoice.CreateRequest
		code string
	}{
		{"no items", invoice.CreateRequest{BranchID: f.Branch.ID}, apperror.CodeValidation},
		{"zero quantity", request(f.Branch, p, 0), apperror.CodeValidation},
		{"percentage over 100", func() invoice.CreateRequest {
			r := request(f.Branch, p, 1)
			r.Discounts = []invoice.DiscountRequest{{Kind: promo.KindPercentage, Value: money("120")}}
			return r
		}(), apperror.CodeValidation},
		{"promo without code", func() invoice.CreateRequest {
			r := request(f.Branch, p, 1)
			r.Discounts = []invoice.DiscountRequest{{Kind: promo.KindPromoCode}}
			return r
		}(), apperror.CodeValidation},
		{"unknown branch", request(&catalog.Branch{}, p, 1), apperror.CodeValidation},
		{"missing branch", func() invoice.CreateRequest {
			r := request(f.Branch, p, 1)
			r.BranchID = id.New()
			return r
		}(), apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Services.Invoice.Create(f.Ctx(), tt.req)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestCreate_RequiresActor(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "A", "1.00", "0")
	f.SetStock(t, f.Branch, p, 1)

	_, err := f.Services.Invoice.Create(context.Background(), request(f.Branch, p, 1))
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestCreate_IdempotencyKeyReturnsSameInvoice(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "A", "5.00", "0")
	f.SetStock(t, f.Branch, p, 10)

	req := request(f.Branch, p, 2)
	req.IdempotencyKey = "till-7-0001"

	first, err := f.Services.Invoice.Create(f.Ctx(), req)
	require.NoError(t, err)
	second, err := f.Services.Invoice.Create(f.Ctx(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Number, second.Number)
	assert.Equal(t, int64(8), f.Quantity(t, f.Branch, p))

	list, err := f.Services.Invoice.List(f.Ctx(), invoice.Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreate_PromoCodeRedeemedOnce(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "A", "50.00", "0")
	f.SetStock(t, f.Branch, p, 10)
	limit := int64(1)
	code := f.AddPromo(t, "ONCE", promo.KindFixedAmount, "5", &limit)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request(f.Branch, p, 1)
			req.Discounts = []invoice.DiscountRequest{{Kind: promo.KindPromoCode, PromoCode: "ONCE"}}
			_, results[i] = f.Services.Invoice.Create(f.Ctx(), req)
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case apperror.HasCode(err, apperror.CodeInvalidPromoCode), apperror.IsConcurrentModification(err):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	stored, err := f.Services.Promo.Get(f.Ctx(), code.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.TimesUsed)
	assert.Equal(t, promo.StatusUsedUp, stored.Status)
	assert.Equal(t, int64(9), f.Quantity(t, f.Branch, p))

	var uses int
	for _, e := range f.Audit.Events("promo_code", code.ID.String()) {
		if e.Action == audit.ActionPromoCodeUse {
			uses++
		}
	}
	assert.Equal(t, 1, uses)
}

func TestCreate_PromoMinPurchaseNotMet(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "A", "10.00", "0")
	f.SetStock(t, f.Branch, p, 10)
	code := f.AddPromo(t, "BIG", promo.KindPercentage, "10", nil)
	minimum := money("100")
	_, err := f.Services.Promo.Update(f.Ctx(), code.ID, promo.UpdateRequest{MinPurchaseAmount: &minimum})
	require.NoError(t, err)

	req := request(f.Branch, p, 2)
	req.Discounts = []invoice.DiscountRequest{{Kind: promo.KindPromoCode, PromoCode: "BIG"}}
	_, err = f.Services.Invoice.Create(f.Ctx(), req)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, promo.ReasonMinPurchaseNotMet, appErr.Details["reason"])
	assert.Equal(t, int64(10), f.Quantity(t, f.Branch, p))
}

func TestCancel_RestoresStock(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "A", "10.00", "5")
	f.SetStock(t, f.Branch, p, 5)

	inv, err := f.Services.Invoice.Create(f.Ctx(), request(f.Branch, p, 3))
	require.NoError(t, err)

	cancelled, err := f.Services.Invoice.Cancel(f.Ctx(), inv.ID, "customer left")
	require.NoError(t, err)

	assert.Equal(t, invoice.StatusCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Notes, "customer left")
	assert.Equal(t, inv.Version+1, cancelled.Version)
	assert.Equal(t, int64(5), f.Quantity(t, f.Branch, p))

	adjustments, err := f.Services.Stock.ListAdjustments(f.Ctx(), stock.AdjustmentFilter{Reference: inv.Number})
	require.NoError(t, err)
	require.Len(t, adjustments, 2)
	assert.Equal(t, stock.KindAdjustment, adjustments[0].Kind)

	var kinds []string
	for _, e := range f.Store.OutboxEvents() {
		kinds = append(kinds, e.EventType)
	}
	assert.Contains(t, kinds, events.InvoiceCancelled)

	_, err = f.Services.Invoice.Cancel(f.Ctx(), inv.ID, "again")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestCreate_ConcurrentSameKeyCreatesOnce(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "A", "10.00", "0")
	f.SetStock(t, f.Branch, p, 100)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	errs := make([]error, len(ids))
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request(f.Branch, p, 2)
			req.IdempotencyKey = "till-7-sale-42"
			inv, err := f.Services.Invoice.Create(f.Ctx(), req)
			errs[i] = err
			if err == nil {
				ids[i] = inv.ID.String()
			}
		}(i)
	}
	wg.Wait()

	distinct := map[string]struct{}{}
	for i, err := range errs {
		require.NoError(t, err)
		distinct[ids[i]] = struct{}{}
	}
	assert.Len(t, distinct, 1)
	assert.Equal(t, int64(98), f.Quantity(t, f.Branch, p))

	stored, err := f.Services.Invoice.List(f.Ctx(), invoice.Filter{BranchID: &f.Branch.ID})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestCreate_ConcurrentBuyersNeverOversell(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "A", "10.00", "0")
	f.SetStock(t, f.Branch, p, 5)

	var wg sync.WaitGroup
	results := make([]error, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.Services.Invoice.Create(f.Ctx(), request(f.Branch, p, 1))
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case apperror.HasCode(err, apperror.CodeInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 5, short)
	assert.Equal(t, int64(0), f.Quantity(t, f.Branch, p))
}

func TestCreate_LogLineCarriesBranchOnce(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "A", "10.00", "0")
	f.SetStock(t, f.Branch2, p, 5)

	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.WithLogger(f.Ctx(), &logger.Logger{SugaredLogger: zap.New(core).Sugar()})

	_, err := f.Services.Invoice.Create(ctx, request(f.Branch2, p, 1))
	require.NoError(t, err)

	entries := logs.FilterMessage("invoice created").All()
	require.Len(t, entries, 1)

	var branchIDs int
	for _, field := range entries[0].Context {
		if field.Key == "branch_id" {
			branchIDs++
		}
	}
	assert.Equal(t, 1, branchIDs)
	fields := entries[0].ContextMap()
	assert.Equal(t, f.Branch2.Code, fields["branch_code"])
	assert.Equal(t, f.Branch.ID.String(), fields["branch_id"])
}

func TestList_Filter(t *testing.T) {
	f := apptest.New(t)
	p := f.AddProduct(t, "A", "1.00", "0")
	f.SetStock(t, f.Branch, p, 10)
	f.SetStock(t, f.Branch2, p, 10)

	_, err := f.Services.Invoice.Create(f.Ctx(), request(f.Branch, p, 1))
	require.NoError(t, err)
	second, err := f.Services.Invoice.Create(f.Ctx(), request(f.Branch2, p, 1))
	require.NoError(t, err)
	_, err = f.Services.Invoice.Cancel(f.Ctx(), second.ID, "")
	require.NoError(t, err)

	byBranch, err := f.Services.Invoice.List(f.Ctx(), invoice.Filter{BranchID: &f.Branch.ID})
	require.NoError(t, err)
	assert.Len(t, byBranch, 1)

	cancelled, err := f.Services.Invoice.List(f.Ctx(), invoice.Filter{Statuses: []invoice.Status{invoice.StatusCancelled}})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, second.ID, cancelled[0].ID)

	wholesale := request(f.Branch, p, 5)
	wholesale.CustomerType = invoice.CustomerWholesale
	big, err := f.Services.Invoice.Create(f.Ctx(), wholesale)
	require.NoError(t, err)

	byType, err := f.Services.Invoice.List(f.Ctx(), invoice.Filter{CustomerType: invoice.CustomerWholesale})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, big.ID, byType[0].ID)

	walkIn, err := f.Services.Invoice.List(f.Ctx(), invoice.Filter{CustomerType: invoice.CustomerWalkIn})
	require.NoError(t, err)
	assert.Len(t, walkIn, 2)

	lo, hi := money("2.00"), money("5.00")
	inRange, err := f.Services.Invoice.List(f.Ctx(), invoice.Filter{MinAmount: &lo, MaxAmount: &hi})
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, big.ID, inRange[0].ID)

	low := money("1.00")
	upToOne, err := f.Services.Invoice.List(f.Ctx(), invoice.Filter{MaxAmount: &low})
	require.NoError(t, err)
	assert.Len(t, upToOne, 2)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, invoice.StatusPartiallyPaid.CanBeCancelled())
	assert.False(t, invoice.StatusPaid.CanBeCancelled())
	assert.True(t, invoice.StatusDraft.CanBeModified())
	assert.False(t, invoice.StatusPartiallyPaid.CanBeModified())
	assert.True(t, invoice.StatusRefunded.IsPaid())
	assert.False(t, invoice.StatusVoid.AcceptsPayment())
	assert.False(t, invoice.StatusCancelled.AcceptsReturn())
}
