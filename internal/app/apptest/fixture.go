// Package apptest builds ledger services over an in-memory store for tests.
package apptest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"posledger/internal/app"
	appctx "posledger/internal/core/context"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/audit"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/promo"
	"posledger/internal/domain/stock"
	"posledger/internal/infrastructure/storage/memory"
)

// Now is the fixed clock of every fixture.
var Now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// Fixture is a seeded in-memory ledger.
type Fixture struct {
	Store    *memory.Store
	Catalog  *memory.CatalogRepo
	Audit    *memory.AuditSink
	Services *app.Services

	Branch  *catalog.Branch
	Branch2 *catalog.Branch
}

// syncAudit records events immediately so tests can assert on them.
type syncAudit struct {
	sink audit.Sink
}

func (a syncAudit) Log(ctx context.Context, e audit.Event) {
	if e.Actor == "" {
		e.Actor = appctx.ActorOrSystem(ctx)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = Now
	}
	_ = a.sink.Record(ctx, e)
}

// Option adjusts the service options of a fixture.
type Option func(*app.Options)

// WithPromoCache serves promo lookups through c.
func WithPromoCache(c promo.Cache) Option {
	return func(o *app.Options) { o.PromoCache = c }
}

// New creates a fixture with two active branches, BR01 and BR02.
func New(t testing.TB, opts ...Option) *Fixture {
	t.Helper()

	store := memory.NewStore()
	sink := memory.NewAuditSink(store)
	options := app.Options{
		Audit: syncAudit{sink: sink},
		Clock: func() time.Time { return Now },
	}
	for _, opt := range opts {
		opt(&options)
	}
	f := &Fixture{
		Store:    store,
		Catalog:  memory.NewCatalogRepo(store),
		Audit:    sink,
		Services: app.NewServices(app.MemoryRepositories(store), options),
	}
	f.Branch = f.AddBranch(t, "BR01")
	f.Branch2 = f.AddBranch(t, "BR02")
	return f
}

// Ctx returns a context acting as a cashier of BR01.
func (f *Fixture) Ctx() context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{
		UserID:   "cashier-1",
		Username: "cashier",
		BranchID: f.Branch.ID.String(),
		Roles:    []string{appctx.RoleCashier},
	})
}

// AddBranch registers an active branch.
func (f *Fixture) AddBranch(t testing.TB, code string) *catalog.Branch {
	t.Helper()
	b := &catalog.Branch{Base: entity.NewBase(Now), Code: code, Name: "Branch " + code, Active: true}
	require.NoError(t, f.Catalog.SaveBranch(context.Background(), b))
	return b
}

// AddProduct registers an active product with a low-stock threshold of 5.
func (f *Fixture) AddProduct(t testing.TB, name, price, taxRate string) *catalog.Product {
	t.Helper()
	p := &catalog.Product{
		Base:              entity.NewBase(Now),
		SKU:               "SKU-" + id.New().String()[:8],
		Name:              name,
		Price:             types.MustMoney(price),
		TaxRate:           types.MustMoney(taxRate),
		LowStockThreshold: 5,
		Active:            true,
	}
	require.NoError(t, f.Catalog.SaveProduct(context.Background(), p))
	return p
}

// SetStock brings the (branch, product) row to qty through an INITIAL_STOCK adjustment.
func (f *Fixture) SetStock(t testing.TB, branch *catalog.Branch, product *catalog.Product, qty int64) {
	t.Helper()
	_, err := f.Services.Stock.AdjustStock(f.Ctx(), stock.AdjustRequest{
		BranchID:  branch.ID,
		ProductID: product.ID,
		Kind:      stock.KindInitialStock,
		Quantity:  qty,
	})
	require.NoError(t, err)
}

// Quantity returns the stored quantity for the pair, 0 when no row exists.
func (f *Fixture) Quantity(t testing.TB, branch *catalog.Branch, product *catalog.Product) int64 {
	t.Helper()
	level, err := memory.NewStockRepo(f.Store).GetLevelForUpdate(context.Background(), branch.ID, product.ID)
	require.NoError(t, err)
	if level == nil {
		return 0
	}
	return level.Quantity
}

// AddPromo creates an ACTIVE promo code valid for the whole of June 2025.
func (f *Fixture) AddPromo(t testing.TB, code string, kind promo.DiscountKind, value string, usageLimit *int64) *promo.Code {
	t.Helper()
	c, err := f.Services.Promo.Create(f.Ctx(), promo.CreateRequest{
		Code:       code,
		Kind:       kind,
		Value:      types.MustMoney(value),
		UsageLimit: usageLimit,
		ValidFrom:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return c
}
