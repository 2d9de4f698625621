// Package app wires ledger services over a storage backend.
package app

import (
	"context"
	"time"

	"posledger/internal/core/numerator"
	"posledger/internal/core/tx"
	"posledger/internal/domain/audit"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/events"
	"posledger/internal/domain/invoice"
	"posledger/internal/domain/payment"
	"posledger/internal/domain/promo"
	"posledger/internal/domain/returns"
	"posledger/internal/domain/stock"
	infranumerator "posledger/internal/infrastructure/numerator"
	"posledger/internal/infrastructure/storage/memory"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/internal/infrastructure/storage/postgres/catalog_repo"
	"posledger/internal/infrastructure/storage/postgres/document_repo"
	"posledger/internal/infrastructure/storage/postgres/register_repo"
)

// Repositories is a storage backend.
type Repositories struct {
	TxManager tx.Manager
	Catalog   catalog.Lookup
	Stock     stock.Repository
	Promo     promo.Repository
	Invoice   invoice.Repository
	Payment   payment.Repository
	Return    returns.Repository
	Numerator numerator.Generator
	Publisher events.Publisher
}

// Options are the optional collaborators of the services.
type Options struct {
	Audit      audit.Logger
	PromoCache promo.Cache
	Locker     invoice.Locker
	Clock      func() time.Time
}

// Services are the ledger operations.
type Services struct {
	Stock     *stock.Service
	Promo     *promo.Service
	Invoice   *invoice.Service
	Payment   *payment.Service
	Returns   *returns.Service
	Catalog   catalog.Lookup
	TxManager tx.Manager
}

// NewServices builds the services over repos.
func NewServices(repos Repositories, opts Options) *Services {
	if opts.Audit == nil {
		opts.Audit = audit.Nop{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	stockSvc := stock.NewService(repos.Stock, repos.Catalog, repos.TxManager, repos.Publisher, opts.Audit).
		WithClock(opts.Clock)
	promoSvc := promo.NewService(repos.Promo, repos.TxManager, opts.PromoCache, opts.Audit).
		WithClock(opts.Clock)
	invoiceSvc := invoice.NewService(
		repos.Invoice,
		repos.Catalog,
		stockSvc,
		promoSvc,
		repos.Numerator,
		repos.TxManager,
		repos.Publisher,
		opts.Audit,
	).WithLocker(opts.Locker).WithClock(opts.Clock)
	paymentSvc := payment.NewService(repos.Payment, repos.Invoice, repos.TxManager, repos.Publisher, opts.Audit).
		WithClock(opts.Clock)
	returnSvc := returns.NewService(
		repos.Return,
		repos.Invoice,
		stockSvc,
		repos.Numerator,
		repos.TxManager,
		repos.Publisher,
		opts.Audit,
	).WithClock(opts.Clock)

	return &Services{
		Stock:     stockSvc,
		Promo:     promoSvc,
		Invoice:   invoiceSvc,
		Payment:   paymentSvc,
		Returns:   returnSvc,
		Catalog:   repos.Catalog,
		TxManager: repos.TxManager,
	}
}

// MemoryRepositories returns a backend over an in-memory store.
func MemoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		TxManager: store,
		Catalog:   memory.NewCatalogRepo(store),
		Stock:     memory.NewStockRepo(store),
		Promo:     memory.NewPromoRepo(store),
		Invoice:   memory.NewInvoiceRepo(store),
		Payment:   memory.NewPaymentRepo(store),
		Return:    memory.NewReturnRepo(store),
		Numerator: memory.NewNumerator(store),
		Publisher: memory.NewOutbox(store),
	}
}

// PostgresRepositories returns a backend over PostgreSQL. Every repository
// resolves its querier from the transaction carried by ctx.
func PostgresRepositories(txm *postgres.TxManager) Repositories {
	return Repositories{
		TxManager: txm,
		Catalog:   catalog_repo.NewCatalogRepo(txm),
		Stock:     register_repo.NewStockRepo(txm),
		Promo:     catalog_repo.NewPromoRepo(txm),
		Invoice:   document_repo.NewInvoiceRepo(txm),
		Payment:   document_repo.NewPaymentRepo(txm),
		Return:    document_repo.NewReturnRepo(txm),
		Numerator: infranumerator.New(func(ctx context.Context) infranumerator.Querier {
			return txm.GetQuerier(ctx)
		}),
		Publisher: postgres.NewOutboxPublisher(txm),
	}
}
