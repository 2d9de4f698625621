package invoice

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"posledger/internal/core/apperror"
	appctx "posledger/internal/core/context"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/numerator"
	"posledger/internal/core/tx"
	"posledger/internal/core/types"
	"posledger/internal/domain/audit"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/events"
	"posledger/internal/domain/promo"
	"posledger/internal/domain/stock"
	"posledger/pkg/logger"
)

var tracer = otel.Tracer("posledger/invoice")

// StockLedger is the part of the stock ledger invoices depend on.
type StockLedger interface {
	Consume(ctx context.Context, branchID id.ID, lines []stock.Line, reference string) ([]stock.Adjustment, error)
	Restore(ctx context.Context, branchID id.ID, lines []stock.Line, kind stock.AdjustmentKind, reference string) ([]stock.Adjustment, error)
}

// PromoRedeemer prices and counts promo code uses.
type PromoRedeemer interface {
	Redeem(ctx context.Context, code string, base types.Money) (*promo.Redemption, error)
	Refresh(ctx context.Context, codes ...*promo.Code)
}

// Service provides the invoice lifecycle operations.
type Service struct {
	repo      Repository
	catalog   catalog.Lookup
	stock     StockLedger
	promos    PromoRedeemer
	numerator numerator.Generator
	txManager tx.Manager
	publisher events.Publisher
	audit     audit.Logger
	locker    Locker
	now       func() time.Time
}

// NewService creates a new invoice service.
func NewService(
	repo Repository,
	lookup catalog.Lookup,
	stockLedger StockLedger,
	promos PromoRedeemer,
	gen numerator.Generator,
	txManager tx.Manager,
	publisher events.Publisher,
	auditLog audit.Logger,
) *Service {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		catalog:   lookup,
		stock:     stockLedger,
		promos:    promos,
		numerator: gen,
		txManager: txManager,
		publisher: publisher,
		audit:     auditLog,
		locker:    NoopLocker{},
		now:       time.Now,
	}
}

// WithLocker sets the idempotency-key locker.
func (s *Service) WithLocker(l Locker) *Service {
	if l != nil {
		s.locker = l
	}
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create issues a new invoice. Stock is consumed, discounts are applied and
// the number is allocated in one transaction. A request carrying an
// idempotency key that was already used returns the existing invoice.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Invoice, error) {
	ctx, span := tracer.Start(ctx, "invoice.create")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	cashier := req.CashierID
	if cashier == "" {
		cashier = appctx.GetActorID(ctx)
	}
	if cashier == "" {
		return nil, apperror.NewUnauthorized("User not authenticated")
	}

	key := req.IdempotencyKey
	if key != "" {
		span.SetAttributes(attribute.String("idempotency_key", key))
		release, err := s.locker.Lock(ctx, key)
		if err != nil {
			return nil, err
		}
		defer release()

		existing, err := s.findByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			logger.Info(ctx, "idempotent invoice replay", "number", existing.Number, "idempotency_key", key)
			return existing, nil
		}
	}

	var inv *Invoice
	var redeemed []*promo.Code
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, redeemed, err = s.build(ctx, req, cashier)
		if err != nil {
			return err
		}
		if err := s.repo.Create(ctx, inv); err != nil {
			return err
		}
		return s.publisher.Publish(ctx, events.Event{
			AggregateType: "invoice",
			AggregateID:   inv.ID,
			EventType:     events.InvoiceCreated,
			Payload:       inv,
		})
	})
	if err != nil {
		if key != "" && isDuplicateKey(err) {
			existing, lookupErr := s.findByKey(ctx, key)
			if lookupErr == nil && existing != nil {
				logger.Info(ctx, "idempotent invoice replay", "number", existing.Number, "idempotency_key", key)
				return existing, nil
			}
		}
		span.RecordError(err)
		return nil, err
	}

	for _, code := range redeemed {
		s.promos.Refresh(ctx, code)
		s.audit.Log(ctx, audit.Event{
			EntityType: "promo_code",
			EntityID:   code.ID,
			Action:     audit.ActionPromoCodeUse,
			NewValues: map[string]any{
				"code":       code.Code,
				"times_used": code.TimesUsed,
				"invoice":    inv.Number,
			},
		})
	}
	s.audit.Log(ctx, audit.Event{
		EntityType: "invoice",
		EntityID:   inv.ID,
		Action:     audit.ActionInvoiceCreate,
		NewValues:  summary(inv),
	})

	span.SetAttributes(attribute.String("number", inv.Number))
	logger.Info(ctx, "invoice created",
		"id", inv.ID,
		"number", inv.Number,
		"branch_code", inv.BranchCode,
		"total", inv.TotalAmount.StringFixed(2),
	)
	return inv, nil
}

// build prices the request and consumes stock. It runs inside the create
// transaction.
func (s *Service) build(ctx context.Context, req CreateRequest, cashier string) (*Invoice, []*promo.Code, error) {
	branch, err := s.catalog.GetBranch(ctx, req.BranchID)
	if err != nil {
		return nil, nil, err
	}
	if !branch.Active {
		return nil, nil, apperror.NewBusinessRule("Branch is not active").WithDetail("branch_id", branch.ID.String())
	}

	products := make([]*catalog.Product, len(req.Items))
	lines := make([]stock.Line, len(req.Items))
	for i, item := range req.Items {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, nil, err
		}
		if !product.Active {
			return nil, nil, apperror.NewBusinessRule(fmt.Sprintf("Product %s is not active", product.Name)).
				WithDetail("product_id", product.ID.String())
		}
		products[i] = product
		lines[i] = stock.Line{ProductID: product.ID, ProductName: product.Name, Quantity: item.Quantity}
	}

	now := s.now().UTC()
	number, err := s.numerator.Next(ctx, numerator.DefaultConfig(numerator.PrefixInvoice, branch.Code), now)
	if err != nil {
		return nil, nil, fmt.Errorf("generate invoice number: %w", err)
	}

	if _, err := s.stock.Consume(ctx, branch.ID, lines, number); err != nil {
		return nil, nil, err
	}

	inv := &Invoice{
		Base:           entity.NewBase(now),
		Number:         number,
		BranchID:       branch.ID,
		BranchCode:     branch.Code,
		CustomerID:     req.CustomerID,
		CustomerType:   req.CustomerType,
		CashierID:      cashier,
		IssueDate:      now,
		Subtotal:       types.Zero(),
		TaxAmount:      types.Zero(),
		DiscountAmount: types.Zero(),
		PaidAmount:     types.Zero(),
		Status:         StatusPending,
		Notes:          req.Notes,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		inv.IdempotencyKey = &key
	}

	for i, item := range req.Items {
		product := products[i]
		sub := promo.LineSubtotal(item.Quantity, product.Price)
		tax := promo.Tax(sub, product.TaxRate)
		inv.Items = append(inv.Items, Item{
			ID:             id.New(),
			InvoiceID:      inv.ID,
			LineNo:         i + 1,
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       item.Quantity,
			UnitPrice:      product.Price,
			TaxRate:        product.TaxRate,
			LineSubtotal:   sub,
			TaxAmount:      tax,
			DiscountAmount: types.Zero(),
			LineTotal:      sub.Add(tax),
		})
		inv.Subtotal = inv.Subtotal.Add(sub)
		inv.TaxAmount = inv.TaxAmount.Add(tax)
	}

	// Every discount is priced against the same gross amount.
	base := inv.Subtotal.Add(inv.TaxAmount)
	var redeemed []*promo.Code
	for _, d := range req.Discounts {
		line := Discount{
			ID:          id.New(),
			InvoiceID:   inv.ID,
			Kind:        d.Kind,
			Value:       d.Value,
			Description: d.Description,
			AppliedBy:   cashier,
			AppliedAt:   now,
		}

		switch d.Kind {
		case promo.KindFixedAmount:
			line.Amount = promo.FixedDiscount(d.Value, base)
			if line.Description == "" {
				line.Description = "Fixed discount " + d.Value.StringFixed(2)
			}
		case promo.KindPercentage:
			line.Amount = promo.PercentageDiscount(base, d.Value)
			if line.Description == "" {
				line.Description = d.Value.String() + "% discount"
			}
		case promo.KindPromoCode:
			redemption, err := s.promos.Redeem(ctx, d.PromoCode, base)
			if err != nil {
				return nil, nil, err
			}
			code := redemption.Code
			line.Amount = redemption.Amount
			line.Value = code.Value
			line.PromoCodeID = &code.ID
			line.PromoCode = code.Code
			if line.Description == "" {
				line.Description = "Promo code " + code.Code
			}
			redeemed = append(redeemed, code)
		}

		inv.Discounts = append(inv.Discounts, line)
		inv.DiscountAmount = inv.DiscountAmount.Add(line.Amount)
	}
	if inv.DiscountAmount.GreaterThan(base) {
		return nil, nil, apperror.NewBusinessRule("Discounts exceed the invoice amount").
			WithDetail("discount_amount", inv.DiscountAmount.StringFixed(2)).
			WithDetail("gross_amount", base.StringFixed(2))
	}

	inv.Recalculate()
	return inv, redeemed, nil
}

// Cancel voids a pending or partially paid invoice without payments and
// puts its stock back.
func (s *Service) Cancel(ctx context.Context, invoiceID id.ID, reason string) (*Invoice, error) {
	ctx, span := tracer.Start(ctx, "invoice.cancel")
	defer span.End()

	var inv *Invoice
	var previous Status
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		previous = inv.Status

		if !inv.Status.CanBeCancelled() {
			return apperror.NewInvalidState("invoice", inv.ID.String(), string(inv.Status), "cancel")
		}
		if inv.PaidAmount.IsPositive() {
			return apperror.NewBusinessRule("Cannot cancel invoice with payments. Please process a refund instead.").
				WithDetail("paid_amount", inv.PaidAmount.StringFixed(2))
		}

		items, err := s.repo.GetItems(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		lines := make([]stock.Line, len(items))
		for i, item := range items {
			lines[i] = stock.Line{ProductID: item.ProductID, ProductName: item.ProductName, Quantity: item.Quantity}
		}
		if _, err := s.stock.Restore(ctx, inv.BranchID, lines, stock.KindAdjustment, inv.Number); err != nil {
			return err
		}

		inv.Status = StatusCancelled
		if reason != "" {
			inv.AppendNote("Cancellation reason: " + reason)
		}
		inv.Touch(s.now().UTC())
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		inv.Items = items

		return s.publisher.Publish(ctx, events.Event{
			AggregateType: "invoice",
			AggregateID:   inv.ID,
			EventType:     events.InvoiceCancelled,
			Payload:       map[string]any{"id": inv.ID, "number": inv.Number, "reason": reason},
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		EntityType: "invoice",
		EntityID:   inv.ID,
		Action:     audit.ActionInvoiceCancel,
		OldValues:  map[string]any{"status": string(previous)},
		NewValues:  map[string]any{"status": string(inv.Status), "reason": reason},
	})
	logger.Info(ctx, "invoice cancelled", "id", inv.ID, "number", inv.Number)
	return inv, nil
}

// Get returns an invoice with items, discounts and payments.
func (s *Service) Get(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.loadDetails(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// GetByNumber returns an invoice by its number with all details.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	inv, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := s.loadDetails(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// List returns invoice headers matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Invoice, error) {
	return s.repo.List(ctx, filter.Normalize())
}

func (s *Service) loadDetails(ctx context.Context, inv *Invoice) error {
	var err error
	if inv.Items, err = s.repo.GetItems(ctx, inv.ID); err != nil {
		return fmt.Errorf("get items: %w", err)
	}
	if inv.Discounts, err = s.repo.GetDiscounts(ctx, inv.ID); err != nil {
		return fmt.Errorf("get discounts: %w", err)
	}
	if inv.Payments, err = s.repo.GetPayments(ctx, inv.ID); err != nil {
		return fmt.Errorf("get payments: %w", err)
	}
	return nil
}

func (s *Service) findByKey(ctx context.Context, key string) (*Invoice, error) {
	inv, err := s.repo.GetByIdempotencyKey(ctx, key)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if err := s.loadDetails(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func isDuplicateKey(err error) bool {
	appErr, ok := apperror.AsAppError(err)
	return ok && appErr.Code == apperror.CodeDuplicate && appErr.Details["field"] == "idempotency_key"
}

func summary(inv *Invoice) map[string]any {
	return map[string]any{
		"number":          inv.Number,
		"branch_id":       inv.BranchID.String(),
		"status":          string(inv.Status),
		"subtotal":        inv.Subtotal.StringFixed(2),
		"tax_amount":      inv.TaxAmount.StringFixed(2),
		"discount_amount": inv.DiscountAmount.StringFixed(2),
		"total_amount":    inv.TotalAmount.StringFixed(2),
		"items":           len(inv.Items),
	}
}
