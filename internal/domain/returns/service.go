package returns

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"posledger/internal/core/apperror"
	appctx "posledger/internal/core/context"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/numerator"
	"posledger/internal/core/tx"
	"posledger/internal/core/types"
	"posledger/internal/domain/audit"
	"posledger/internal/domain/events"
	"posledger/internal/domain/invoice"
	"posledger/internal/domain/stock"
	"posledger/pkg/logger"
)

var tracer = otel.Tracer("posledger/returns")

// Invoices is the invoice store access returns need.
type Invoices interface {
	GetByIDForUpdate(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error)
	GetItems(ctx context.Context, invoiceID id.ID) ([]invoice.Item, error)
}

// StockRestorer puts returned goods back on the shelf.
type StockRestorer interface {
	Restore(ctx context.Context, branchID id.ID, lines []stock.Line, kind stock.AdjustmentKind, reference string) ([]stock.Adjustment, error)
}

// Service processes returns.
type Service struct {
	repo      Repository
	invoices  Invoices
	stock     StockRestorer
	numerator numerator.Generator
	txManager tx.Manager
	publisher events.Publisher
	audit     audit.Logger
	now       func() time.Time
}

// NewService creates a new return service.
func NewService(
	repo Repository,
	invoices Invoices,
	stockLedger StockRestorer,
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
		invoices:  invoices,
		stock:     stockLedger,
		numerator: gen,
		txManager: txManager,
		publisher: publisher,
		audit:     auditLog,
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create opens a pending return against an invoice. Quantities are checked
// against the invoice lines and priced at the captured unit price.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Return, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	actor := appctx.GetActorID(ctx)
	if actor == "" {
		return nil, apperror.NewUnauthorized("User not authenticated")
	}

	var ret *Return
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetByIDForUpdate(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if !inv.Status.AcceptsReturn() {
			return apperror.NewInvalidState("invoice", inv.ID.String(), string(inv.Status), "return goods for")
		}

		existing, err := s.repo.GetByInvoice(ctx, inv.ID)
		if err != nil && !apperror.IsNotFound(err) {
			return fmt.Errorf("lookup existing return: %w", err)
		}
		if existing != nil {
			return errAlreadyReturned(inv.ID)
		}

		invoiced, err := s.invoices.GetItems(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("get invoice items: %w", err)
		}

		now := s.now().UTC()
		ret = &Return{
			Base:              entity.NewBase(now),
			InvoiceID:         inv.ID,
			BranchID:          inv.BranchID,
			ProcessedBy:       actor,
			ReturnDate:        now,
			Reason:            req.Reason,
			Notes:             req.Notes,
			Status:            StatusPending,
			TotalReturnAmount: types.Zero(),
		}
		if ret.Items, err = priceItems(ret.ID, req.Items, invoiced); err != nil {
			return err
		}
		for _, item := range ret.Items {
			ret.TotalReturnAmount = ret.TotalReturnAmount.Add(item.ReturnAmount)
		}

		ret.Number, err = s.numerator.Next(ctx, numerator.DefaultConfig(numerator.PrefixReturn, inv.BranchCode), now)
		if err != nil {
			return fmt.Errorf("generate return number: %w", err)
		}

		if err := s.repo.Create(ctx, ret); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeDuplicate && appErr.Details["field"] == "invoice_id" {
				return errAlreadyReturned(inv.ID)
			}
			return err
		}

		return s.publisher.Publish(ctx, events.Event{
			AggregateType: "return",
			AggregateID:   ret.ID,
			EventType:     events.ReturnCreated,
			Payload:       ret,
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		EntityType: "return",
		EntityID:   ret.ID,
		Action:     audit.ActionReturnCreate,
		NewValues: map[string]any{
			"number":              ret.Number,
			"invoice_id":          ret.InvoiceID.String(),
			"total_return_amount": ret.TotalReturnAmount.StringFixed(2),
		},
	})
	logger.Info(ctx, "return created", "id", ret.ID, "number", ret.Number, "invoice_id", ret.InvoiceID)
	return ret, nil
}

// priceItems aggregates requested lines by product and prices them from
// the invoice lines.
func priceItems(returnID id.ID, requested []ItemRequest, invoiced []invoice.Item) ([]Item, error) {
	type invoicedLine struct {
		name      string
		quantity  int64
		unitPrice types.Money
	}
	byProduct := make(map[id.ID]*invoicedLine, len(invoiced))
	for _, line := range invoiced {
		if l, ok := byProduct[line.ProductID]; ok {
			l.quantity += line.Quantity
			continue
		}
		byProduct[line.ProductID] = &invoicedLine{name: line.ProductName, quantity: line.Quantity, unitPrice: line.UnitPrice}
	}

	var items []Item
	index := make(map[id.ID]int, len(requested))
	for _, req := range requested {
		if i, ok := index[req.ProductID]; ok {
			items[i].Quantity += req.Quantity
			continue
		}
		line, ok := byProduct[req.ProductID]
		if !ok {
			return nil, apperror.NewBusinessRule("Product not found in original invoice").
				WithDetail("product_id", req.ProductID.String())
		}
		index[req.ProductID] = len(items)
		items = append(items, Item{
			ID:          id.New(),
			ReturnID:    returnID,
			ProductID:   req.ProductID,
			ProductName: line.name,
			Quantity:    req.Quantity,
			UnitPrice:   line.unitPrice,
			Condition:   req.Condition,
			Notes:       req.Notes,
		})
	}

	for i := range items {
		invoicedQty := byProduct[items[i].ProductID].quantity
		if items[i].Quantity > invoicedQty {
			return nil, apperror.NewBusinessRule(fmt.Sprintf("Return quantity (%d) exceeds invoiced quantity (%d)",
				items[i].Quantity, invoicedQty)).
				WithDetail("product_id", items[i].ProductID.String()).
				WithDetail("requested", items[i].Quantity).
				WithDetail("invoiced", invoicedQty)
		}
		items[i].ReturnAmount = types.Times(items[i].UnitPrice, items[i].Quantity)
	}
	return items, nil
}

// Approve completes a pending return and restocks its items.
func (s *Service) Approve(ctx context.Context, returnID id.ID) (*Return, error) {
	ctx, span := tracer.Start(ctx, "return.approve")
	defer span.End()

	ret, err := s.transition(ctx, returnID, "approve", events.ReturnApproved, func(ctx context.Context, ret *Return) error {
		lines := make([]stock.Line, len(ret.Items))
		for i, item := range ret.Items {
			lines[i] = stock.Line{ProductID: item.ProductID, ProductName: item.ProductName, Quantity: item.Quantity}
		}
		if _, err := s.stock.Restore(ctx, ret.BranchID, lines, stock.KindReturn, ret.Number); err != nil {
			return err
		}
		ret.Status = StatusCompleted
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		EntityType: "return",
		EntityID:   ret.ID,
		Action:     audit.ActionReturnApprove,
		OldValues:  map[string]any{"status": string(StatusPending)},
		NewValues:  map[string]any{"status": string(ret.Status)},
	})
	logger.Info(ctx, "return approved", "id", ret.ID, "number", ret.Number)
	return ret, nil
}

// Reject closes a pending return without touching stock.
func (s *Service) Reject(ctx context.Context, returnID id.ID, reason string) (*Return, error) {
	ret, err := s.transition(ctx, returnID, "reject", events.ReturnRejected, func(_ context.Context, ret *Return) error {
		note := "Rejection reason: " + reason
		if ret.Notes != "" {
			note = "\n" + note
		}
		ret.Notes += note
		ret.Status = StatusRejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		EntityType: "return",
		EntityID:   ret.ID,
		Action:     audit.ActionReturnReject,
		OldValues:  map[string]any{"status": string(StatusPending)},
		NewValues:  map[string]any{"status": string(ret.Status), "reason": reason},
	})
	logger.Info(ctx, "return rejected", "id", ret.ID, "number", ret.Number)
	return ret, nil
}

// transition locks a pending return, applies fn and saves the result.
func (s *Service) transition(
	ctx context.Context,
	returnID id.ID,
	operation string,
	eventType string,
	fn func(ctx context.Context, ret *Return) error,
) (*Return, error) {
	var ret *Return
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		ret, err = s.repo.GetByIDForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if ret.Status != StatusPending {
			return apperror.NewInvalidState("return", ret.ID.String(), string(ret.Status), operation)
		}
		if ret.Items, err = s.repo.GetItems(ctx, ret.ID); err != nil {
			return fmt.Errorf("get return items: %w", err)
		}

		if err := fn(ctx, ret); err != nil {
			return err
		}
		ret.Touch(s.now().UTC())
		if err := s.repo.Update(ctx, ret); err != nil {
			return err
		}

		return s.publisher.Publish(ctx, events.Event{
			AggregateType: "return",
			AggregateID:   ret.ID,
			EventType:     eventType,
			Payload:       map[string]any{"id": ret.ID, "number": ret.Number, "status": ret.Status},
		})
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Get returns a return with its items.
func (s *Service) Get(ctx context.Context, returnID id.ID) (*Return, error) {
	ret, err := s.repo.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if ret.Items, err = s.repo.GetItems(ctx, ret.ID); err != nil {
		return nil, fmt.Errorf("get return items: %w", err)
	}
	return ret, nil
}

// GetByInvoice returns the return filed against an invoice.
func (s *Service) GetByInvoice(ctx context.Context, invoiceID id.ID) (*Return, error) {
	ret, err := s.repo.GetByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if ret.Items, err = s.repo.GetItems(ctx, ret.ID); err != nil {
		return nil, fmt.Errorf("get return items: %w", err)
	}
	return ret, nil
}

// List returns return headers matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Return, error) {
	return s.repo.List(ctx, filter.Normalize())
}

func errAlreadyReturned(invoiceID id.ID) error {
	return apperror.NewBusinessRule("Return already exists for this invoice").
		WithDetail("invoice_id", invoiceID.String())
}
