// Package payment reconciles payments against invoice balances.
package payment

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"posledger/internal/core/apperror"
	appctx "posledger/internal/core/context"
	"posledger/internal/core/id"
	"posledger/internal/core/tx"
	"posledger/internal/core/types"
	"posledger/internal/domain/audit"
	"posledger/internal/domain/events"
	"posledger/internal/domain/invoice"
	"posledger/pkg/logger"
)

var tracer = otel.Tracer("posledger/payment")

// Repository persists payment records.
type Repository interface {
	Create(ctx context.Context, p *invoice.Payment) error
	ListByInvoice(ctx context.Context, invoiceID id.ID) ([]invoice.Payment, error)
	ListByBranch(ctx context.Context, branchID id.ID, limit, offset int) ([]invoice.Payment, error)
}

// Invoices is the invoice store access payments need.
type Invoices interface {
	GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error)
	GetByIDForUpdate(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error)
	Update(ctx context.Context, inv *invoice.Invoice) error
}

// ProcessRequest is the input of Service.Process.
type ProcessRequest struct {
	InvoiceID       id.ID
	Method          invoice.PaymentMethod
	Amount          types.Money
	ReferenceNumber string
	Notes           string
}

// Result is a recorded payment and the invoice after it.
type Result struct {
	Payment invoice.Payment  `json:"payment"`
	Invoice *invoice.Invoice `json:"invoice"`
}

// Service records payments.
type Service struct {
	repo      Repository
	invoices  Invoices
	txManager tx.Manager
	publisher events.Publisher
	audit     audit.Logger
	now       func() time.Time
}

// NewService creates a new payment service.
func NewService(repo Repository, invoices Invoices, txManager tx.Manager, publisher events.Publisher, auditLog audit.Logger) *Service {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		invoices:  invoices,
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

// Process records a completed payment. Overpayment is rejected; paying the
// full outstanding balance settles the invoice.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (*Result, error) {
	ctx, span := tracer.Start(ctx, "payment.process")
	defer span.End()
	span.SetAttributes(attribute.String("invoice_id", req.InvoiceID.String()))

	var result Result
	var before invoice.Status
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetByIDForUpdate(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		before = inv.Status

		if err := validate(inv, req); err != nil {
			return err
		}

		now := s.now().UTC()
		p := invoice.Payment{
			ID:              id.New(),
			InvoiceID:       inv.ID,
			BranchID:        inv.BranchID,
			Method:          req.Method,
			Amount:          types.Round(req.Amount),
			Status:          invoice.PaymentCompleted,
			ReferenceNumber: req.ReferenceNumber,
			Notes:           req.Notes,
			PaymentDate:     now,
			ProcessedBy:     appctx.ActorOrSystem(ctx),
		}
		if err := s.repo.Create(ctx, &p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		inv.ApplyPayment(p.Amount)
		inv.Touch(now)
		if err := s.invoices.Update(ctx, inv); err != nil {
			return err
		}

		result = Result{Payment: p, Invoice: inv}
		return s.publisher.Publish(ctx, events.Event{
			AggregateType: "invoice",
			AggregateID:   inv.ID,
			EventType:     events.PaymentProcessed,
			Payload:       result,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	inv := result.Invoice
	s.audit.Log(ctx, audit.Event{
		EntityType: "invoice",
		EntityID:   inv.ID,
		Action:     audit.ActionPaymentProcess,
		OldValues:  map[string]any{"status": string(before)},
		NewValues: map[string]any{
			"payment_id":          result.Payment.ID.String(),
			"amount":              result.Payment.Amount.StringFixed(2),
			"method":              string(result.Payment.Method),
			"paid_amount":         inv.PaidAmount.StringFixed(2),
			"outstanding_balance": inv.OutstandingBalance.StringFixed(2),
			"status":              string(inv.Status),
		},
	})
	logger.Info(ctx, "payment processed",
		"invoice", inv.Number,
		"amount", result.Payment.Amount.StringFixed(2),
		"outstanding", inv.OutstandingBalance.StringFixed(2),
		"status", inv.Status,
	)
	return &result, nil
}

func validate(inv *invoice.Invoice, req ProcessRequest) error {
	if !inv.Status.AcceptsPayment() {
		return apperror.NewInvalidState("invoice", inv.ID.String(), string(inv.Status), "process payment for")
	}
	if !req.Method.IsValid() {
		return apperror.NewValidation("unknown payment method").
			WithDetail("field", "method").
			WithDetail("value", string(req.Method))
	}
	if !req.Amount.IsPositive() {
		return apperror.NewBusinessRule("Payment amount must be greater than 0").
			WithDetail("amount", req.Amount.StringFixed(2))
	}
	if req.Amount.GreaterThan(inv.OutstandingBalance) {
		return apperror.NewBusinessRule(fmt.Sprintf("Payment amount (%s) exceeds outstanding balance (%s)",
			req.Amount.StringFixed(2), inv.OutstandingBalance.StringFixed(2))).
			WithDetail("amount", req.Amount.StringFixed(2)).
			WithDetail("outstanding", inv.OutstandingBalance.StringFixed(2))
	}
	return nil
}

// ListByInvoice returns the payments of one invoice in payment order.
func (s *Service) ListByInvoice(ctx context.Context, invoiceID id.ID) ([]invoice.Payment, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListByInvoice(ctx, invoiceID)
}

// ListByBranch returns a page of a branch's payments, newest first.
func (s *Service) ListByBranch(ctx context.Context, branchID id.ID, limit, offset int) ([]invoice.Payment, error) {
	if limit <= 0 {
		limit = invoice.DefaultLimit
	}
	if limit > invoice.MaxLimit {
		limit = invoice.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByBranch(ctx, branchID, limit, offset)
}
