package memory

import (
	"context"
	"slices"
	"sort"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/invoice"
)

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	s *Store
}

// NewInvoiceRepo creates an invoice repository over the store.
func NewInvoiceRepo(s *Store) *InvoiceRepo {
	return &InvoiceRepo{s: s}
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	defer r.s.guard(ctx)()
	for _, other := range r.s.st.invoices {
		if other.Number == inv.Number {
			return apperror.NewDuplicate("invoice", "number", inv.Number)
		}
		if inv.IdempotencyKey != nil && other.IdempotencyKey != nil && *other.IdempotencyKey == *inv.IdempotencyKey {
			return apperror.NewDuplicate("invoice", "idempotency_key", *inv.IdempotencyKey)
		}
	}

	header := *inv
	header.Items, header.Discounts, header.Payments = nil, nil, nil
	r.s.st.invoices[inv.ID] = header
	r.s.st.invoiceItems[inv.ID] = slices.Clone(inv.Items)
	r.s.st.invoiceDiscounts[inv.ID] = slices.Clone(inv.Discounts)
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	defer r.s.guard(ctx)()
	inv, ok := r.s.st.invoices[invoiceID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", invoiceID.String())
	}
	return &inv, nil
}

func (r *InvoiceRepo) GetByIDForUpdate(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	return r.GetByID(ctx, invoiceID)
}

func (r *InvoiceRepo) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	defer r.s.guard(ctx)()
	for _, inv := range r.s.st.invoices {
		if inv.Number == number {
			return &inv, nil
		}
	}
	return nil, apperror.NewNotFound("invoice", number)
}

func (r *InvoiceRepo) GetByIdempotencyKey(ctx context.Context, key string) (*invoice.Invoice, error) {
	defer r.s.guard(ctx)()
	for _, inv := range r.s.st.invoices {
		if inv.IdempotencyKey != nil && *inv.IdempotencyKey == key {
			return &inv, nil
		}
	}
	return nil, apperror.NewNotFound("invoice", key)
}

func (r *InvoiceRepo) Update(ctx context.Context, inv *invoice.Invoice) error {
	defer r.s.guard(ctx)()
	stored, ok := r.s.st.invoices[inv.ID]
	if !ok {
		return apperror.NewNotFound("invoice", inv.ID.String())
	}
	if stored.Version != inv.Version-1 {
		return apperror.NewConcurrentModification("invoice", inv.ID.String())
	}
	stored.Status = inv.Status
	stored.PaidAmount = inv.PaidAmount
	stored.OutstandingBalance = inv.OutstandingBalance
	stored.Notes = inv.Notes
	stored.Version = inv.Version
	stored.UpdatedAt = inv.UpdatedAt
	r.s.st.invoices[inv.ID] = stored
	return nil
}

func (r *InvoiceRepo) GetItems(ctx context.Context, invoiceID id.ID) ([]invoice.Item, error) {
	defer r.s.guard(ctx)()
	return slices.Clone(r.s.st.invoiceItems[invoiceID]), nil
}

func (r *InvoiceRepo) GetDiscounts(ctx context.Context, invoiceID id.ID) ([]invoice.Discount, error) {
	defer r.s.guard(ctx)()
	return slices.Clone(r.s.st.invoiceDiscounts[invoiceID]), nil
}

func (r *InvoiceRepo) GetPayments(ctx context.Context, invoiceID id.ID) ([]invoice.Payment, error) {
	defer r.s.guard(ctx)()
	var result []invoice.Payment
	for _, p := range r.s.st.payments {
		if p.InvoiceID == invoiceID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r *InvoiceRepo) List(ctx context.Context, filter invoice.Filter) ([]invoice.Invoice, error) {
	defer r.s.guard(ctx)()
	var result []invoice.Invoice
	for _, inv := range r.s.st.invoices {
		if filter.Matches(&inv) {
			result = append(result, inv)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Number > result[j].Number
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return page(result, filter.Limit, filter.Offset), nil
}

// PaymentRepo implements payment.Repository.
type PaymentRepo struct {
	s *Store
}

// NewPaymentRepo creates a payment repository over the store.
func NewPaymentRepo(s *Store) *PaymentRepo {
	return &PaymentRepo{s: s}
}

func (r *PaymentRepo) Create(ctx context.Context, p *invoice.Payment) error {
	defer r.s.guard(ctx)()
	r.s.st.payments = append(r.s.st.payments, *p)
	return nil
}

func (r *PaymentRepo) ListByInvoice(ctx context.Context, invoiceID id.ID) ([]invoice.Payment, error) {
	defer r.s.guard(ctx)()
	result := []invoice.Payment{}
	for _, p := range r.s.st.payments {
		if p.InvoiceID == invoiceID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r *PaymentRepo) ListByBranch(ctx context.Context, branchID id.ID, limit, offset int) ([]invoice.Payment, error) {
	defer r.s.guard(ctx)()
	var result []invoice.Payment
	for i := len(r.s.st.payments) - 1; i >= 0; i-- {
		if p := r.s.st.payments[i]; p.BranchID == branchID {
			result = append(result, p)
		}
	}
	return page(result, limit, offset), nil
}

var _ invoice.Repository = (*InvoiceRepo)(nil)
