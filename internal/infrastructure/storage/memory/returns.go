package memory

import (
	"context"
	"slices"
	"sort"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/returns"
)

// ReturnRepo implements returns.Repository.
type ReturnRepo struct {
	s *Store
}

// NewReturnRepo creates a return repository over the store.
func NewReturnRepo(s *Store) *ReturnRepo {
	return &ReturnRepo{s: s}
}

func (r *ReturnRepo) Create(ctx context.Context, ret *returns.Return) error {
	defer r.s.guard(ctx)()
	for _, other := range r.s.st.returns {
		if other.InvoiceID == ret.InvoiceID {
			return apperror.NewDuplicate("return", "invoice_id", ret.InvoiceID.String())
		}
		if other.Number == ret.Number {
			return apperror.NewDuplicate("return", "number", ret.Number)
		}
	}
	header := *ret
	header.Items = nil
	r.s.st.returns[ret.ID] = header
	r.s.st.returnItems[ret.ID] = slices.Clone(ret.Items)
	return nil
}

func (r *ReturnRepo) GetByID(ctx context.Context, returnID id.ID) (*returns.Return, error) {
	defer r.s.guard(ctx)()
	ret, ok := r.s.st.returns[returnID]
	if !ok {
		return nil, apperror.NewNotFound("return", returnID.String())
	}
	return &ret, nil
}

func (r *ReturnRepo) GetByIDForUpdate(ctx context.Context, returnID id.ID) (*returns.Return, error) {
	return r.GetByID(ctx, returnID)
}

func (r *ReturnRepo) GetByInvoice(ctx context.Context, invoiceID id.ID) (*returns.Return, error) {
	defer r.s.guard(ctx)()
	for _, ret := range r.s.st.returns {
		if ret.InvoiceID == invoiceID {
			return &ret, nil
		}
	}
	return nil, apperror.NewNotFound("return", invoiceID.String())
}

func (r *ReturnRepo) GetItems(ctx context.Context, returnID id.ID) ([]returns.Item, error) {
	defer r.s.guard(ctx)()
	return slices.Clone(r.s.st.returnItems[returnID]), nil
}

func (r *ReturnRepo) Update(ctx context.Context, ret *returns.Return) error {
	defer r.s.guard(ctx)()
	stored, ok := r.s.st.returns[ret.ID]
	if !ok {
		return apperror.NewNotFound("return", ret.ID.String())
	}
	if stored.Version != ret.Version-1 {
		return apperror.NewConcurrentModification("return", ret.ID.String())
	}
	stored.Status = ret.Status
	stored.Notes = ret.Notes
	stored.Version = ret.Version
	stored.UpdatedAt = ret.UpdatedAt
	r.s.st.returns[ret.ID] = stored
	return nil
}

func (r *ReturnRepo) List(ctx context.Context, filter returns.Filter) ([]returns.Return, error) {
	defer r.s.guard(ctx)()
	var result []returns.Return
	for _, ret := range r.s.st.returns {
		if filter.Matches(&ret) {
			result = append(result, ret)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number > result[j].Number })
	return page(result, filter.Limit, filter.Offset), nil
}

var _ returns.Repository = (*ReturnRepo)(nil)
