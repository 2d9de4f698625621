package memory

import (
	"context"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/catalog"
)

// CatalogRepo implements catalog.Lookup and catalog.Writer.
type CatalogRepo struct {
	s *Store
}

// NewCatalogRepo creates a catalog repository over the store.
func NewCatalogRepo(s *Store) *CatalogRepo {
	return &CatalogRepo{s: s}
}

func (r *CatalogRepo) GetBranch(ctx context.Context, branchID id.ID) (*catalog.Branch, error) {
	defer r.s.guard(ctx)()
	b, ok := r.s.st.branches[branchID]
	if !ok {
		return nil, apperror.NewNotFound("branch", branchID.String())
	}
	return &b, nil
}

func (r *CatalogRepo) GetProduct(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	defer r.s.guard(ctx)()
	p, ok := r.s.st.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return &p, nil
}

func (r *CatalogRepo) SaveBranch(ctx context.Context, b *catalog.Branch) error {
	defer r.s.guard(ctx)()
	for _, other := range r.s.st.branches {
		if other.Code == b.Code && other.ID != b.ID {
			return apperror.NewDuplicate("branch", "code", b.Code)
		}
	}
	r.s.st.branches[b.ID] = *b
	return nil
}

func (r *CatalogRepo) SaveProduct(ctx context.Context, p *catalog.Product) error {
	defer r.s.guard(ctx)()
	for _, other := range r.s.st.products {
		if other.SKU == p.SKU && other.ID != p.ID {
			return apperror.NewDuplicate("product", "sku", p.SKU)
		}
	}
	r.s.st.products[p.ID] = *p
	return nil
}

var (
	_ catalog.Lookup = (*CatalogRepo)(nil)
	_ catalog.Writer = (*CatalogRepo)(nil)
)
