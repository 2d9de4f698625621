package memory

import (
	"context"
	"sort"
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/promo"
)

// PromoRepo implements promo.Repository.
type PromoRepo struct {
	s *Store
}

// NewPromoRepo creates a promo code repository over the store.
func NewPromoRepo(s *Store) *PromoRepo {
	return &PromoRepo{s: s}
}

func (r *PromoRepo) Create(ctx context.Context, code *promo.Code) error {
	defer r.s.guard(ctx)()
	for _, other := range r.s.st.promos {
		if other.Code == code.Code {
			return apperror.NewDuplicate("promo code", "code", code.Code)
		}
	}
	r.s.st.promos[code.ID] = *code
	return nil
}

func (r *PromoRepo) GetByID(ctx context.Context, codeID id.ID) (*promo.Code, error) {
	defer r.s.guard(ctx)()
	code, ok := r.s.st.promos[codeID]
	if !ok || code.DeletedAt != nil {
		return nil, apperror.NewNotFound("promo code", codeID.String())
	}
	return &code, nil
}

func (r *PromoRepo) GetByCode(ctx context.Context, text string) (*promo.Code, error) {
	defer r.s.guard(ctx)()
	return r.byCode(text)
}

func (r *PromoRepo) GetByCodeForUpdate(ctx context.Context, text string) (*promo.Code, error) {
	defer r.s.guard(ctx)()
	return r.byCode(text)
}

func (r *PromoRepo) byCode(text string) (*promo.Code, error) {
	for _, code := range r.s.st.promos {
		if code.Code == text && code.DeletedAt == nil {
			return &code, nil
		}
	}
	return nil, apperror.NewNotFound("promo code", text)
}

func (r *PromoRepo) Update(ctx context.Context, code *promo.Code) error {
	defer r.s.guard(ctx)()
	stored, ok := r.s.st.promos[code.ID]
	if !ok || stored.DeletedAt != nil {
		return apperror.NewNotFound("promo code", code.ID.String())
	}
	if stored.Version != code.Version-1 {
		return apperror.NewConcurrentModification("promo code", code.ID.String())
	}
	r.s.st.promos[code.ID] = *code
	return nil
}

func (r *PromoRepo) ListValidOn(ctx context.Context, day time.Time) ([]promo.Code, error) {
	defer r.s.guard(ctx)()
	day = promo.DateOf(day)
	var result []promo.Code
	for _, code := range r.s.st.promos {
		if code.DeletedAt != nil || !code.Active || code.Status != promo.StatusActive {
			continue
		}
		if day.Before(promo.DateOf(code.ValidFrom)) || day.After(promo.DateOf(code.ValidUntil)) {
			continue
		}
		result = append(result, code)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

var _ promo.Repository = (*PromoRepo)(nil)
