package promo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/tx"
	"posledger/internal/core/types"
	"posledger/internal/domain/audit"
	"posledger/pkg/logger"
)

// Service validates, redeems and administers promo codes.
type Service struct {
	repo      Repository
	txManager tx.Manager
	cache     Cache
	audit     audit.Logger
	now       func() time.Time
}

// NewService creates a new promo code service. cache may be nil.
func NewService(repo Repository, txManager tx.Manager, cache Cache, auditLog audit.Logger) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		cache:     cache,
		audit:     auditLog,
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Validate checks that a code could be redeemed today. It does not lock
// the row, so a later Redeem may still fail.
func (s *Service) Validate(ctx context.Context, code string) (*Code, error) {
	promo, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, notFoundAsInvalid(code, err)
	}
	if err := promo.Check(s.now()); err != nil {
		return nil, err
	}
	return promo, nil
}

// Redeem validates the code under a row lock, prices it against base and
// counts the use. It must run inside the caller's transaction; the caller
// passes the redeemed code to Refresh after commit.
func (s *Service) Redeem(ctx context.Context, code string, base types.Money) (*Redemption, error) {
	var result *Redemption
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		promo, err := s.repo.GetByCodeForUpdate(ctx, code)
		if err != nil {
			return notFoundAsInvalid(code, err)
		}

		now := s.now()
		if err := promo.Check(now); err != nil {
			return err
		}
		if err := promo.CheckPurchase(base); err != nil {
			return err
		}

		amount := PromoDiscount(promo, base)
		promo.RecordUse(now.UTC())
		if err := s.repo.Update(ctx, promo); err != nil {
			return fmt.Errorf("update promo code usage: %w", err)
		}
		result = &Redemption{Code: promo, Amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Refresh writes committed copies of the given codes through the cache.
func (s *Service) Refresh(ctx context.Context, codes ...*Code) {
	for _, code := range codes {
		s.cache.Set(ctx, code)
	}
}

// Create registers a new promo code.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Code, error) {
	now := s.now().UTC()
	promo := &Code{
		Base:              entity.NewBase(now),
		Code:              strings.TrimSpace(req.Code),
		Description:       req.Description,
		Kind:              req.Kind,
		Value:             req.Value,
		MaxDiscountAmount: req.MaxDiscountAmount,
		MinPurchaseAmount: req.MinPurchaseAmount,
		UsageLimit:        req.UsageLimit,
		ValidFrom:         DateOf(req.ValidFrom),
		ValidUntil:        DateOf(req.ValidUntil),
		Status:            req.Status,
		Active:            true,
	}
	if promo.Status == "" {
		promo.Status = StatusActive
	}
	if err := promo.ValidateDefinition(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, promo); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		EntityType: "promo_code",
		EntityID:   promo.ID,
		Action:     audit.ActionPromoCodeCreate,
		NewValues:  snapshot(promo),
	})
	logger.Info(ctx, "promo code created", "id", promo.ID, "code", promo.Code)
	return promo, nil
}

// Get returns a code by id, served from the cache when possible.
func (s *Service) Get(ctx context.Context, codeID id.ID) (*Code, error) {
	if cached, ok := s.cache.Get(ctx, codeID); ok {
		if cached.DeletedAt != nil {
			return nil, apperror.NewNotFound("promo code", codeID.String())
		}
		return cached, nil
	}
	promo, err := s.repo.GetByID(ctx, codeID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, promo)
	return promo, nil
}

// GetByCode returns a code by its text.
func (s *Service) GetByCode(ctx context.Context, code string) (*Code, error) {
	return s.repo.GetByCode(ctx, code)
}

// ListActive returns the codes redeemable today, ignoring usage limits.
func (s *Service) ListActive(ctx context.Context) ([]Code, error) {
	return s.repo.ListValidOn(ctx, DateOf(s.now()))
}

// Update changes the mutable fields of a code.
func (s *Service) Update(ctx context.Context, codeID id.ID, req UpdateRequest) (*Code, error) {
	var before map[string]any
	var promo *Code
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, codeID)
		if err != nil {
			return err
		}
		before = snapshot(current)

		req.Apply(current)
		if err := current.ValidateDefinition(); err != nil {
			return err
		}
		current.Touch(s.now().UTC())
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}
		promo = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, promo)

	s.audit.Log(ctx, audit.Event{
		EntityType: "promo_code",
		EntityID:   codeID,
		Action:     audit.ActionPromoCodeUpdate,
		OldValues:  before,
		NewValues:  snapshot(promo),
	})
	logger.Info(ctx, "promo code updated", "id", codeID, "code", promo.Code)
	return promo, nil
}

// Delete soft-deletes a code and deactivates it.
func (s *Service) Delete(ctx context.Context, codeID id.ID) error {
	var deleted *Code
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		promo, err := s.repo.GetByID(ctx, codeID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		promo.DeletedAt = &now
		promo.Active = false
		promo.Touch(now)
		deleted = promo
		return s.repo.Update(ctx, promo)
	})
	if err != nil {
		return err
	}
	s.cache.Set(ctx, deleted)
	code := deleted.Code

	s.audit.Log(ctx, audit.Event{
		EntityType: "promo_code",
		EntityID:   codeID,
		Action:     audit.ActionPromoCodeDelete,
		NewValues:  map[string]any{"code": code, "active": false},
	})
	logger.Info(ctx, "promo code deleted", "id", codeID, "code", code)
	return nil
}

func notFoundAsInvalid(code string, err error) error {
	if apperror.IsNotFound(err) {
		return apperror.NewInvalidPromoCode(code, ReasonNotFound, "Promo code not found: "+code).WithCause(err)
	}
	return err
}

func snapshot(c *Code) map[string]any {
	values := map[string]any{
		"code":           c.Code,
		"discount_type":  string(c.Kind),
		"discount_value": c.Value.StringFixed(2),
		"times_used":     c.TimesUsed,
		"valid_from":     c.ValidFrom.Format(time.DateOnly),
		"valid_until":    c.ValidUntil.Format(time.DateOnly),
		"status":         string(c.Status),
		"active":         c.Active,
	}
	if c.UsageLimit != nil {
		values["usage_limit"] = *c.UsageLimit
	}
	return values
}
