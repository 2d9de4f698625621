package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/promo"
	"posledger/internal/infrastructure/storage/postgres"
)

const promoCodesTable = "promo_codes"

var promoColumns = postgres.ExtractDBColumns[promo.Code]()

// PromoRepo implements promo.Repository. Soft-deleted rows are filtered
// from every read.
type PromoRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ promo.Repository = (*PromoRepo)(nil)

// NewPromoRepo creates a new promo code repository.
func NewPromoRepo(txManager *postgres.TxManager) *PromoRepo {
	return &PromoRepo{
		txManager: txManager,
		builder:   postgres.Builder(),
	}
}

func (r *PromoRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(promoColumns...).
		From(promoCodesTable).
		Where(squirrel.Eq{"deleted_at": nil})
}

// Create inserts a promo code.
func (r *PromoRepo) Create(ctx context.Context, code *promo.Code) error {
	sql, args, err := r.builder.Insert(promoCodesTable).
		SetMap(postgres.StructToMap(code)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return apperror.NewDuplicate("promo code", "code", code.Code).WithCause(err)
		}
		return fmt.Errorf("insert promo code: %w", err)
	}
	return nil
}

// GetByID retrieves a code by id.
func (r *PromoRepo) GetByID(ctx context.Context, codeID id.ID) (*promo.Code, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": codeID}), codeID.String())
}

// GetByCode retrieves a code by its text.
func (r *PromoRepo) GetByCode(ctx context.Context, code string) (*promo.Code, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"code": code}), code)
}

// GetByCodeForUpdate retrieves and locks a code by its text.
func (r *PromoRepo) GetByCodeForUpdate(ctx context.Context, code string) (*promo.Code, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"code": code}).Suffix("FOR UPDATE"), code)
}

func (r *PromoRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*promo.Code, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var code promo.Code
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &code, sql, args...); err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("promo code", key)
		}
		return nil, fmt.Errorf("get promo code: %w", err)
	}
	return &code, nil
}

// Update writes all mutable columns. The stored version must be code.Version-1.
func (r *PromoRepo) Update(ctx context.Context, code *promo.Code) error {
	sql, args, err := r.updateQuery(code).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update promo code: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("promo code", code.ID.String())
	}
	return nil
}

func (r *PromoRepo) updateQuery(code *promo.Code) squirrel.UpdateBuilder {
	data := postgres.Without(postgres.StructToMap(code), "id", "created_at", "code")
	return r.builder.Update(promoCodesTable).
		SetMap(data).
		Where(squirrel.Eq{"id": code.ID, "version": code.Version - 1}).
		Where(squirrel.Eq{"deleted_at": nil})
}

// ListValidOn returns usable codes whose window contains day, ordered by code.
func (r *PromoRepo) ListValidOn(ctx context.Context, day time.Time) ([]promo.Code, error) {
	sql, args, err := r.validOnQuery(day).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var codes []promo.Code
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &codes, sql, args...); err != nil {
		return nil, fmt.Errorf("select promo codes: %w", err)
	}
	return codes, nil
}

func (r *PromoRepo) validOnQuery(day time.Time) squirrel.SelectBuilder {
	day = promo.DateOf(day)
	return r.baseSelect().
		Where(squirrel.Eq{"active": true, "status": promo.StatusActive}).
		Where(squirrel.LtOrEq{"valid_from": day}).
		Where(squirrel.GtOrEq{"valid_until": day}).
		OrderBy("code")
}
