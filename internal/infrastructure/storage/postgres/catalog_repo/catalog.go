// Package catalog_repo provides PostgreSQL repositories for catalog records
// and promo codes.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/catalog"
	"posledger/internal/infrastructure/storage/postgres"
)

const (
	branchesTable = "branches"
	productsTable = "products"
)

var (
	branchColumns  = postgres.ExtractDBColumns[catalog.Branch]()
	productColumns = postgres.ExtractDBColumns[catalog.Product]()
)

// CatalogRepo implements catalog.Lookup and catalog.Writer.
type CatalogRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var (
	_ catalog.Lookup = (*CatalogRepo)(nil)
	_ catalog.Writer = (*CatalogRepo)(nil)
)

// NewCatalogRepo creates a new catalog repository.
func NewCatalogRepo(txManager *postgres.TxManager) *CatalogRepo {
	return &CatalogRepo{
		txManager: txManager,
		builder:   postgres.Builder(),
	}
}

// GetBranch retrieves a branch by id.
func (r *CatalogRepo) GetBranch(ctx context.Context, branchID id.ID) (*catalog.Branch, error) {
	var b catalog.Branch
	if err := r.get(ctx, &b, branchesTable, branchColumns, branchID); err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("branch", branchID.String())
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}
	return &b, nil
}

// GetProduct retrieves a product by id.
func (r *CatalogRepo) GetProduct(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	var p catalog.Product
	if err := r.get(ctx, &p, productsTable, productColumns, productID); err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID.String())
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *CatalogRepo) get(ctx context.Context, dst any, table string, columns []string, entityID id.ID) error {
	sql, args, err := r.builder.Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": entityID}).
		Limit(1).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), dst, sql, args...)
}

// SaveBranch inserts or replaces a branch.
func (r *CatalogRepo) SaveBranch(ctx context.Context, b *catalog.Branch) error {
	err := r.upsert(ctx, branchesTable, branchColumns, postgres.StructToMap(b))
	if name, ok := postgres.UniqueViolation(err); ok && name == "uq_branches_code" {
		return apperror.NewDuplicate("branch", "code", b.Code).WithCause(err)
	}
	return err
}

// SaveProduct inserts or replaces a product.
func (r *CatalogRepo) SaveProduct(ctx context.Context, p *catalog.Product) error {
	err := r.upsert(ctx, productsTable, productColumns, postgres.StructToMap(p))
	if name, ok := postgres.UniqueViolation(err); ok && name == "uq_products_sku" {
		return apperror.NewDuplicate("product", "sku", p.SKU).WithCause(err)
	}
	return err
}

func (r *CatalogRepo) upsert(ctx context.Context, table string, columns []string, data map[string]any) error {
	sql, args, err := upsertQuery(r.builder, table, columns, data).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

// upsertQuery replaces every column except id and created_at on conflict.
func upsertQuery(b squirrel.StatementBuilderType, table string, columns []string, data map[string]any) squirrel.InsertBuilder {
	suffix := "ON CONFLICT (id) DO UPDATE SET "
	first := true
	for _, col := range columns {
		if col == "id" || col == "created_at" {
			continue
		}
		if !first {
			suffix += ", "
		}
		suffix += col + " = EXCLUDED." + col
		first = false
	}
	return b.Insert(table).SetMap(data).Suffix(suffix)
}
