package promo

import (
	"context"
	"time"

	"posledger/internal/core/id"
)

// Repository persists promo codes. Soft-deleted codes are invisible to
// every read.
type Repository interface {
	// Create fails with apperror Duplicate when the code is taken.
	Create(ctx context.Context, code *Code) error
	GetByID(ctx context.Context, codeID id.ID) (*Code, error)
	GetByCode(ctx context.Context, code string) (*Code, error)

	// GetByCodeForUpdate locks the row for the current transaction.
	GetByCodeForUpdate(ctx context.Context, code string) (*Code, error)

	// Update writes mutable fields with an optimistic version check against
	// code.Version-1.
	Update(ctx context.Context, code *Code) error

	// ListValidOn returns active, ACTIVE codes whose window contains day.
	ListValidOn(ctx context.Context, day time.Time) ([]Code, error)
}

// Cache is a read-through cache for codes looked up by id. Set never
// replaces an entry whose Version is equal or newer, so a reader holding
// a row loaded before a write cannot overwrite the writer's copy.
type Cache interface {
	Get(ctx context.Context, codeID id.ID) (*Code, bool)
	Set(ctx context.Context, code *Code)
	Evict(ctx context.Context, codeID id.ID)
}

// NoopCache caches nothing.
type NoopCache struct{}

func (NoopCache) Get(context.Context, id.ID) (*Code, bool) { return nil, false }
func (NoopCache) Set(context.Context, *Code)                {}
func (NoopCache) Evict(context.Context, id.ID)              {}
