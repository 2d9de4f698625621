package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"

	"posledger/internal/core/apperror"
	"posledger/internal/domain/invoice"
	"posledger/pkg/logger"
)

const lockKeyPrefix = "posledger:idem:"

// IdempotencyLocker implements invoice.Locker with a Redis lock per key.
// A key held by another request fails fast with IdempotencyConflict.
type IdempotencyLocker struct {
	locker *redislock.Client
	ttl    time.Duration
}

var _ invoice.Locker = (*IdempotencyLocker)(nil)

// NewIdempotencyLocker creates a locker whose locks expire after ttl.
func NewIdempotencyLocker(client *redis.Client, ttl time.Duration) *IdempotencyLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &IdempotencyLocker{locker: redislock.New(client), ttl: ttl}
}

// Lock obtains the lock for key.
func (l *IdempotencyLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.locker.Obtain(ctx, lockKeyPrefix+key, l.ttl, nil)
	if err != nil {
		return nil, lockError(key, err)
	}

	release := func() {
		// release must run even when the request context is done
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(ctx, "failed to release idempotency lock", "idempotency_key", key, "error", err)
		}
	}
	return release, nil
}

func lockError(key string, err error) error {
	if errors.Is(err, redislock.ErrNotObtained) {
		return apperror.NewIdempotencyConflict(key)
	}
	return fmt.Errorf("obtain idempotency lock: %w", err)
}
