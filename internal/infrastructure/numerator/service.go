// Package numerator provides the PostgreSQL implementation of document numbering.
// It implements core/numerator.Generator.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "posledger/internal/core/numerator"
)

// Querier is the subset of pgx used for sequence allocation.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierProvider returns the querier bound to ctx, normally the open
// transaction (postgres.TxManager.GetQuerier).
type QuerierProvider func(ctx context.Context) Querier

// Service allocates numbers with an UPSERT on sys_sequences.
// The row stays locked until the caller's transaction ends, so numbers are
// gapless and a rolled-back document gives its number back.
type Service struct {
	querier QuerierProvider
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator that allocates through the given provider.
func New(provider QuerierProvider) *Service {
	return &Service{querier: provider}
}

// Next allocates the next number of cfg's series and formats it for at.
func (s *Service) Next(ctx context.Context, cfg corenumerator.Config, at time.Time) (string, error) {
	if s == nil || s.querier == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	num, err := s.nextValue(ctx, cfg.Prefix)
	if err != nil {
		return "", err
	}
	return corenumerator.Format(cfg, at, num), nil
}

func (s *Service) nextValue(ctx context.Context, key string) (int64, error) {
	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (sequence_key, current_val, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (sequence_key) DO UPDATE
		SET current_val = sys_sequences.current_val + 1, updated_at = NOW()
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", key, err)
	}
	return num, nil
}
