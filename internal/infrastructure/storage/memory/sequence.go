package memory

import (
	"context"
	"time"

	"posledger/internal/core/numerator"
)

// Numerator implements numerator.Generator with per-prefix counters held
// in the store, so a rolled-back transaction gives its number back.
type Numerator struct {
	s *Store
}

// NewNumerator creates a generator over the store.
func NewNumerator(s *Store) *Numerator {
	return &Numerator{s: s}
}

func (n *Numerator) Next(ctx context.Context, cfg numerator.Config, at time.Time) (string, error) {
	defer n.s.guard(ctx)()
	n.s.st.sequences[cfg.Prefix]++
	return numerator.Format(cfg, at, n.s.st.sequences[cfg.Prefix]), nil
}

var _ numerator.Generator = (*Numerator)(nil)
