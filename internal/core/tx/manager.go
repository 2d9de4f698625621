// Package tx defines the transaction boundary used by ledger services.
// Services depend on Manager; the Postgres and in-memory stores implement it.
package tx

import (
	"context"
)

// Manager runs a unit of work atomically.
//
// Repositories called with the ctx handed to fn participate in the same
// transaction. Nested calls reuse the transaction already in ctx, so a
// service may call another service's transactional method from inside its
// own unit of work.
type Manager interface {
	// RunInTransaction commits when fn returns nil and rolls back otherwise.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// InTransaction is implemented by managers that can tell whether ctx
// already carries an open transaction.
type InTransaction interface {
	InTransaction(ctx context.Context) bool
}
