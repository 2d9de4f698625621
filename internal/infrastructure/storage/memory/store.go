// Package memory is an in-process store implementing the ledger
// repositories. A transaction holds the store mutex for its whole duration
// and restores a snapshot of the state when it fails, so concurrent
// transactions are fully serialized.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"posledger/internal/core/id"
	"posledger/internal/domain/audit"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/events"
	"posledger/internal/domain/invoice"
	"posledger/internal/domain/promo"
	"posledger/internal/domain/returns"
	"posledger/internal/domain/stock"
)

type levelKey struct {
	branchID  id.ID
	productID id.ID
}

type state struct {
	branches         map[id.ID]catalog.Branch
	products         map[id.ID]catalog.Product
	levels           map[levelKey]stock.Level
	adjustments      []stock.Adjustment
	promos           map[id.ID]promo.Code
	invoices         map[id.ID]invoice.Invoice
	invoiceItems     map[id.ID][]invoice.Item
	invoiceDiscounts map[id.ID][]invoice.Discount
	payments         []invoice.Payment
	returns          map[id.ID]returns.Return
	returnItems      map[id.ID][]returns.Item
	sequences        map[string]int64
	outbox           []events.Event
}

func newState() *state {
	return &state{
		branches:         make(map[id.ID]catalog.Branch),
		products:         make(map[id.ID]catalog.Product),
		levels:           make(map[levelKey]stock.Level),
		promos:           make(map[id.ID]promo.Code),
		invoices:         make(map[id.ID]invoice.Invoice),
		invoiceItems:     make(map[id.ID][]invoice.Item),
		invoiceDiscounts: make(map[id.ID][]invoice.Discount),
		returns:          make(map[id.ID]returns.Return),
		returnItems:      make(map[id.ID][]returns.Item),
		sequences:        make(map[string]int64),
	}
}

// clone copies every container. Records are stored by value and replaced
// whole on write, so copying the containers is enough.
func (st *state) clone() *state {
	return &state{
		branches:         maps.Clone(st.branches),
		products:         maps.Clone(st.products),
		levels:           maps.Clone(st.levels),
		adjustments:      slices.Clone(st.adjustments),
		promos:           maps.Clone(st.promos),
		invoices:         maps.Clone(st.invoices),
		invoiceItems:     maps.Clone(st.invoiceItems),
		invoiceDiscounts: maps.Clone(st.invoiceDiscounts),
		payments:         slices.Clone(st.payments),
		returns:          maps.Clone(st.returns),
		returnItems:      maps.Clone(st.returnItems),
		sequences:        maps.Clone(st.sequences),
		outbox:           slices.Clone(st.outbox),
	}
}

// Store holds all ledger state in memory.
type Store struct {
	mu sync.Mutex
	st *state

	auditMu sync.Mutex
	audit   []audit.Event
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

type txKey struct{}

// RunInTransaction runs fn with exclusive access to the store. Nested calls
// join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.InTransaction(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	committed := false
	defer func() {
		if !committed {
			s.st = snapshot
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

// InTransaction reports whether ctx carries a transaction of this store.
func (s *Store) InTransaction(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// guard takes the store mutex unless ctx already holds it.
func (s *Store) guard(ctx context.Context) func() {
	if s.InTransaction(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// OutboxEvents returns the events published by committed transactions.
func (s *Store) OutboxEvents() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.outbox)
}

// AuditEvents returns recorded audit events.
func (s *Store) AuditEvents() []audit.Event {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	return slices.Clone(s.audit)
}
