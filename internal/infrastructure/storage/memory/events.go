package memory

import (
	"context"
	"fmt"
	"slices"

	"posledger/internal/core/id"
	"posledger/internal/domain/audit"
	"posledger/internal/domain/events"
)

// Outbox implements events.Publisher. Events published in a transaction
// that rolls back are discarded with it.
type Outbox struct {
	s *Store
}

// NewOutbox creates an outbox publisher over the store.
func NewOutbox(s *Store) *Outbox {
	return &Outbox{s: s}
}

func (o *Outbox) Publish(ctx context.Context, event events.Event) error {
	if !o.s.InTransaction(ctx) {
		return fmt.Errorf("outbox publish requires active transaction")
	}
	o.s.st.outbox = append(o.s.st.outbox, event)
	return nil
}

// AuditSink implements audit.Sink by appending to the store.
type AuditSink struct {
	s *Store
}

// NewAuditSink creates an audit sink over the store.
func NewAuditSink(s *Store) *AuditSink {
	return &AuditSink{s: s}
}

func (a *AuditSink) Record(_ context.Context, event audit.Event) error {
	a.s.auditMu.Lock()
	defer a.s.auditMu.Unlock()
	a.s.audit = append(a.s.audit, event)
	return nil
}

// Events returns the events of one entity in recording order.
func (a *AuditSink) Events(entityType, entityID string) []audit.Event {
	a.s.auditMu.Lock()
	defer a.s.auditMu.Unlock()
	var result []audit.Event
	for _, e := range a.s.audit {
		if e.EntityType == entityType && e.EntityID.String() == entityID {
			result = append(result, e)
		}
	}
	return result
}

// History returns the newest events of one entity first.
func (a *AuditSink) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]audit.Event, error) {
	all := a.Events(entityType, entityID.String())
	slices.Reverse(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

var (
	_ events.Publisher = (*Outbox)(nil)
	_ audit.Sink       = (*AuditSink)(nil)
	_ audit.Reader     = (*AuditSink)(nil)
)
