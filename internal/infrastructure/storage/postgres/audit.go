// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"posledger/internal/core/id"
	"posledger/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

const defaultCompressThreshold = 10 * 1024

// AuditEntry is one sys_audit row.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	UserID            string          `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

type auditChanges struct {
	Old map[string]any `json:"old,omitempty"`
	New map[string]any `json:"new,omitempty"`
}

// AuditSink implements audit.Sink over sys_audit.
// Change sets larger than the threshold are stored zstd-compressed.
type AuditSink struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var (
	_ audit.Sink   = (*AuditSink)(nil)
	_ audit.Reader = (*AuditSink)(nil)
)

// NewAuditSink creates an audit sink.
func NewAuditSink(txManager *TxManager) (*AuditSink, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditSink{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: defaultCompressThreshold,
	}, nil
}

// Record inserts one audit row. It always writes through the pool: events
// arrive asynchronously, after the transaction that produced them has ended.
func (s *AuditSink) Record(ctx context.Context, event audit.Event) error {
	entry, err := s.encode(event)
	if err != nil {
		return err
	}

	sql := `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.txManager.Pool().Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *AuditSink) encode(event audit.Event) (AuditEntry, error) {
	changes, err := json.Marshal(auditChanges{Old: event.OldValues, New: event.NewValues})
	if err != nil {
		return AuditEntry{}, fmt.Errorf("marshal changes: %w", err)
	}

	entry := AuditEntry{
		ID:              id.New(),
		EntityType:      event.EntityType,
		EntityID:        event.EntityID,
		Action:          string(event.Action),
		UserID:          event.Actor,
		Changes:         changes,
		CompressionAlgo: CompressionNone,
		CreatedAt:       event.OccurredAt,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if len(changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
	return entry, nil
}

func (s *AuditSink) decode(entry AuditEntry) (audit.Event, error) {
	raw := entry.Changes
	if entry.CompressionAlgo == CompressionZstd && len(entry.ChangesCompressed) > 0 {
		decompressed, err := s.decoder.DecodeAll(entry.ChangesCompressed, nil)
		if err != nil {
			return audit.Event{}, fmt.Errorf("decompress changes: %w", err)
		}
		raw = decompressed
	}

	var changes auditChanges
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &changes); err != nil {
			return audit.Event{}, fmt.Errorf("unmarshal changes: %w", err)
		}
	}

	return audit.Event{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     audit.Action(entry.Action),
		OldValues:  changes.Old,
		NewValues:  changes.New,
		Actor:      entry.UserID,
		OccurredAt: entry.CreatedAt,
	}, nil
}

// History returns the newest events of one entity first.
func (s *AuditSink) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	sql := `
		SELECT id, entity_type, entity_id, action, user_id,
			   changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		event, err := s.decode(e)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
