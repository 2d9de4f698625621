package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/core/id"
	"posledger/internal/domain/audit"
)

func TestAuditSink_EncodeDecodeSmall(t *testing.T) {
	sink, err := NewAuditSink(nil)
	require.NoError(t, err)

	event := audit.Event{
		EntityType: "invoice",
		EntityID:   id.New(),
		Action:     audit.ActionInvoiceCancel,
		OldValues:  map[string]any{"status": "PENDING"},
		NewValues:  map[string]any{"status": "CANCELLED"},
		Actor:      "manager-1",
		OccurredAt: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}

	entry, err := sink.encode(event)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, entry.CompressionAlgo)
	assert.Nil(t, entry.ChangesCompressed)

	decoded, err := sink.decode(entry)
	require.NoError(t, err)
	assert.Equal(t, event.EntityID, decoded.EntityID)
	assert.Equal(t, "CANCELLED", decoded.NewValues["status"])
	assert.Equal(t, "PENDING", decoded.OldValues["status"])
	assert.Equal(t, "manager-1", decoded.Actor)
}

func TestAuditSink_CompressesLargeChanges(t *testing.T) {
	sink, err := NewAuditSink(nil)
	require.NoError(t, err)

	notes := strings.Repeat("long note ", 2000)
	entry, err := sink.encode(audit.Event{
		EntityType: "return",
		EntityID:   id.New(),
		Action:     audit.ActionReturnReject,
		NewValues:  map[string]any{"notes": notes},
	})
	require.NoError(t, err)

	assert.Equal(t, CompressionZstd, entry.CompressionAlgo)
	assert.Nil(t, entry.Changes)
	assert.Less(t, len(entry.ChangesCompressed), len(notes))
	assert.False(t, entry.CreatedAt.IsZero())

	decoded, err := sink.decode(entry)
	require.NoError(t, err)
	assert.Equal(t, notes, decoded.NewValues["notes"])
}
