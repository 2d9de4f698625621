package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/core/id"
	"posledger/internal/infrastructure/storage/postgres"
)

type fakePublisher struct {
	channel string
	body    []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.body, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestEventRelay_PublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	relay := NewEventRelay(pub, "posledger.events")

	msg := &postgres.OutboxMessage{
		ID:            id.New(),
		AggregateType: "invoice",
		AggregateID:   id.New(),
		EventType:     "invoice.created",
		Payload:       []byte(`{"invoiceNumber":"INV-20250615-BR01-00001"}`),
		CreatedAt:     time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, relay.Handle(context.Background(), msg))

	assert.Equal(t, "posledger.events", pub.channel)
	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.body, &got))
	assert.Equal(t, "invoice.created", got["eventType"])
	assert.Equal(t, msg.AggregateID.String(), got["aggregateId"])
	payload, ok := got["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "INV-20250615-BR01-00001", payload["invoiceNumber"])
}

func TestEventRelay_EmptyPayload(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewEventRelay(pub, "c").Handle(context.Background(), &postgres.OutboxMessage{ID: id.New()}))
	assert.Contains(t, string(pub.body), `"payload":null`)
}

func TestEventRelay_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection reset")}
	err := NewEventRelay(pub, "c").Handle(context.Background(), &postgres.OutboxMessage{ID: id.New()})
	assert.ErrorContains(t, err, "connection reset")
}
