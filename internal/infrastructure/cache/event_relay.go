package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"posledger/internal/core/id"
	"posledger/internal/infrastructure/storage/postgres"
)

// Publisher is the part of *redis.Client the relay needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// EventEnvelope is the pub/sub message body for one outbox row.
type EventEnvelope struct {
	ID            id.ID           `json:"id"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   id.ID           `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// EventRelay delivers outbox messages to a Redis pub/sub channel.
type EventRelay struct {
	client  Publisher
	channel string
}

var _ postgres.OutboxHandler = (*EventRelay)(nil)

// NewEventRelay creates a relay publishing on channel.
func NewEventRelay(client Publisher, channel string) *EventRelay {
	return &EventRelay{client: client, channel: channel}
}

// Handle publishes one message. Having no subscribers is not an error.
func (r *EventRelay) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	body, err := json.Marshal(newEnvelope(msg))
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", msg.ID, err)
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", msg.ID, err)
	}
	return nil
}

func newEnvelope(msg *postgres.OutboxMessage) EventEnvelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return EventEnvelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		CreatedAt:     msg.CreatedAt,
	}
}
