package audit

import (
	"context"
	"sync"
	"time"

	appctx "posledger/internal/core/context"
	"posledger/pkg/logger"
)

const defaultBuffer = 256

type queued struct {
	ctx   context.Context
	event Event
}

// Recorder delivers events to a Sink from a background goroutine.
// A full buffer drops the event with a warning.
type Recorder struct {
	sink  Sink
	queue chan queued
	done  chan struct{}
	log   *logger.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewRecorder starts a recorder with the given buffer size.
func NewRecorder(sink Sink, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	r := &Recorder{
		sink:  sink,
		queue: make(chan queued, buffer),
		done:  make(chan struct{}),
		log:   logger.Default().WithComponent("audit"),
	}
	go r.run()
	return r
}

// Log enqueues an event. Actor and timestamp are filled from ctx when unset.
func (r *Recorder) Log(ctx context.Context, event Event) {
	if event.Actor == "" {
		event.Actor = appctx.ActorOrSystem(ctx)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.WithContext(ctx).Warnw("audit recorder closed, event dropped",
			"entity_type", event.EntityType, "action", event.Action)
		return
	}

	select {
	case r.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		r.log.WithContext(ctx).Warnw("audit buffer full, event dropped",
			"entity_type", event.EntityType, "entity_id", event.EntityID, "action", event.Action)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for item := range r.queue {
		if err := r.sink.Record(item.ctx, item.event); err != nil {
			r.log.WithContext(item.ctx).Errorw("audit record failed",
				"entity_type", item.event.EntityType,
				"entity_id", item.event.EntityID,
				"action", item.event.Action,
				"error", err,
			)
		}
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
