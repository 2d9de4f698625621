package context

import (
	"context"

	"github.com/google/uuid"
)

// Origin names what started a unit of work.
type Origin string

const (
	OriginHTTP   Origin = "http"
	OriginWorker Origin = "worker"
	OriginCLI    Origin = "cli"
)

// Trace ties log lines and audit rows of one unit of work together.
// RequestID is what callers quote in support tickets; TraceID follows
// the work across services.
type Trace struct {
	RequestID string
	TraceID   string
	Origin    Origin
}

type traceKey struct{}

// WithTrace stores t in ctx. Missing ids are generated.
func WithTrace(ctx context.Context, t Trace) context.Context {
	if t.RequestID == "" {
		t.RequestID = uuid.NewString()
	}
	if t.TraceID == "" {
		t.TraceID = uuid.NewString()
	}
	return context.WithValue(ctx, traceKey{}, t)
}

// StartTrace begins a fresh trace for work with no inbound request,
// such as an outbox batch or a posctl command.
func StartTrace(ctx context.Context, origin Origin) context.Context {
	return WithTrace(ctx, Trace{Origin: origin})
}

// GetTrace reports the trace stored in ctx.
func GetTrace(ctx context.Context) (Trace, bool) {
	t, ok := ctx.Value(traceKey{}).(Trace)
	return t, ok
}

// GetRequestID returns the request id of ctx, or "".
func GetRequestID(ctx context.Context) string {
	t, _ := GetTrace(ctx)
	return t.RequestID
}
