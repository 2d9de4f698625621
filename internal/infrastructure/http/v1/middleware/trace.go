package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	appctx "posledger/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// maxInboundID caps caller-supplied ids so they stay safe to log.
const maxInboundID = 128

// Trace tags each request with a request id and a trace id. Inbound
// headers win; otherwise an active OpenTelemetry span supplies the trace
// id, and anything still missing is generated.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := appctx.Trace{
			RequestID: inboundID(c, HeaderRequestID),
			TraceID:   inboundID(c, HeaderTraceID),
			Origin:    appctx.OriginHTTP,
		}
		if t.TraceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				t.TraceID = sc.TraceID().String()
			}
		}

		ctx := appctx.WithTrace(c.Request.Context(), t)
		t, _ = appctx.GetTrace(ctx)
		c.Request = c.Request.WithContext(ctx)

		c.Set("request_id", t.RequestID)
		c.Set("trace_id", t.TraceID)
		c.Header(HeaderRequestID, t.RequestID)
		c.Header(HeaderTraceID, t.TraceID)

		c.Next()
	}
}

func inboundID(c *gin.Context, header string) string {
	v := c.GetHeader(header)
	if len(v) > maxInboundID {
		return ""
	}
	return v
}
