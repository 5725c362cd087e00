package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext correlates log lines of one request or background task.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// NewTraceContext builds a TraceContext for requestID. The OpenTelemetry
// span in ctx supplies the trace and span ids when one is recording;
// fallbackTraceID (or a fresh id) is used otherwise.
func NewTraceContext(ctx context.Context, requestID, fallbackTraceID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return &TraceContext{
			TraceID:   sc.TraceID().String(),
			SpanID:    sc.SpanID().String(),
			RequestID: requestID,
		}
	}
	if fallbackTraceID == "" {
		fallbackTraceID = uuid.NewString()
	}
	return &TraceContext{
		TraceID:   fallbackTraceID,
		SpanID:    uuid.NewString()[:16],
		RequestID: requestID,
	}
}
