package tracing

import (
	"context"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
)

type spanKey struct{}

// ContextWithSpan returns a copy of ctx carrying s as the current span. Use it
// to continue a captured span on another goroutine.
func ContextWithSpan(ctx context.Context, s *Span) context.Context {
	return context.WithValue(ctx, spanKey{}, s)
}

// CurrentSpan returns the innermost span of ctx, or nil.
func CurrentSpan(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// SpanContextFromContext returns the identity of the current span.
func SpanContextFromContext(ctx context.Context) (span.SpanContext, bool) {
	s := CurrentSpan(ctx)
	if s == nil {
		return span.SpanContext{}, false
	}
	return s.Context(), true
}

// TraceID returns the hex trace id of the current span.
func TraceID(ctx context.Context) (string, bool) {
	sc, ok := SpanContextFromContext(ctx)
	if !ok {
		return "", false
	}
	return sc.TraceID.String(), true
}

// AddTag sets a tag on the current span.
func AddTag(ctx context.Context, key string, value any) {
	if s := CurrentSpan(ctx); s != nil {
		s.SetTag(key, value)
	}
}

// AddTags sets several tags on the current span.
func AddTags(ctx context.Context, fields ...observability.Field) {
	if s := CurrentSpan(ctx); s != nil {
		s.SetTags(fields...)
	}
}

// Log appends a log record to the current span.
func Log(ctx context.Context, message string, fields ...observability.Field) {
	if s := CurrentSpan(ctx); s != nil {
		s.Log(message, fields...)
	}
}

// LogFields returns trace_id and span_id of the current span for log
// correlation, or nil without one.
func LogFields(ctx context.Context) []observability.Field {
	sc, ok := SpanContextFromContext(ctx)
	if !ok || !sc.IsValid() {
		return nil
	}
	return []observability.Field{
		observability.String("trace_id", sc.TraceID.String()),
		observability.String("span_id", sc.SpanID.String()),
	}
}
