package observability

import "context"

// Tracer starts spans and moves them in and out of a context.
type Tracer interface {
	// Start creates a span as a child of the span found in ctx, or a new trace
	// root when ctx holds none. The returned context carries the new span.
	Start(ctx context.Context, spanName string, opts ...SpanOption) (context.Context, Span)

	// SpanFromContext returns the span carried by ctx. It never returns nil.
	SpanFromContext(ctx context.Context) Span

	// ContextWithSpan returns a copy of ctx carrying span.
	ContextWithSpan(ctx context.Context, span Span) context.Context
}

// Span is the application-facing view of an active span.
type Span interface {
	// End finishes the span. Calls after the first are ignored.
	End()

	SetAttributes(fields ...Field)
	SetStatus(code StatusCode, description string)
	RecordError(err error, fields ...Field)
	AddEvent(name string, fields ...Field)
	Context() SpanContext
}

// SpanContext exposes the identifiers of a span in their hex text form.
type SpanContext interface {
	TraceID() string
	SpanID() string
	IsSampled() bool
}

// StatusCode is the outcome recorded on a span.
type StatusCode int

const (
	StatusCodeUnset StatusCode = iota
	StatusCodeOK
	StatusCodeError
)

// SpanKind describes the role of a span in a trace.
type SpanKind int

const (
	SpanKindUnspecified SpanKind = iota
	SpanKindInternal
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

// String returns the lower-case name used as the "span.kind" tag.
func (k SpanKind) String() string {
	switch k {
	case SpanKindInternal:
		return "internal"
	case SpanKindServer:
		return "server"
	case SpanKindClient:
		return "client"
	case SpanKindProducer:
		return "producer"
	case SpanKindConsumer:
		return "consumer"
	default:
		return ""
	}
}

// SpanOption configures span creation.
type SpanOption func(*SpanConfig)

// SpanConfig holds the options applied when a span starts.
type SpanConfig struct {
	Kind       SpanKind
	Attributes []Field
}

// WithSpanKind sets the span kind.
func WithSpanKind(kind SpanKind) SpanOption {
	return func(c *SpanConfig) {
		c.Kind = kind
	}
}

// WithAttributes sets initial attributes on the span.
func WithAttributes(fields ...Field) SpanOption {
	return func(c *SpanConfig) {
		c.Attributes = append(c.Attributes, fields...)
	}
}

// NewSpanConfig applies opts over an empty configuration.
func NewSpanConfig(opts []SpanOption) SpanConfig {
	var cfg SpanConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
