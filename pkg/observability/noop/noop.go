// Package noop provides observability implementations that discard everything.
package noop

import (
	"context"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
)

// Provider bundles the no-op tracer and logger.
type Provider struct {
	tracer Tracer
	logger Logger
}

// NewProvider creates a provider whose components do nothing.
func NewProvider() *Provider {
	return &Provider{}
}

// Tracer returns a no-op tracer.
func (p *Provider) Tracer() observability.Tracer {
	return p.tracer
}

// Logger returns a no-op logger.
func (p *Provider) Logger() observability.Logger {
	return p.logger
}

// Tracer implements observability.Tracer without recording anything.
type Tracer struct{}

func (Tracer) Start(ctx context.Context, _ string, _ ...observability.SpanOption) (context.Context, observability.Span) {
	return ctx, Span{}
}

func (Tracer) SpanFromContext(context.Context) observability.Span {
	return Span{}
}

func (Tracer) ContextWithSpan(ctx context.Context, _ observability.Span) context.Context {
	return ctx
}

// Span implements observability.Span without recording anything.
type Span struct{}

func (Span) End() {}

func (Span) SetAttributes(...observability.Field) {}

func (Span) SetStatus(observability.StatusCode, string) {}

func (Span) RecordError(error, ...observability.Field) {}

func (Span) AddEvent(string, ...observability.Field) {}

func (Span) Context() observability.SpanContext { return SpanContext{} }

// SpanContext is the empty span context.
type SpanContext struct{}

func (SpanContext) TraceID() string { return "" }

func (SpanContext) SpanID() string { return "" }

func (SpanContext) IsSampled() bool { return false }

// Logger implements observability.Logger by dropping entries.
type Logger struct{}

func (Logger) Debug(context.Context, string, ...observability.Field) {}

func (Logger) Info(context.Context, string, ...observability.Field) {}

func (Logger) Warn(context.Context, string, ...observability.Field) {}

func (Logger) Error(context.Context, string, ...observability.Field) {}

func (l Logger) With(...observability.Field) observability.Logger {
	return l
}
