package tracing

import (
	"context"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/observability/noop"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
)

var _ observability.Observability = (*Driver)(nil)

// Tracer adapts the driver to observability.Tracer.
func (d *Driver) Tracer() observability.Tracer {
	return tracer{driver: d}
}

// Logger returns the logger the driver reports through.
func (d *Driver) Logger() observability.Logger {
	return d.logger
}

type tracer struct {
	driver *Driver
}

func (t tracer) Start(ctx context.Context, spanName string, opts ...observability.SpanOption) (context.Context, observability.Span) {
	cfg := observability.NewSpanConfig(opts)
	ctx, scope := t.driver.StartSpan(ctx, spanName, WithSpanKind(cfg.Kind), WithTags(cfg.Attributes...))
	return ctx, spanAdapter{span: scope.Span()}
}

func (t tracer) SpanFromContext(ctx context.Context) observability.Span {
	if s := CurrentSpan(ctx); s != nil {
		return spanAdapter{span: s}
	}
	return noop.Span{}
}

func (t tracer) ContextWithSpan(ctx context.Context, s observability.Span) context.Context {
	if a, ok := s.(spanAdapter); ok {
		return ContextWithSpan(ctx, a.span)
	}
	return ctx
}

type spanAdapter struct {
	span *Span
}

func (a spanAdapter) End() {
	a.span.end()
}

func (a spanAdapter) SetAttributes(fields ...observability.Field) {
	a.span.SetTags(fields...)
}

// SetStatus maps an error status onto the error tag; the description, if
// any, is kept as error.message.
func (a spanAdapter) SetStatus(code observability.StatusCode, description string) {
	if code != observability.StatusCodeError {
		return
	}
	a.span.SetTag("error", true)
	if description != "" {
		a.span.SetTag("error.message", description)
	}
}

func (a spanAdapter) RecordError(err error, fields ...observability.Field) {
	if err == nil {
		return
	}
	a.span.SetTag("error", true)
	a.span.logFields(append([]observability.Field{
		observability.String("event", "error"),
		observability.Error(err),
	}, fields...))
}

func (a spanAdapter) AddEvent(name string, fields ...observability.Field) {
	a.span.logFields(append([]observability.Field{observability.String("event", name)}, fields...))
}

func (a spanAdapter) Context() observability.SpanContext {
	return spanContextView{sc: a.span.Context()}
}

type spanContextView struct {
	sc span.SpanContext
}

func (v spanContextView) TraceID() string { return v.sc.TraceID.String() }

func (v spanContextView) SpanID() string { return v.sc.SpanID.String() }

func (v spanContextView) IsSampled() bool { return v.sc.Sampled }
