package tracing

import (
	"context"

	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Inject writes the current span as W3C traceparent and baggage headers into
// carrier. It writes nothing without a current span.
func Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	sc, ok := SpanContextFromContext(ctx)
	if !ok || !sc.IsValid() {
		return
	}

	var flags trace.TraceFlags
	if sc.Sampled {
		flags = trace.FlagsSampled
	}

	octx := trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    sc.TraceID,
		SpanID:     sc.SpanID,
		TraceFlags: flags,
	}))

	if sc.BaggageLen() > 0 {
		members := make([]baggage.Member, 0, sc.BaggageLen())
		for k, v := range sc.Baggage() {
			m, err := baggage.NewMemberRaw(k, v)
			if err != nil {
				continue
			}
			members = append(members, m)
		}
		if bag, err := baggage.New(members...); err == nil {
			octx = baggage.ContextWithBaggage(octx, bag)
		}
	}

	propagator.Inject(octx, carrier)
}

// Extract reads a span context written by Inject, or by any W3C trace
// context propagator. Pass the result to WithStitchedContext.
func Extract(ctx context.Context, carrier propagation.TextMapCarrier) (span.SpanContext, bool) {
	octx := propagator.Extract(ctx, carrier)

	osc := trace.SpanContextFromContext(octx)
	if !osc.IsValid() {
		return span.SpanContext{}, false
	}

	sc := span.NewSpanContext(osc.TraceID(), osc.SpanID(), span.SpanID{}, osc.IsSampled())

	if members := baggage.FromContext(octx).Members(); len(members) > 0 {
		items := make(map[string]string, len(members))
		for _, m := range members {
			items[m.Key()] = m.Value()
		}
		sc = sc.WithBaggage(items)
	}
	return sc, true
}

// StitchState returns the current span context for handing to another
// process or to a later StartTrace with WithStitchedContext.
func StitchState(ctx context.Context) (span.SpanContext, bool) {
	return SpanContextFromContext(ctx)
}
