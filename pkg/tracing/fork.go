package tracing

import (
	"context"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/sampling"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
)

const forkNote = "a new trace was started from here; look it up by the trace_id tag"

// ForkTrace starts an independent trace for work that outlives or runs apart
// from the current operation, e.g. a background job.
//
// When the current span is sampled, a "[<name> ref]" span is recorded in the
// current trace carrying the new trace id, and the fork root points back at
// it with a FollowsFrom reference plus trace_id and fork_of_span_id tags. The
// fork root has no parent. Its sampling decision follows
// Config.Sampling.ForkSampling: with inherit, a fork outside any sampled span
// is not sampled unless a ratio override says otherwise. With redraw and no
// current span ForkTrace behaves like StartTrace.
func (d *Driver) ForkTrace(ctx context.Context, name string, opts ...StartOption) (context.Context, *Scope) {
	parent := CurrentSpan(ctx)
	redraw := d.config.Sampling.ForkSampling == ForkRedraw
	if parent == nil && redraw {
		return d.StartTrace(ctx, name, opts...)
	}

	cfg := newStartConfig(opts)
	in := sampling.Input{Override: cfg.override}
	if !redraw {
		in.Parent = sampling.DecisionOf(parent != nil && parent.IsSampled())
	}

	decision := d.sampler.Decide(in)
	sc := span.NewSpanContext(d.ids.NewTraceID(), d.ids.NewSpanID(), span.SpanID{}, decision.IsSampled())

	if parent == nil || !parent.IsSampled() {
		return d.start(ctx, name, sc, cfg, nil, true)
	}
	return d.startLinked(ctx, parent, name, sc, cfg)
}

// startLinked records the ref span in the parent's trace and starts the new
// root linked to it.
func (d *Driver) startLinked(ctx context.Context, parent *Span, name string, sc span.SpanContext, cfg startConfig) (context.Context, *Scope) {
	origin := parent.Context()

	_, ref := d.start(ctx, "["+name+" ref]", origin.Child(d.ids.NewSpanID()), startConfig{
		tags: []observability.Field{
			observability.String("note", forkNote),
			observability.String("trace_id", sc.TraceID.String()),
		},
	}, nil, false)
	ref.End()

	refID := ref.Span().Context().SpanID
	cfg.tags = append([]observability.Field{
		observability.String("trace_id", origin.TraceID.String()),
		observability.String("fork_of_span_id", refID.String()),
	}, cfg.tags...)
	refs := []span.Reference{{Type: span.FollowsFrom, TraceID: origin.TraceID, SpanID: refID}}

	return d.start(ctx, name, sc, cfg, refs, true)
}
