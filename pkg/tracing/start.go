package tracing

import (
	"context"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/sampling"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
)

// StartOption configures a new span.
type StartOption func(*startConfig)

type startConfig struct {
	override *float64
	stitched span.SpanContext
	start    time.Time
	kind     observability.SpanKind
	tags     []observability.Field
}

// WithSamplingRatio samples the new trace with ratio instead of the
// configured strategy and rate limit. It has no effect on child spans or on
// a disabled driver.
func WithSamplingRatio(ratio float64) StartOption {
	return func(c *startConfig) {
		c.override = &ratio
	}
}

// WithStitchedContext continues a trace started in another process: the new
// root keeps its trace id, records the remote span as parent and inherits
// its sampling decision.
func WithStitchedContext(sc span.SpanContext) StartOption {
	return func(c *startConfig) {
		c.stitched = sc
	}
}

// WithStartTime sets an explicit start time.
func WithStartTime(t time.Time) StartOption {
	return func(c *startConfig) {
		c.start = t
	}
}

// WithSpanKind sets the span kind.
func WithSpanKind(kind observability.SpanKind) StartOption {
	return func(c *startConfig) {
		c.kind = kind
	}
}

// WithTags sets initial tags.
func WithTags(fields ...observability.Field) StartOption {
	return func(c *startConfig) {
		c.tags = append(c.tags, fields...)
	}
}

func newStartConfig(opts []StartOption) startConfig {
	var c startConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// StartTrace starts a new trace with the global driver.
func StartTrace(ctx context.Context, name string, opts ...StartOption) (context.Context, *Scope) {
	return Global().StartTrace(ctx, name, opts...)
}

// StartSpan starts a child of the current span with the global driver.
func StartSpan(ctx context.Context, name string, opts ...StartOption) (context.Context, *Scope) {
	return Global().StartSpan(ctx, name, opts...)
}

// ForkTrace starts a forked trace with the global driver.
func ForkTrace(ctx context.Context, name string, opts ...StartOption) (context.Context, *Scope) {
	return Global().ForkTrace(ctx, name, opts...)
}

// StartTrace starts the root span of a new trace and runs the sampler for it.
//
// With WithStitchedContext the root joins the remote trace instead. When ctx
// already carries a sampled span, the new trace is linked to it the way
// ForkTrace links a fork.
func (d *Driver) StartTrace(ctx context.Context, name string, opts ...StartOption) (context.Context, *Scope) {
	cfg := newStartConfig(opts)

	if cfg.stitched.IsValid() {
		return d.stitch(ctx, name, cfg)
	}

	traceID := d.ids.NewTraceID()
	decision := d.sampler.Decide(sampling.Input{Override: cfg.override})
	sc := span.NewSpanContext(traceID, d.ids.NewSpanID(), span.SpanID{}, decision.IsSampled())

	if parent := CurrentSpan(ctx); parent != nil && parent.IsSampled() {
		return d.startLinked(ctx, parent, name, sc, cfg)
	}
	return d.start(ctx, name, sc, cfg, nil, true)
}

// StartSpan starts a child of the span in ctx. The child shares the trace id,
// the sampling decision and the baggage of its parent. Without a span in ctx
// it starts a new trace.
func (d *Driver) StartSpan(ctx context.Context, name string, opts ...StartOption) (context.Context, *Scope) {
	parent := CurrentSpan(ctx)
	if parent == nil {
		return d.StartTrace(ctx, name, opts...)
	}

	sc := parent.Context().Child(d.ids.NewSpanID())
	return d.start(ctx, name, sc, newStartConfig(opts), nil, false)
}

func (d *Driver) stitch(ctx context.Context, name string, cfg startConfig) (context.Context, *Scope) {
	remote := cfg.stitched
	decision := d.sampler.Decide(sampling.Input{
		Parent:   sampling.DecisionOf(remote.Sampled),
		Override: cfg.override,
	})

	sc := span.NewSpanContext(remote.TraceID, d.ids.NewSpanID(), remote.SpanID, decision.IsSampled()).
		WithBaggage(remote.Baggage())
	refs := []span.Reference{{Type: span.ChildOf, TraceID: remote.TraceID, SpanID: remote.SpanID}}

	return d.start(ctx, name, sc, cfg, refs, true)
}

func (d *Driver) start(ctx context.Context, name string, sc span.SpanContext, cfg startConfig, refs []span.Reference, root bool) (context.Context, *Scope) {
	start := cfg.start
	if start.IsZero() {
		start = d.clock.Now()
	}

	s := &Span{
		driver:  d,
		context: sc,
		name:    name,
		kind:    cfg.kind,
		start:   start,
	}

	if sc.Sampled {
		s.refs = refs
		s.setTagsLocked(cfg.tags)
		if root && d.live != nil {
			s.tracked = true
			d.live.add(s, name, sc.TraceID, start)
		}
	}

	return ContextWithSpan(ctx, s), &Scope{span: s}
}
