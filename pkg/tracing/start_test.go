package tracing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/ratelimit"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/sampling"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T, sc SamplingConfig, opts ...Option) (*Driver, *Capture) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Sampling = sc

	c := &Capture{}
	d, err := New(cfg, append(opts, withSink(c))...)
	require.NoError(t, err)
	return d, c
}

func activeSampling(ratio float64) SamplingConfig {
	return SamplingConfig{Strategy: sampling.KindActive, Ratio: ratio, ForkSampling: ForkInherit}
}

func TestDescendantsInheritRootDecision(t *testing.T) {
	strategies := map[string]SamplingConfig{
		"disabled":   {Strategy: sampling.KindDisabled},
		"passive":    {Strategy: sampling.KindPassive},
		"active_1":   activeSampling(1),
		"active_0":   activeSampling(0),
		"active_0.5": activeSampling(0.5),
		"rate_limited": {
			Strategy:  sampling.KindActive,
			Ratio:     1,
			RateLimit: sampling.RateLimit{Enabled: true, MaxEventsPerSecond: 5},
		},
	}

	for name, sc := range strategies {
		t.Run(name, func(t *testing.T) {
			d, _ := newTestDriver(t, sc)

			for i := 0; i < 50; i++ {
				ctx, root := d.StartTrace(context.Background(), "root")
				want := root.Span().IsSampled()

				childCtx, child := d.StartSpan(ctx, "child")
				_, grandchild := d.StartSpan(childCtx, "grandchild")
				_, sibling := d.StartSpan(ctx, "sibling")

				assert.Equal(t, want, child.Span().IsSampled())
				assert.Equal(t, want, grandchild.Span().IsSampled())
				assert.Equal(t, want, sibling.Span().IsSampled())
				assert.Equal(t, root.Span().Context().TraceID, grandchild.Span().Context().TraceID)

				grandchild.End()
				sibling.End()
				child.End()
				root.End()
			}
		})
	}
}

func TestPassiveNeverOriginates(t *testing.T) {
	d, c := newTestDriver(t, SamplingConfig{Strategy: sampling.KindPassive})

	for i := 0; i < 100; i++ {
		_, scope := d.StartTrace(context.Background(), "root")
		assert.False(t, scope.Span().IsSampled())
		scope.End()
	}
	assert.Empty(t, c.Spans())

	remote := span.NewSpanContext(span.TraceIDFromHalves(1, 2), span.SpanIDFromUint64(3), span.SpanID{}, true)
	_, stitched := d.StartTrace(context.Background(), "stitched", WithStitchedContext(remote))
	assert.True(t, stitched.Span().IsSampled(), "a sampled parent decision is inherited")

	_, forced := d.StartTrace(context.Background(), "forced", WithSamplingRatio(1))
	assert.True(t, forced.Span().IsSampled(), "an override ratio wins over the strategy")
}

func TestActiveRatioBounds(t *testing.T) {
	always, _ := newTestDriver(t, activeSampling(1))
	never, _ := newTestDriver(t, activeSampling(0))

	for i := 0; i < 200; i++ {
		_, a := always.StartTrace(context.Background(), "a")
		_, n := never.StartTrace(context.Background(), "n")
		assert.True(t, a.Span().IsSampled())
		assert.False(t, n.Span().IsSampled())
	}
}

func TestRateLimitGatesRoots(t *testing.T) {
	clock := ratelimit.NewManualClock(time.Unix(0, 0))
	d, _ := newTestDriver(t, SamplingConfig{
		Strategy:  sampling.KindActive,
		Ratio:     1,
		RateLimit: sampling.RateLimit{Enabled: true, MaxEventsPerSecond: 2},
	}, WithClock(clock))

	sampled := 0
	for i := 0; i < 10; i++ {
		_, s := d.StartTrace(context.Background(), "root")
		if s.Span().IsSampled() {
			sampled++
		}
	}
	assert.Equal(t, 1, sampled, "default burst of one")

	clock.Advance(500 * time.Millisecond)
	_, s := d.StartTrace(context.Background(), "root")
	assert.True(t, s.Span().IsSampled())

	_, o := d.StartTrace(context.Background(), "override", WithSamplingRatio(1))
	assert.True(t, o.Span().IsSampled(), "the override bypasses the rate limit")
}

func TestDisabledIgnoresOverride(t *testing.T) {
	d, _ := newTestDriver(t, SamplingConfig{Strategy: sampling.KindDisabled})

	_, s := d.StartTrace(context.Background(), "root", WithSamplingRatio(1))
	assert.False(t, s.Span().IsSampled())
}

func TestConcurrentTracesAreIsolated(t *testing.T) {
	d, c := newTestDriver(t, activeSampling(1))

	const workers = 64
	ids := make([]span.TraceID, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			ctx, root := d.StartTrace(context.Background(), fmt.Sprintf("worker-%d", i))
			defer root.End()

			for j := 0; j < 10; j++ {
				childCtx, child := d.StartSpan(ctx, "step")
				AddTag(childCtx, "worker", i)
				assert.Same(t, child.Span(), CurrentSpan(childCtx))
				assert.Same(t, root.Span(), CurrentSpan(ctx))
				child.End()
			}

			ids[i] = root.Span().Context().TraceID
		}(i)
	}
	wg.Wait()

	seen := make(map[span.TraceID]bool, workers)
	for _, id := range ids {
		assert.True(t, id.IsValid())
		assert.False(t, seen[id], "trace id reused")
		seen[id] = true
	}

	for _, tr := range c.Traces(TraceOptions{IncludeTags: true}) {
		require.Len(t, tr.Roots, 1)
		want := tr.Roots[0].Name
		for _, child := range tr.Roots[0].Children {
			v, ok := child.Tags[0].Normalize().Value.(int64)
			require.True(t, ok)
			assert.Equal(t, want, fmt.Sprintf("worker-%d", v))
		}
	}
}

func TestScopeEndIsIdempotent(t *testing.T) {
	d, c := newTestDriver(t, activeSampling(1))

	ctx, scope := d.StartTrace(context.Background(), "root")
	AddTag(ctx, "k", "v")
	scope.End()
	scope.End()

	AddTag(ctx, "late", true)
	Log(ctx, "late")

	spans := c.Spans()
	require.Len(t, spans, 1)
	assert.False(t, spans[0].HasTag("late"))
	assert.Empty(t, spans[0].Logs)

	var nilScope *Scope
	assert.NotPanics(t, nilScope.End)
}

func TestNestingIsLIFO(t *testing.T) {
	d, _ := newTestDriver(t, activeSampling(1))

	ctx, root := d.StartTrace(context.Background(), "root")
	defer root.End()

	childCtx, child := d.StartSpan(ctx, "child")
	assert.Same(t, child.Span(), CurrentSpan(childCtx))
	child.End()

	assert.Same(t, root.Span(), CurrentSpan(ctx))
	assert.Equal(t, root.Span().Context().SpanID, child.Span().Context().ParentSpanID)
}

func TestTagsLastWriteWins(t *testing.T) {
	d, c := newTestDriver(t, activeSampling(1))

	ctx, scope := d.StartTrace(context.Background(), "root", WithTags(observability.String("k", "initial")))
	AddTag(ctx, "k", 1)
	AddTags(ctx, observability.String("j", "x"), observability.Int("k", 3))
	scope.End()

	spans := c.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, []observability.Field{
		{Key: "k", Value: int64(3)},
		{Key: "j", Value: "x"},
	}, spans[0].Tags)
}

func TestUnsampledSpansIgnoreMutations(t *testing.T) {
	d, c := newTestDriver(t, activeSampling(0))

	ctx, scope := d.StartTrace(context.Background(), "root")
	AddTag(ctx, "k", "v")
	Log(ctx, "message")
	scope.End()

	assert.Empty(t, c.Spans())
}

func TestHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, CurrentSpan(ctx))
	assert.NotPanics(t, func() {
		AddTag(ctx, "k", "v")
		AddTags(ctx, observability.String("a", "b"))
		Log(ctx, "nothing")
	})

	_, ok := TraceID(ctx)
	assert.False(t, ok)
	assert.Nil(t, LogFields(ctx))
}

func TestSpanTiming(t *testing.T) {
	clock := ratelimit.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	d, c := newTestDriver(t, activeSampling(1), WithClock(clock))

	ctx, scope := d.StartTrace(context.Background(), "root")
	clock.Advance(5 * time.Millisecond)
	Log(ctx, "halfway", observability.Int("step", 1))
	clock.Advance(5 * time.Millisecond)
	scope.End()

	_, explicit := d.StartTrace(context.Background(), "explicit")
	explicit.Span().SetStartTime(clock.Now().Add(-time.Second))
	explicit.Span().SetFinishTime(clock.Now().Add(time.Second))
	explicit.End()

	spans := c.Spans()
	require.Len(t, spans, 2)

	assert.Equal(t, 10*time.Millisecond, spans[0].Duration)
	require.Len(t, spans[0].Logs, 1)
	assert.Equal(t, clock.Now().Add(-5*time.Millisecond), spans[0].Logs[0].Time)
	assert.Equal(t, observability.String("message", "halfway"), spans[0].Logs[0].Fields[0])

	assert.Equal(t, 2*time.Second, spans[1].Duration)
}

func TestLogFieldsAndTraceID(t *testing.T) {
	d, _ := newTestDriver(t, activeSampling(1))

	ctx, scope := d.StartTrace(context.Background(), "root")
	defer scope.End()

	id, ok := TraceID(ctx)
	require.True(t, ok)
	assert.Len(t, id, 32)

	fields := LogFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "trace_id", fields[0].Key)
	assert.Equal(t, id, fields[0].Value)
	assert.Equal(t, scope.Span().Context().SpanID.String(), fields[1].Value)
}

func TestContextWithSpanAcrossGoroutines(t *testing.T) {
	d, c := newTestDriver(t, activeSampling(1))

	ctx, root := d.StartTrace(context.Background(), "root")
	captured := CurrentSpan(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		workerCtx := ContextWithSpan(context.Background(), captured)
		_, child := d.StartSpan(workerCtx, "async")
		child.End()
	}()
	<-done
	root.End()

	traces := c.Traces(TraceOptions{})
	require.Len(t, traces, 1)
	walk := traces[0].Walk()
	require.Len(t, walk, 2)
	assert.Equal(t, "async", walk[1].Name)
}
