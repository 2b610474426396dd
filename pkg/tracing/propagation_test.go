package tracing

import (
	"context"
	"fmt"
	"testing"

	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
)

func TestInjectExtractRoundTrip(t *testing.T) {
	d, c := NewCapture()

	ctx, root := d.StartTrace(context.Background(), "client")
	root.Span().SetBaggageItem("tenant", "acme corp")
	sc := root.Span().Context()

	carrier := propagation.MapCarrier{}
	Inject(ctx, carrier)
	assert.Equal(t, fmt.Sprintf("00-%s-%s-01", sc.TraceID, sc.SpanID), carrier.Get("traceparent"))
	assert.NotEmpty(t, carrier.Get("baggage"))

	remote, ok := Extract(context.Background(), carrier)
	require.True(t, ok)
	assert.Equal(t, sc.TraceID, remote.TraceID)
	assert.Equal(t, sc.SpanID, remote.SpanID)
	assert.True(t, remote.Sampled)
	tenant, ok := remote.BaggageItem("tenant")
	require.True(t, ok)
	assert.Equal(t, "acme corp", tenant)

	serverCtx, server := d.StartTrace(context.Background(), "server", WithStitchedContext(remote))
	server.End()
	root.End()

	got := findSpan(t, c.Spans(), "server")
	assert.Equal(t, sc.TraceID, got.Context.TraceID)
	assert.Equal(t, sc.SpanID, got.Context.ParentSpanID)
	assert.Equal(t, []span.Reference{{Type: span.ChildOf, TraceID: sc.TraceID, SpanID: sc.SpanID}}, got.References)

	inherited, ok := CurrentSpan(serverCtx).Context().BaggageItem("tenant")
	require.True(t, ok)
	assert.Equal(t, "acme corp", inherited)
}

func TestInjectUnsampled(t *testing.T) {
	d, _ := newTestDriver(t, activeSampling(0))

	ctx, root := d.StartTrace(context.Background(), "client")
	defer root.End()

	carrier := propagation.MapCarrier{}
	Inject(ctx, carrier)

	remote, ok := Extract(context.Background(), carrier)
	require.True(t, ok)
	assert.False(t, remote.Sampled)
}

func TestExtractWithoutHeaders(t *testing.T) {
	_, ok := Extract(context.Background(), propagation.MapCarrier{})
	assert.False(t, ok)

	carrier := propagation.MapCarrier{}
	Inject(context.Background(), carrier)
	assert.Empty(t, carrier.Keys())
}

func TestStitchState(t *testing.T) {
	d, _ := NewCapture()

	ctx, root := d.StartTrace(context.Background(), "root")
	defer root.End()

	state, ok := StitchState(ctx)
	require.True(t, ok)
	assert.Equal(t, root.Span().Context().SpanID, state.SpanID)

	_, ok = StitchState(context.Background())
	assert.False(t, ok)
}
