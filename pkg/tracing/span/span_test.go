package span

import (
	"sync"
	"testing"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGeneratorProducesValidDistinctIDs(t *testing.T) {
	g := NewIDGenerator()

	traces := make(map[TraceID]struct{})
	spans := make(map[SpanID]struct{})
	for i := 0; i < 10_000; i++ {
		tid := g.NewTraceID()
		sid := g.NewSpanID()
		require.True(t, tid.IsValid())
		require.True(t, sid.IsValid())
		traces[tid] = struct{}{}
		spans[sid] = struct{}{}
	}

	assert.Len(t, traces, 10_000)
	assert.Len(t, spans, 10_000)
}

func TestIDGeneratorConcurrentUse(t *testing.T) {
	g := NewIDGenerator()

	var (
		mu  sync.Mutex
		ids = make(map[TraceID]struct{})
		wg  sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]TraceID, 0, 500)
			for i := 0; i < 500; i++ {
				local = append(local, g.NewTraceID())
			}
			mu.Lock()
			for _, id := range local {
				ids[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 4000)
}

func TestTraceIDHalvesRoundTrip(t *testing.T) {
	id := TraceIDFromHalves(0x0102030405060708, 0x090a0b0c0d0e0f10)

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", id.String())
	assert.Equal(t, uint64(0x0102030405060708), TraceIDHigh(id))
	assert.Equal(t, uint64(0x090a0b0c0d0e0f10), TraceIDLow(id))

	sid := SpanIDFromUint64(0xdeadbeef)
	assert.Equal(t, uint64(0xdeadbeef), SpanIDUint64(sid))
	assert.Equal(t, "00000000deadbeef", sid.String())
}

func TestBaggageIsCopyOnWrite(t *testing.T) {
	g := NewIDGenerator()
	root := NewSpanContext(g.NewTraceID(), g.NewSpanID(), SpanID{}, true)

	withUser := root.WithBaggageItem("user", "42")
	withBoth := withUser.WithBaggageItem("tenant", "acme")

	_, ok := root.BaggageItem("user")
	assert.False(t, ok, "original context must not see later items")
	assert.Equal(t, 1, withUser.BaggageLen())
	assert.Equal(t, 2, withBoth.BaggageLen())

	copied := withBoth.Baggage()
	copied["user"] = "mutated"
	v, _ := withBoth.BaggageItem("user")
	assert.Equal(t, "42", v)
}

func TestChildInheritsTraceAndDecision(t *testing.T) {
	g := NewIDGenerator()
	root := NewSpanContext(g.NewTraceID(), g.NewSpanID(), SpanID{}, true).WithBaggageItem("k", "v")
	child := root.Child(g.NewSpanID())

	assert.True(t, root.IsRoot())
	assert.False(t, child.IsRoot())
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentSpanID)
	assert.Equal(t, root.Sampled, child.Sampled)
	v, ok := child.BaggageItem("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestFinishedSpanAccessors(t *testing.T) {
	start := time.Unix(100, 0)
	s := FinishedSpan{
		OperationName: "op",
		StartTime:     start,
		Duration:      1500 * time.Microsecond,
		Tags:          []observability.Field{observability.String("k", "v")},
	}

	assert.Equal(t, start.Add(1500*time.Microsecond), s.EndTime())
	v, ok := s.Tag("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.False(t, s.HasTag("missing"))
	assert.Equal(t, "follows_from", FollowsFrom.String())
}
