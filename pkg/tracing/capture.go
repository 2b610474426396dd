package tracing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/exporter"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/sampling"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
)

// Capture collects finished spans in memory for tests. It is safe to read
// while other goroutines still produce spans.
type Capture struct {
	mu    sync.Mutex
	spans []span.FinishedSpan
}

var (
	_ exporter.Sink     = (*Capture)(nil)
	_ exporter.Exporter = (*Capture)(nil)
)

// NewCapture returns a driver that samples every trace and records finished
// spans synchronously into the returned Capture. Forks inherit sampling.
func NewCapture(opts ...Option) (*Driver, *Capture) {
	c := &Capture{}

	cfg := DefaultConfig()
	cfg.ServiceName = "capture"
	cfg.Sampling = SamplingConfig{
		Strategy:     sampling.KindActive,
		Ratio:        1.0,
		ForkSampling: ForkInherit,
	}

	d, err := New(cfg, append(opts, withSink(c))...)
	if err != nil {
		panic(err) // the capture configuration is constant and valid
	}
	return d, c
}

// Push records s. It never rejects a span.
func (c *Capture) Push(s span.FinishedSpan) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, s)
	return true
}

// Export records a batch, so a Capture can stand in for a transport under a
// real Reporter.
func (c *Capture) Export(_ context.Context, batch []span.FinishedSpan) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, batch...)
	return nil
}

func (c *Capture) Shutdown(context.Context) error {
	return nil
}

// Spans returns the recorded spans in finishing order.
func (c *Capture) Spans() []span.FinishedSpan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]span.FinishedSpan(nil), c.spans...)
}

// Reset forgets every recorded span.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = nil
}

// TraceOptions selects what Traces copies into each TestSpan.
type TraceOptions struct {
	IncludeTags bool
	IncludeLogs bool
}

// TestSpan is a node of a captured trace tree.
type TestSpan struct {
	Name       string
	Context    span.SpanContext
	StartTime  time.Time
	Duration   time.Duration
	References []span.Reference
	Tags       []observability.Field
	Logs       []span.LogRecord
	Children   []*TestSpan
}

// Trace is a captured trace. Roots holds the spans whose parent was not
// captured, normally a single root.
type Trace struct {
	TraceID span.TraceID
	Roots   []*TestSpan
}

// Walk returns the spans depth-first in pre-order.
func (t Trace) Walk() []*TestSpan {
	var out []*TestSpan
	var visit func(*TestSpan)
	visit = func(n *TestSpan) {
		out = append(out, n)
		for _, c := range n.Children {
			visit(c)
		}
	}
	for _, r := range t.Roots {
		visit(r)
	}
	return out
}

// Traces groups the recorded spans into trees. Children and traces are
// ordered by start time.
func (c *Capture) Traces(opts TraceOptions) []Trace {
	spans := c.Spans()

	type group struct {
		nodes map[span.SpanID]*TestSpan
		order []*TestSpan
	}
	groups := make(map[span.TraceID]*group)
	var traceOrder []span.TraceID

	for _, s := range spans {
		g, ok := groups[s.Context.TraceID]
		if !ok {
			g = &group{nodes: make(map[span.SpanID]*TestSpan)}
			groups[s.Context.TraceID] = g
			traceOrder = append(traceOrder, s.Context.TraceID)
		}

		n := &TestSpan{
			Name:       s.OperationName,
			Context:    s.Context,
			StartTime:  s.StartTime,
			Duration:   s.Duration,
			References: s.References,
		}
		if opts.IncludeTags {
			n.Tags = s.Tags
		}
		if opts.IncludeLogs {
			n.Logs = s.Logs
		}
		g.nodes[s.Context.SpanID] = n
		g.order = append(g.order, n)
	}

	byStart := func(nodes []*TestSpan) {
		sort.SliceStable(nodes, func(i, j int) bool {
			return nodes[i].StartTime.Before(nodes[j].StartTime)
		})
	}

	traces := make([]Trace, 0, len(traceOrder))
	for _, id := range traceOrder {
		g := groups[id]
		t := Trace{TraceID: id}
		for _, n := range g.order {
			if parent, ok := g.nodes[n.Context.ParentSpanID]; ok && !n.Context.IsRoot() {
				parent.Children = append(parent.Children, n)
				continue
			}
			t.Roots = append(t.Roots, n)
		}
		for _, n := range g.order {
			byStart(n.Children)
		}
		byStart(t.Roots)
		traces = append(traces, t)
	}

	sort.SliceStable(traces, func(i, j int) bool {
		return traces[i].Roots[0].StartTime.Before(traces[j].Roots[0].StartTime)
	})
	return traces
}
