package tracing

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
)

type liveRoot struct {
	name    string
	traceID span.TraceID
	start   time.Time
}

// liveTraces is the set of sampled roots that have not finished yet.
type liveTraces struct {
	mu    sync.Mutex
	roots map[*Span]liveRoot
}

func newLiveTraces() *liveTraces {
	return &liveTraces{roots: make(map[*Span]liveRoot)}
}

func (l *liveTraces) add(s *Span, name string, traceID span.TraceID, start time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roots[s] = liveRoot{name: name, traceID: traceID, start: start}
}

func (l *liveTraces) remove(s *Span) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.roots, s)
}

func (l *liveTraces) snapshot() []liveRoot {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]liveRoot, 0, len(l.roots))
	for _, r := range l.roots {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].start.Before(out[j].start)
	})
	return out
}

// traceEvent is one entry of the Chrome trace event format.
type traceEvent struct {
	Name  string `json:"name"`
	Cat   string `json:"cat,omitempty"`
	Phase string `json:"ph"`
	TS    int64  `json:"ts"`
	PID   int    `json:"pid"`
	TID   int    `json:"tid"`
	ID    string `json:"id,omitempty"`
	Scope string `json:"s,omitempty"`
}

type traceDump struct {
	TraceEvents     []traceEvent `json:"traceEvents"`
	DisplayTimeUnit string       `json:"displayTimeUnit"`
}

// ActiveTraces renders the unfinished sampled roots as Chrome trace event
// JSON, loadable in chrome://tracing or Perfetto. Each root becomes a B/E
// pair ending now; timestamps are microseconds since the driver started.
func (d *Driver) ActiveTraces() []byte {
	now := d.clock.Now()
	pid := os.Getpid()
	micros := func(t time.Time) int64 {
		return t.Sub(d.epoch).Microseconds()
	}

	var roots []liveRoot
	if d.live != nil {
		roots = d.live.snapshot()
	}

	events := make([]traceEvent, 0, 2*len(roots)+1)
	for i, r := range roots {
		id := r.traceID.String()
		events = append(events,
			traceEvent{Name: r.name, Cat: "trace", Phase: "B", TS: micros(r.start), PID: pid, TID: i + 1, ID: id},
			traceEvent{Name: r.name, Cat: "trace", Phase: "E", TS: micros(now), PID: pid, TID: i + 1, ID: id},
		)
	}
	events = append(events, traceEvent{
		Name:  "Trace dump requested",
		Phase: "i",
		TS:    micros(now),
		PID:   pid,
		Scope: "g",
	})

	out, err := json.Marshal(traceDump{TraceEvents: events, DisplayTimeUnit: "ms"})
	if err != nil {
		// Every field is a string or an integer.
		panic(err)
	}
	return out
}
