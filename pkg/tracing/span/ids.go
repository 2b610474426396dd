// Package span holds the immutable data model shared by the tracing runtime
// and its exporters: identifiers, span contexts and finished spans.
package span

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// TraceID identifies a trace. It is the 16-byte OpenTelemetry identifier.
type TraceID = trace.TraceID

// SpanID identifies a span within a trace.
type SpanID = trace.SpanID

// TraceIDHigh returns the upper 64 bits of id, big-endian.
func TraceIDHigh(id TraceID) uint64 {
	return binary.BigEndian.Uint64(id[:8])
}

// TraceIDLow returns the lower 64 bits of id, big-endian.
func TraceIDLow(id TraceID) uint64 {
	return binary.BigEndian.Uint64(id[8:])
}

// TraceIDFromHalves rebuilds a TraceID from its big-endian halves.
func TraceIDFromHalves(high, low uint64) TraceID {
	var id TraceID
	binary.BigEndian.PutUint64(id[:8], high)
	binary.BigEndian.PutUint64(id[8:], low)
	return id
}

// SpanIDUint64 returns id as a big-endian integer.
func SpanIDUint64(id SpanID) uint64 {
	return binary.BigEndian.Uint64(id[:])
}

// SpanIDFromUint64 converts a big-endian integer into a SpanID.
func SpanIDFromUint64(v uint64) SpanID {
	var id SpanID
	binary.BigEndian.PutUint64(id[:], v)
	return id
}

// IDGenerator produces random trace and span identifiers. Each goroutine
// borrows its own ChaCha8 source, seeded from crypto/rand, from a pool, so
// concurrent callers rarely share state. It never fails and never returns an
// all-zero identifier. Collisions are not checked.
type IDGenerator struct {
	pool sync.Pool
}

// NewIDGenerator creates a generator.
func NewIDGenerator() *IDGenerator {
	g := &IDGenerator{}
	g.pool.New = func() any {
		var seed [32]byte
		if _, err := crand.Read(seed[:]); err != nil {
			// crypto/rand does not fail on supported platforms; fall back to
			// the runtime-seeded global source if it ever does.
			binary.LittleEndian.PutUint64(seed[:8], rand.Uint64())
			binary.LittleEndian.PutUint64(seed[8:16], rand.Uint64())
			binary.LittleEndian.PutUint64(seed[16:24], rand.Uint64())
			binary.LittleEndian.PutUint64(seed[24:], rand.Uint64())
		}
		return rand.NewChaCha8(seed)
	}
	return g
}

// NewTraceID returns a random, valid TraceID.
func (g *IDGenerator) NewTraceID() TraceID {
	src := g.pool.Get().(*rand.ChaCha8)
	defer g.pool.Put(src)

	var id TraceID
	for !id.IsValid() {
		binary.BigEndian.PutUint64(id[:8], src.Uint64())
		binary.BigEndian.PutUint64(id[8:], src.Uint64())
	}
	return id
}

// NewSpanID returns a random, valid SpanID.
func (g *IDGenerator) NewSpanID() SpanID {
	src := g.pool.Get().(*rand.ChaCha8)
	defer g.pool.Put(src)

	var id SpanID
	for !id.IsValid() {
		binary.BigEndian.PutUint64(id[:], src.Uint64())
	}
	return id
}
