package span

import "maps"

// SpanContext is the immutable identity of a span. Copies share the baggage
// map, which is never written after construction; WithBaggageItem returns a
// new context with its own map.
type SpanContext struct {
	TraceID      TraceID
	SpanID       SpanID
	ParentSpanID SpanID
	Sampled      bool

	baggage map[string]string
}

// NewSpanContext creates a context with no baggage.
func NewSpanContext(traceID TraceID, spanID, parentID SpanID, sampled bool) SpanContext {
	return SpanContext{
		TraceID:      traceID,
		SpanID:       spanID,
		ParentSpanID: parentID,
		Sampled:      sampled,
	}
}

// IsValid reports whether both identifiers are set.
func (c SpanContext) IsValid() bool {
	return c.TraceID.IsValid() && c.SpanID.IsValid()
}

// IsRoot reports whether the span has no parent in its trace.
func (c SpanContext) IsRoot() bool {
	return !c.ParentSpanID.IsValid()
}

// BaggageItem returns the baggage value for key.
func (c SpanContext) BaggageItem(key string) (string, bool) {
	v, ok := c.baggage[key]
	return v, ok
}

// Baggage returns a copy of all baggage items.
func (c SpanContext) Baggage() map[string]string {
	return maps.Clone(c.baggage)
}

// BaggageLen returns the number of baggage items.
func (c SpanContext) BaggageLen() int {
	return len(c.baggage)
}

// WithBaggageItem returns a copy of c carrying key=value.
func (c SpanContext) WithBaggageItem(key, value string) SpanContext {
	next := make(map[string]string, len(c.baggage)+1)
	maps.Copy(next, c.baggage)
	next[key] = value
	c.baggage = next
	return c
}

// WithBaggage returns a copy of c whose baggage is replaced by items.
func (c SpanContext) WithBaggage(items map[string]string) SpanContext {
	c.baggage = maps.Clone(items)
	return c
}

// Child derives the context of a child span: same trace, same sampling
// decision, same baggage.
func (c SpanContext) Child(spanID SpanID) SpanContext {
	return SpanContext{
		TraceID:      c.TraceID,
		SpanID:       spanID,
		ParentSpanID: c.SpanID,
		Sampled:      c.Sampled,
		baggage:      c.baggage,
	}
}
