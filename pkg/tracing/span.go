package tracing

import (
	"sync"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
)

// Span is an active span. It is created by StartTrace, StartSpan or
// ForkTrace and finished by the Scope returned with it. Mutations of an
// unsampled or finished span are ignored.
//
// A Span may be reached from several goroutines through a shared context, so
// every method takes the span's lock.
type Span struct {
	driver *Driver

	mu       sync.Mutex
	context  span.SpanContext
	name     string
	kind     observability.SpanKind
	start    time.Time
	finish   time.Time
	tags     []observability.Field
	logs     []span.LogRecord
	refs     []span.Reference
	tracked  bool
	finished bool
}

// Context returns the span identity.
func (s *Span) Context() span.SpanContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// Name returns the operation name.
func (s *Span) Name() string {
	return s.name
}

// IsSampled reports whether the span will be exported.
func (s *Span) IsSampled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context.Sampled
}

// SetTag sets a tag. An existing tag with the same key is overwritten in
// place.
func (s *Span) SetTag(key string, value any) {
	s.SetTags(observability.Any(key, value))
}

// SetTags sets several tags.
func (s *Span) SetTags(fields ...observability.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording() {
		return
	}
	s.setTagsLocked(fields)
}

// Log appends a timestamped log record with a message field.
func (s *Span) Log(message string, fields ...observability.Field) {
	s.logFields(append([]observability.Field{observability.String("message", message)}, fields...))
}

// SetBaggageItem adds a baggage item. Spans started from this one afterwards
// carry it; the item travels with Inject.
func (s *Span) SetBaggageItem(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return
	}
	s.context = s.context.WithBaggageItem(key, value)
}

// SetStartTime overrides the start time recorded at creation.
func (s *Span) SetStartTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finished {
		s.start = t
	}
}

// SetFinishTime fixes the end time instead of taking it when the scope ends.
func (s *Span) SetFinishTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finished {
		s.finish = t
	}
}

func (s *Span) recording() bool {
	return s.context.Sampled && !s.finished
}

func (s *Span) setTagsLocked(fields []observability.Field) {
next:
	for _, f := range fields {
		for i := range s.tags {
			if s.tags[i].Key == f.Key {
				s.tags[i] = f
				continue next
			}
		}
		s.tags = append(s.tags, f)
	}
}

func (s *Span) logFields(fields []observability.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording() {
		return
	}
	s.logs = append(s.logs, span.LogRecord{Time: s.driver.clock.Now(), Fields: fields})
}

// end finishes the span and hands it to the driver's sink when sampled.
// Calls after the first do nothing.
func (s *Span) end() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true

	if s.tracked {
		defer s.driver.live.remove(s)
	}

	if !s.context.Sampled {
		s.mu.Unlock()
		return
	}

	end := s.finish
	if end.IsZero() {
		end = s.driver.clock.Now()
	}
	duration := end.Sub(s.start)
	if duration < 0 {
		duration = 0
	}

	finished := span.FinishedSpan{
		Context:       s.context,
		OperationName: s.name,
		Kind:          s.kind,
		StartTime:     s.start,
		Duration:      duration,
		Tags:          s.tags,
		Logs:          s.logs,
		References:    s.refs,
	}
	s.tags, s.logs = nil, nil
	s.mu.Unlock()

	if s.driver.sink != nil {
		s.driver.sink.Push(finished)
	}
}

// Scope finishes its span. Use it with defer right after starting a span:
//
//	ctx, scope := tracing.StartSpan(ctx, "load")
//	defer scope.End()
type Scope struct {
	span *Span
}

// Span returns the span the scope finishes.
func (sc *Scope) Span() *Span {
	return sc.span
}

// End finishes the span. It is safe to call more than once.
func (sc *Scope) End() {
	if sc == nil || sc.span == nil {
		return
	}
	sc.span.end()
}
