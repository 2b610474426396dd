package span

import (
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
)

// RefType is the kind of a causal reference between spans.
type RefType int

const (
	// ChildOf marks a parent the span depends on.
	ChildOf RefType = iota
	// FollowsFrom marks a span that was caused by, but does not block, another.
	FollowsFrom
)

func (t RefType) String() string {
	if t == FollowsFrom {
		return "follows_from"
	}
	return "child_of"
}

// Reference points at another span, possibly in another trace.
type Reference struct {
	Type    RefType
	TraceID TraceID
	SpanID  SpanID
}

// LogRecord is a timestamped set of fields attached to a span.
type LogRecord struct {
	Time   time.Time
	Fields []observability.Field
}

// FinishedSpan is a completed span queued for export. It is never mutated
// after creation; the slices it holds are owned by the record.
type FinishedSpan struct {
	Context       SpanContext
	OperationName string
	Kind          observability.SpanKind
	StartTime     time.Time
	Duration      time.Duration
	Tags          []observability.Field
	Logs          []LogRecord
	References    []Reference
}

// EndTime returns the finish instant.
func (s FinishedSpan) EndTime() time.Time {
	return s.StartTime.Add(s.Duration)
}

// Tag returns the value of the tag named key.
func (s FinishedSpan) Tag(key string) (any, bool) {
	for _, t := range s.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return nil, false
}

// HasTag reports whether a tag named key exists.
func (s FinishedSpan) HasTag(key string) bool {
	_, ok := s.Tag(key)
	return ok
}
