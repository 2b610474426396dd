// Package observability defines the small set of contracts the tracing runtime
// and its collaborators share: structured fields, a context-aware logger and a
// tracer facade that hides the concrete span implementation.
package observability

import (
	"fmt"
	"time"
)

// Observability groups the facades injected into application layers.
type Observability interface {
	Tracer() Tracer
	Logger() Logger
}

// Field is a key-value pair used both as a log attribute and as a span tag.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field. The value is widened to int64 so encoders only
// deal with one integer kind.
func Int(key string, value int) Field {
	return Field{Key: key, Value: int64(value)}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a field holding a duration.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Error creates an "error" field. A nil error yields an empty string value.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value type.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// StringValue renders the field value as text, the way backends without typed
// attributes expect it.
func (f Field) StringValue() string {
	switch v := f.Value.(type) {
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Normalize maps a field onto one of the canonical tag kinds: string, int64,
// float64, bool or []byte.
func (f Field) Normalize() Field {
	switch v := f.Value.(type) {
	case string, int64, float64, bool, []byte:
		return f
	case int:
		return Field{Key: f.Key, Value: int64(v)}
	case int8:
		return Field{Key: f.Key, Value: int64(v)}
	case int16:
		return Field{Key: f.Key, Value: int64(v)}
	case int32:
		return Field{Key: f.Key, Value: int64(v)}
	case uint8:
		return Field{Key: f.Key, Value: int64(v)}
	case uint16:
		return Field{Key: f.Key, Value: int64(v)}
	case uint32:
		return Field{Key: f.Key, Value: int64(v)}
	case float32:
		return Field{Key: f.Key, Value: float64(v)}
	case time.Duration:
		return Field{Key: f.Key, Value: v.String()}
	default:
		return Field{Key: f.Key, Value: f.StringValue()}
	}
}
