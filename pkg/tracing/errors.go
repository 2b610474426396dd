package tracing

import (
	"errors"
	"fmt"
)

// ErrAlreadyInitialized is returned by a second Init. The driver installed by
// the first call is returned alongside it.
var ErrAlreadyInitialized = errors.New("tracing already initialized")

// ErrQueueSaturated is reported by Driver.Check while the span queue is full.
var ErrQueueSaturated = errors.New("tracing span queue is saturated")

// ConfigurationError reports an invalid setting. Startup fails with it.
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tracing configuration error in %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("tracing configuration error in %s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(field, message string, err error) error {
	return &ConfigurationError{Field: field, Message: message, Err: err}
}
