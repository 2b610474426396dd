package exporter

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQueueFull is returned when the queue has no room; the new span is
	// rejected and counted.
	ErrQueueFull = errors.New("tracing queue is full")
	// ErrQueueClosed is returned for pushes after shutdown began.
	ErrQueueClosed = errors.New("tracing queue is closed")
	// ErrReporterStarted is returned when Start is called twice.
	ErrReporterStarted = errors.New("reporter already started")
)

// Drop reasons used as the reason label of tracing_spans_dropped_total.
const (
	DropQueueFull       = "queue_full"
	DropTransportError  = "transport_error"
	DropShutdownTimeout = "shutdown_timeout"
	DropShutdown        = "shutdown"
	DropTooLarge        = "too_large"
	DropRejected        = "rejected"
)

// TransportError wraps a failure of the underlying socket or channel.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tracing transport error in %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DroppedSpansError reports spans an exporter dropped on its own, for example
// because they could not be encoded. The rest of the batch was sent.
type DroppedSpansError struct {
	Reason string
	Count  int
	Err    error
}

func (e *DroppedSpansError) Error() string {
	return fmt.Sprintf("dropped %d span(s) (%s): %v", e.Count, e.Reason, e.Err)
}

func (e *DroppedSpansError) Unwrap() error {
	return e.Err
}

// ShutdownTimeoutError is returned when the queue could not be drained before
// the shutdown deadline.
type ShutdownTimeoutError struct {
	Timeout   time.Duration
	Remaining int
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("tracing shutdown timed out after %s with %d span(s) not sent", e.Timeout, e.Remaining)
}
