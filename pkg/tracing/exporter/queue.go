package exporter

import (
	"sync"

	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
)

// Queue is a bounded multi-producer, single-consumer FIFO of finished spans.
// Push never blocks: when the queue is full the new span is rejected, the
// queued ones are kept.
type Queue struct {
	ch chan span.FinishedSpan

	// mu makes Close wait for pushes already past the closed check.
	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue holding at most capacity spans.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan span.FinishedSpan, capacity)}
}

// Push offers s to the queue.
func (q *Queue) Push(s span.FinishedSpan) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- s:
		return nil
	default:
		return ErrQueueFull
	}
}

// TryPop removes the oldest span, if any.
func (q *Queue) TryPop() (span.FinishedSpan, bool) {
	select {
	case s := <-q.ch:
		return s, true
	default:
		return span.FinishedSpan{}, false
	}
}

// Close rejects every later Push. Queued spans stay available to TryPop.
// Once Close returns, no concurrent Push can still add a span.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Closed reports whether Close was called.
func (q *Queue) Closed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) Cap() int {
	return cap(q.ch)
}

func (q *Queue) receive() <-chan span.FinishedSpan {
	return q.ch
}
