// Package ratelimit provides the token bucket used to cap how many traces are
// originated per second, and to throttle other bursty events.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// MaxBurst bounds the bucket capacity.
const MaxBurst = 1 << 20

var (
	// ErrInvalidRate is returned when the refill rate is zero.
	ErrInvalidRate = errors.New("ratelimit: events per second must be positive")

	// ErrInvalidBurst is returned when the burst is outside [1, MaxBurst].
	ErrInvalidBurst = errors.New("ratelimit: burst out of range")
)

// Limiter is a token bucket refilled continuously at a fixed rate.
//
// Tokens are tracked as nanoseconds of credit: one token is worth one emission
// interval, ceil(1s/rate). Keeping the state in integers means the bucket never
// holds a fraction more than its capacity, so with the default burst of 1 no
// half-open one-second window ever sees more than rate admissions. A burst of
// b relaxes that bound to rate+b-1.
//
// Limiter is safe for concurrent use and never blocks beyond its own short
// critical section.
type Limiter struct {
	mu       sync.Mutex
	clock    Clock
	rate     uint32
	interval int64 // ns of credit per token
	capacity int64 // tokens
	credit   int64 // ns, in [0, capacity*interval]
	last     time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithBurst sets the bucket capacity in tokens.
func WithBurst(burst int) Option {
	return func(l *Limiter) {
		l.capacity = int64(burst)
	}
}

// WithClock injects the time source.
func WithClock(clock Clock) Option {
	return func(l *Limiter) {
		l.clock = clock
	}
}

// New creates a limiter admitting eventsPerSecond on average. The bucket
// starts full.
func New(eventsPerSecond uint32, opts ...Option) (*Limiter, error) {
	if eventsPerSecond == 0 {
		return nil, ErrInvalidRate
	}

	l := &Limiter{
		clock:    SystemClock(),
		rate:     eventsPerSecond,
		interval: ceilDiv(int64(time.Second), int64(eventsPerSecond)),
		capacity: 1,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.capacity < 1 || l.capacity > MaxBurst {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBurst, l.capacity)
	}

	l.credit = l.maxCredit()
	l.last = l.clock.Now()
	return l, nil
}

// TryAdmit consumes n tokens if they are all available and reports whether it
// did. A request larger than the capacity always fails.
func (l *Limiter) TryAdmit(n int) bool {
	if n <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()

	need := int64(n) * l.interval
	if int64(n) > l.capacity || l.credit < need {
		return false
	}
	l.credit -= need
	return true
}

// Allow is TryAdmit(1).
func (l *Limiter) Allow() bool {
	return l.TryAdmit(1)
}

// Available returns the number of whole tokens currently in the bucket.
func (l *Limiter) Available() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()
	return l.credit / l.interval
}

// Capacity returns the bucket size in tokens.
func (l *Limiter) Capacity() int64 {
	return l.capacity
}

// Rate returns the configured events per second.
func (l *Limiter) Rate() uint32 {
	return l.rate
}

// Reset refills the bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit = l.maxCredit()
	l.last = l.clock.Now()
}

// refillLocked adds the credit earned since the last call. Caller must hold mu.
func (l *Limiter) refillLocked() {
	now := l.clock.Now()
	elapsed := int64(now.Sub(l.last))
	if elapsed <= 0 {
		// Clock did not move, or moved backwards.
		return
	}
	l.last = now

	limit := l.maxCredit()
	if elapsed >= limit-l.credit {
		l.credit = limit
		return
	}
	l.credit += elapsed
}

func (l *Limiter) maxCredit() int64 {
	return l.capacity * l.interval
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
