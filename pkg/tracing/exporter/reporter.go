package exporter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/observability/noop"
	"github.com/JailtonJunior94/tracekit-go/pkg/ratelimit"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the logger used for transport and shutdown messages.
func WithLogger(logger observability.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// WithRegisterer registers the reporter metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Reporter) {
		r.registerer = reg
	}
}

// WithClock sets the clock of the queue-full warning limiter.
func WithClock(clock ratelimit.Clock) Option {
	return func(r *Reporter) {
		r.clock = clock
	}
}

// Reporter is the background worker that drains the queue, batches spans
// within a time-or-size window and hands them to the Exporter.
//
// Transport failures are logged, the batch is dropped and the worker pauses
// before its next send; nothing is retried. Shutdown is cooperative: the
// worker notices it at the next batch boundary and drains what is queued
// within the caller's deadline.
type Reporter struct {
	exporter   Exporter
	config     Config
	queue      *Queue
	logger     observability.Logger
	registerer prometheus.Registerer
	clock      ratelimit.Clock
	metrics    *Metrics

	cooldown   *backoff.ExponentialBackOff
	errorLog   *rate.Sometimes
	fullWarn   *ratelimit.Limiter
	started    atomic.Bool
	stop       chan struct{}
	done       chan struct{}
	drainCtx   context.Context
	shutdownMu sync.Mutex
	shutdown   sync.Once
	stopped    error
}

// NewReporter creates a reporter for exp. Call Start to launch the worker.
func NewReporter(exp Exporter, cfg Config, opts ...Option) (*Reporter, error) {
	if exp == nil {
		return nil, errors.New("exporter is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Reporter{
		exporter: exp,
		config:   cfg,
		queue:    NewQueue(cfg.QueueSize),
		logger:   noop.Logger{},
		clock:    ratelimit.SystemClock(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		errorLog: &rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.metrics = NewMetrics(r.registerer, func() float64 { return float64(r.queue.Len()) })

	fullWarn, err := ratelimit.New(1, ratelimit.WithClock(r.clock))
	if err != nil {
		return nil, err
	}
	r.fullWarn = fullWarn

	r.cooldown = backoff.NewExponentialBackOff()
	r.cooldown.InitialInterval = cfg.Cooldown
	r.cooldown.MaxInterval = cfg.MaxCooldown
	r.cooldown.RandomizationFactor = 0
	r.cooldown.MaxElapsedTime = 0
	r.cooldown.Reset()

	return r, nil
}

// Start launches the worker goroutine.
func (r *Reporter) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrReporterStarted
	}

	go r.run()
	return nil
}

// Push offers a finished span for export without blocking. It returns false
// when the span was dropped because the queue is full or shut down.
func (r *Reporter) Push(s span.FinishedSpan) bool {
	err := r.queue.Push(s)
	if err == nil {
		r.metrics.enqueued.Inc()
		return true
	}

	if errors.Is(err, ErrQueueFull) {
		r.metrics.drop(DropQueueFull, 1)
		if r.fullWarn.Allow() {
			r.logger.Warn(context.Background(), "tracing queue is full, dropping spans",
				observability.Int("capacity", r.queue.Cap()),
			)
		}
		return false
	}

	r.metrics.drop(DropShutdown, 1)
	return false
}

// Len returns the number of queued spans.
func (r *Reporter) Len() int {
	return r.queue.Len()
}

// Metrics exposes the reporter collectors.
func (r *Reporter) Metrics() *Metrics {
	return r.metrics
}

// Shutdown stops accepting spans, drains the queue within ctx's deadline and
// shuts the exporter down. It never blocks past the deadline. Later calls
// return the result of the first one.
func (r *Reporter) Shutdown(ctx context.Context) error {
	r.shutdown.Do(func() {
		begin := time.Now()

		r.shutdownMu.Lock()
		defer r.shutdownMu.Unlock()

		r.queue.Close()

		if !r.started.Load() {
			n := r.discardQueued()
			r.metrics.drop(DropShutdown, n)
			r.stopped = r.exporter.Shutdown(ctx)
			return
		}

		r.drainCtx = ctx
		close(r.stop)

		select {
		case <-r.done:
		case <-ctx.Done():
			remaining := r.queue.Len()
			r.logger.Warn(ctx, "tracing shutdown deadline reached before the queue was drained",
				observability.Int("remaining", remaining),
			)
			r.stopped = &ShutdownTimeoutError{Timeout: time.Since(begin), Remaining: remaining}
			return
		}

		if err := r.exporter.Shutdown(ctx); err != nil {
			r.stopped = err
		}
	})

	r.shutdownMu.Lock()
	defer r.shutdownMu.Unlock()
	return r.stopped
}

func (r *Reporter) run() {
	defer close(r.done)

	batch := make([]span.FinishedSpan, 0, r.config.MaxBatchSize)
	timer := time.NewTimer(r.config.BatchTimeout)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-r.stop:
			r.drain(batch)
			return
		default:
		}

		select {
		case <-r.stop:
			r.drain(batch)
			return

		case s := <-r.queue.receive():
			batch = append(batch, s)
			if len(batch) == 1 {
				timer.Reset(r.config.BatchTimeout)
			}
			if len(batch) < r.config.MaxBatchSize {
				continue
			}
			timer.Stop()
			pause := r.send(batch)
			batch = batch[:0]
			if !r.wait(pause) {
				r.drain(batch)
				return
			}

		case <-timer.C:
			if len(batch) == 0 {
				continue
			}
			pause := r.send(batch)
			batch = batch[:0]
			if !r.wait(pause) {
				r.drain(batch)
				return
			}
		}
	}
}

// wait pauses after a failed send. It returns false when shutdown was
// requested meanwhile.
func (r *Reporter) wait(pause time.Duration) bool {
	if pause <= 0 {
		return true
	}

	t := time.NewTimer(pause)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-r.stop:
		return false
	}
}

// drain sends what is batched and queued until the queue is empty or the
// shutdown deadline passes. A send in flight is never aborted.
func (r *Reporter) drain(batch []span.FinishedSpan) {
	for {
		for len(batch) < r.config.MaxBatchSize {
			s, ok := r.queue.TryPop()
			if !ok {
				break
			}
			batch = append(batch, s)
		}

		if len(batch) == 0 {
			return
		}

		if r.drainCtx.Err() != nil {
			r.metrics.drop(DropShutdownTimeout, len(batch)+r.discardQueued())
			return
		}

		r.send(batch)
		batch = batch[:0]
	}
}

// send exports one batch and returns how long to pause before the next one.
func (r *Reporter) send(batch []span.FinishedSpan) time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.SendTimeout)
	defer cancel()

	started := time.Now()
	err := r.exporter.Export(ctx, batch)
	r.metrics.duration.Observe(time.Since(started).Seconds())

	var dropped *DroppedSpansError
	switch {
	case err == nil:
		r.metrics.batches.WithLabelValues("success").Inc()
		r.metrics.sent.Add(float64(len(batch)))
		r.cooldown.Reset()
		return 0

	case errors.As(err, &dropped):
		// Counters cannot decrease, so the reported count is bounded by the batch.
		n := min(max(dropped.Count, 0), len(batch))
		r.metrics.batches.WithLabelValues("partial").Inc()
		r.metrics.sent.Add(float64(len(batch) - n))
		r.metrics.drop(dropped.Reason, n)
		r.logger.Warn(ctx, "tracing spans dropped by the exporter",
			observability.String("reason", dropped.Reason),
			observability.Int("count", n),
			observability.Error(dropped.Err),
		)
		r.cooldown.Reset()
		return 0

	default:
		r.metrics.batches.WithLabelValues("error").Inc()
		r.metrics.drop(DropTransportError, len(batch))
		pause := r.cooldown.NextBackOff()
		r.errorLog.Do(func() {
			r.logger.Error(ctx, "failed to send a tracing span to the agent",
				observability.Error(err),
				observability.Int("spans", len(batch)),
				observability.Duration("cooldown", pause),
			)
		})
		return pause
	}
}

func (r *Reporter) discardQueued() int {
	n := 0
	for {
		if _, ok := r.queue.TryPop(); !ok {
			return n
		}
		n++
	}
}
