package exporter

import (
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/internal/promutil"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the reporter's collectors.
type Metrics struct {
	enqueued prometheus.Counter
	sent     prometheus.Counter
	dropped  *prometheus.CounterVec
	batches  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates the reporter collectors and registers them on reg, which
// may be nil. queueLen backs the tracing_queue_length gauge.
func NewMetrics(reg prometheus.Registerer, queueLen func() float64) *Metrics {
	reg = promutil.Wrap(reg)

	m := &Metrics{
		enqueued: promutil.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracing_spans_enqueued_total",
			Help: "Finished sampled spans accepted by the export queue.",
		})),
		sent: promutil.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracing_spans_sent_total",
			Help: "Spans handed successfully to the transport.",
		})),
		dropped: promutil.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracing_spans_dropped_total",
			Help: "Spans dropped before reaching the backend, by reason.",
		}, []string{"reason"})),
		batches: promutil.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracing_export_batches_total",
			Help: "Export calls by result.",
		}, []string{"result"})),
		duration: promutil.Register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracing_export_duration_seconds",
			Help:    "Duration of export calls.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		})),
	}

	if queueLen != nil {
		promutil.Register(reg, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tracing_queue_length",
			Help: "Spans waiting in the export queue.",
		}, queueLen))
	}

	for _, reason := range []string{DropQueueFull, DropTransportError, DropShutdownTimeout, DropShutdown, DropTooLarge, DropRejected} {
		m.dropped.WithLabelValues(reason)
	}

	return m
}

// Dropped returns the counter for reason.
func (m *Metrics) Dropped(reason string) prometheus.Counter {
	return m.dropped.WithLabelValues(reason)
}

// Sent returns the sent-spans counter.
func (m *Metrics) Sent() prometheus.Counter {
	return m.sent
}

// Enqueued returns the enqueued-spans counter.
func (m *Metrics) Enqueued() prometheus.Counter {
	return m.enqueued
}

func (m *Metrics) drop(reason string, n int) {
	if n > 0 {
		m.dropped.WithLabelValues(reason).Add(float64(n))
	}
}
