// Package tracing records the operations of a service as spans and ships the
// sampled ones to Jaeger or an OTLP collector in the background.
//
// The active span travels in a context.Context. A Scope finishes it:
//
//	ctx, scope := tracing.StartTrace(ctx, "checkout")
//	defer scope.End()
//	tracing.AddTag(ctx, "order_id", id)
//
// Nothing crosses goroutines implicitly; pass ctx, or use ContextWithSpan to
// re-enter a captured span elsewhere.
package tracing

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/observability/noop"
	"github.com/JailtonJunior94/tracekit-go/pkg/ratelimit"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/exporter"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/exporter/jaeger"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/exporter/otlp"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/sampling"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
	"github.com/prometheus/client_golang/prometheus"
)

// Driver owns the sampler, the ID generator and the export pipeline of a
// process. Its methods are safe for concurrent use.
type Driver struct {
	config     Config
	logger     observability.Logger
	registerer prometheus.Registerer
	clock      ratelimit.Clock
	exporter   exporter.Exporter

	ids      *span.IDGenerator
	sampler  *sampling.Sampler
	reporter *exporter.Reporter
	sink     exporter.Sink
	live     *liveTraces
	epoch    time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger of the driver and its reporter.
func WithLogger(logger observability.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithRegisterer registers the tracing metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(d *Driver) {
		d.registerer = reg
	}
}

// WithServiceInfo overrides the configured service name and version.
func WithServiceInfo(name, version string) Option {
	return func(d *Driver) {
		if name != "" {
			d.config.ServiceName = name
		}
		if version != "" {
			d.config.ServiceVersion = version
		}
	}
}

// WithClock sets the clock used for span timestamps and the rate limiters.
func WithClock(clock ratelimit.Clock) Option {
	return func(d *Driver) {
		d.clock = clock
	}
}

// WithExporter replaces the transport selected by Output.Kind.
func WithExporter(exp exporter.Exporter) Option {
	return func(d *Driver) {
		d.exporter = exp
	}
}

func withSink(sink exporter.Sink) Option {
	return func(d *Driver) {
		d.sink = sink
	}
}

// New builds a driver from cfg and starts its reporter. A disabled
// configuration yields a driver that never samples and runs no goroutine.
func New(cfg Config, opts ...Option) (*Driver, error) {
	d := &Driver{
		config: cfg,
		logger: noop.Logger{},
		clock:  ratelimit.SystemClock(),
		ids:    span.NewIDGenerator(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.epoch = d.clock.Now()

	if !d.config.Enabled {
		d.sampler = disabledSampler()
		return d, nil
	}

	if err := d.config.Validate(); err != nil {
		return nil, err
	}

	sampler, err := sampling.New(d.config.Sampling.StrategyValue(),
		sampling.WithClock(d.clock),
		sampling.WithRegisterer(d.registerer),
	)
	if err != nil {
		return nil, configError("sampling", "cannot build sampler", err)
	}
	d.sampler = sampler

	if d.config.LiveTracking {
		d.live = newLiveTraces()
	}

	if d.sink != nil {
		return d, nil
	}

	exp := d.exporter
	if exp == nil {
		exp, err = newExporter(d.config)
		if err != nil {
			return nil, err
		}
	}

	reporter, err := exporter.NewReporter(exp, d.config.Reporter,
		exporter.WithLogger(d.logger),
		exporter.WithRegisterer(d.registerer),
		exporter.WithClock(d.clock),
	)
	if err != nil {
		_ = exp.Shutdown(context.Background())
		return nil, configError("reporter", "cannot build reporter", err)
	}
	if err := reporter.Start(); err != nil {
		return nil, err
	}

	d.reporter = reporter
	d.sink = reporter
	d.exporter = exp

	d.logger.Info(context.Background(), "tracing started",
		observability.String("service", d.config.ServiceName),
		observability.String("output", string(d.config.Output.Kind)),
		observability.String("sampling", d.sampler.Strategy().String()),
	)
	return d, nil
}

func newExporter(cfg Config) (exporter.Exporter, error) {
	hostname, _ := os.Hostname()

	switch cfg.Output.Kind {
	case OutputOTLPGRPC:
		res := otlp.Resource{ServiceName: cfg.ServiceName, ServiceVersion: cfg.ServiceVersion}
		if hostname != "" {
			res.Attributes = append(res.Attributes, observability.String("host.name", hostname))
		}
		exp, err := otlp.NewGRPCExporter(cfg.Output.OTLP, res)
		if err != nil {
			return nil, configError("output.otlp.endpoint", "cannot create collector client", err)
		}
		return exp, nil

	default:
		process := jaeger.Process{ServiceName: cfg.ServiceName}
		if hostname != "" {
			process.Tags = append(process.Tags, observability.String("hostname", hostname))
		}
		if cfg.ServiceVersion != "" {
			process.Tags = append(process.Tags, observability.String("app.version", cfg.ServiceVersion))
		}
		keys := make([]string, 0, len(cfg.Output.Jaeger.ProcessTags))
		for k := range cfg.Output.Jaeger.ProcessTags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			process.Tags = append(process.Tags, observability.String(k, cfg.Output.Jaeger.ProcessTags[k]))
		}

		encoder := jaeger.NewEncoder(process, cfg.Output.Jaeger.MaxPacketSize)
		exp, err := jaeger.NewUDPExporter(cfg.Output.Jaeger.ServerAddr, cfg.Output.Jaeger.ReporterBindAddr, encoder)
		if err != nil {
			var transport *exporter.TransportError
			if errors.As(err, &transport) {
				return nil, err
			}
			return nil, configError("output.jaeger.server_addr", "cannot resolve agent address", err)
		}
		return exp, nil
	}
}

func disabledSampler() *sampling.Sampler {
	s, err := sampling.New(sampling.Disabled())
	if err != nil {
		panic(err) // the disabled strategy always validates
	}
	return s
}

// Config returns the configuration the driver runs with.
func (d *Driver) Config() Config {
	return d.config
}

// Enabled reports whether the driver can sample anything.
func (d *Driver) Enabled() bool {
	return d.config.Enabled
}

// Metrics returns the reporter metrics, or nil when the driver has no
// reporter.
func (d *Driver) Metrics() *exporter.Metrics {
	if d.reporter == nil {
		return nil
	}
	return d.reporter.Metrics()
}

// Check reports ErrQueueSaturated while the span queue is full, so a health
// endpoint can surface a collector that stopped keeping up.
func (d *Driver) Check(context.Context) error {
	if d.reporter == nil {
		return nil
	}
	if d.reporter.Len() >= d.config.Reporter.QueueSize {
		return ErrQueueSaturated
	}
	return nil
}

// Shutdown drains the queue within ctx's deadline and closes the exporter.
// It returns *exporter.ShutdownTimeoutError when the deadline expires first.
func (d *Driver) Shutdown(ctx context.Context) error {
	if d.reporter == nil {
		return nil
	}
	return d.reporter.Shutdown(ctx)
}

var (
	global   atomic.Pointer[Driver]
	disabled = &Driver{
		logger:  noop.Logger{},
		clock:   ratelimit.SystemClock(),
		ids:     span.NewIDGenerator(),
		sampler: disabledSampler(),
	}
)

// Init builds the process-wide driver. Only the first call installs one; a
// later call returns ErrAlreadyInitialized together with the installed
// driver.
func Init(cfg Config, opts ...Option) (*Driver, error) {
	if d := global.Load(); d != nil {
		return d, ErrAlreadyInitialized
	}

	d, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	if !global.CompareAndSwap(nil, d) {
		_ = d.Shutdown(context.Background())
		return global.Load(), ErrAlreadyInitialized
	}
	return d, nil
}

// Global returns the driver installed by Init, or a disabled driver before
// Init.
func Global() *Driver {
	if d := global.Load(); d != nil {
		return d
	}
	return disabled
}
