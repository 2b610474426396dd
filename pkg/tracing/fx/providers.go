package tracingfx

import (
	"context"
	"errors"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/observability/noop"
	"github.com/JailtonJunior94/tracekit-go/pkg/observability/zaplog"
	"github.com/JailtonJunior94/tracekit-go/pkg/telemetryserver"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

// HealthCheck is a named check reported by the telemetry server's /health.
// Provide it into the "health_checks" group:
//
//	fx.Provide(fx.Annotate(
//	    func(db *sql.DB) tracingfx.HealthCheck { ... },
//	    fx.ResultTags(`group:"health_checks"`),
//	))
type HealthCheck struct {
	Name  string
	Check telemetryserver.HealthCheckFunc
}

// LoggerResult contains the logger output.
type LoggerResult struct {
	fx.Out

	Logger observability.Logger
	Zap    *zaplog.Logger
}

// ProvideLogger creates a zap logger that stamps entries with the trace and
// span of their context.
func ProvideLogger(cfg tracing.Config, lc fx.Lifecycle) (LoggerResult, error) {
	logger, err := zaplog.New(
		zaplog.DefaultConfig(cfg.ServiceName),
		zaplog.WithContextFields(tracing.LogFields),
	)
	if err != nil {
		return LoggerResult{}, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// Sync on a terminal stderr returns EINVAL.
			_ = logger.Sync()
			return nil
		},
	})

	return LoggerResult{Logger: logger, Zap: logger}, nil
}

// RegistryResult exposes one registry under the three types consumers ask for.
type RegistryResult struct {
	fx.Out

	Registry   *prometheus.Registry
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// ProvideRegistry creates the registry the tracing collectors and the
// process collectors are registered on.
func ProvideRegistry() RegistryResult {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return RegistryResult{Registry: reg, Registerer: reg, Gatherer: reg}
}

// DriverParams contains dependencies for creating the driver.
type DriverParams struct {
	fx.In

	Config     tracing.Config
	LC         fx.Lifecycle
	Logger     observability.Logger
	Registerer prometheus.Registerer
	Options    []tracing.Option `group:"tracing_options"`
}

// DriverResult contains the driver and the facades derived from it.
type DriverResult struct {
	fx.Out

	Driver        *tracing.Driver
	Tracer        observability.Tracer
	Observability observability.Observability
	Health        HealthCheck `group:"health_checks"`
}

// ProvideDriver installs the process-wide driver with tracing.Init and drains
// it when the application stops.
func ProvideDriver(p DriverParams) (DriverResult, error) {
	opts := append([]tracing.Option{
		tracing.WithLogger(p.Logger),
		tracing.WithRegisterer(p.Registerer),
	}, p.Options...)

	d, err := tracing.Init(p.Config, opts...)
	switch {
	case errors.Is(err, tracing.ErrAlreadyInitialized):
		// The installer owns the shutdown.
		p.Logger.Warn(context.Background(), "tracing driver already initialized, reusing it")
	case err != nil:
		return DriverResult{}, err
	default:
		p.LC.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return d.Shutdown(ctx)
			},
		})
	}

	return DriverResult{
		Driver:        d,
		Tracer:        d.Tracer(),
		Observability: d,
		Health:        HealthCheck{Name: "tracing", Check: d.Check},
	}, nil
}

// ProvideOption is a helper to provide driver options.
// Usage:
//
//	fx.Provide(fx.Annotate(
//	    tracingfx.ProvideOption(tracing.WithServiceInfo("orders", "1.0.0")),
//	    fx.ResultTags(`group:"tracing_options"`),
//	))
func ProvideOption(opt tracing.Option) func() tracing.Option {
	return func() tracing.Option {
		return opt
	}
}

// CaptureResult contains the capture driver output.
type CaptureResult struct {
	fx.Out

	Driver  *tracing.Driver
	Capture *tracing.Capture
	Tracer  observability.Tracer
}

// ProvideCapture creates a capture-mode driver.
func ProvideCapture() CaptureResult {
	d, c := tracing.NewCapture()
	return CaptureResult{Driver: d, Capture: c, Tracer: d.Tracer()}
}

// NoOpResult contains the no-op facades.
type NoOpResult struct {
	fx.Out

	Observability observability.Observability
	Tracer        observability.Tracer
	Logger        observability.Logger
}

// ProvideNoOp creates facades that record nothing.
func ProvideNoOp() NoOpResult {
	p := noop.NewProvider()
	return NoOpResult{Observability: p, Tracer: p.Tracer(), Logger: p.Logger()}
}

// ServerParams contains dependencies for creating the telemetry server.
type ServerParams struct {
	fx.In

	Config   telemetryserver.Config
	Logger   observability.Logger
	Gatherer prometheus.Gatherer
	Driver   *tracing.Driver
	Checks   []HealthCheck `group:"health_checks"`
}

// ProvideServer creates the telemetry server serving the driver's live
// traces and the registry's metrics.
func ProvideServer(p ServerParams) (*telemetryserver.Server, error) {
	checks := make(map[string]telemetryserver.HealthCheckFunc, len(p.Checks))
	for _, c := range p.Checks {
		checks[c.Name] = c.Check
	}

	return telemetryserver.New(
		telemetryserver.WithConfig(p.Config),
		telemetryserver.WithLogger(p.Logger),
		telemetryserver.WithGatherer(p.Gatherer),
		telemetryserver.WithTraceSource(p.Driver),
		telemetryserver.WithHealthChecks(checks),
	)
}

// RegisterServerLifecycle binds the server on start and shuts it down on stop.
func RegisterServerLifecycle(srv *telemetryserver.Server, lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return srv.Run()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
