// Package tracingfx wires the tracing driver, its logger and metrics registry
// and the telemetry server into an fx application.
package tracingfx

import (
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing"
	"go.uber.org/fx"
)

// Module provides the process-wide tracing driver with lifecycle management.
// Usage:
//
//	fx.New(
//	    tracingfx.Module,
//	    fx.Invoke(func(d *tracing.Driver) { ... }),
//	)
var Module = fx.Module("tracing",
	ConfigModule,
	fx.Provide(
		ProvideLogger,
		ProvideRegistry,
		ProvideDriver,
	),
)

// ModuleWithConfig provides the driver with inline config instead of the
// environment.
func ModuleWithConfig(cfg tracing.Config) fx.Option {
	return fx.Module("tracing",
		fx.Supply(cfg),
		fx.Provide(
			ProvideLogger,
			ProvideRegistry,
			ProvideDriver,
		),
	)
}

// ServerModule adds the telemetry server, started and stopped with the
// application. It expects Module (or ModuleWithConfig) alongside it.
var ServerModule = fx.Module("tracing-server",
	fx.Provide(
		ServerConfigFromEnv,
		ProvideServer,
	),
	fx.Invoke(RegisterServerLifecycle),
)

// CaptureModule provides a driver that records spans in memory, for tests.
// It does not touch the global driver.
// Usage:
//
//	var capture *tracing.Capture
//	fxtest.New(t, tracingfx.CaptureModule, fx.Populate(&capture))
var CaptureModule = fx.Module("tracing-capture",
	fx.Provide(ProvideCapture),
)

// NoOpModule provides no-op tracer, logger and observability facades for
// components that take them but run without tracing.
var NoOpModule = fx.Module("tracing-noop",
	fx.Provide(ProvideNoOp),
)
