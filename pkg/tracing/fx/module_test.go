package tracingfx

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/telemetryserver"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestCaptureModule(t *testing.T) {
	var (
		tracer  observability.Tracer
		capture *tracing.Capture
	)

	app := fxtest.New(t, CaptureModule, fx.Populate(&tracer, &capture))
	app.RequireStart()

	ctx, root := tracer.Start(context.Background(), "handler")
	_, child := tracer.Start(ctx, "repository")
	child.End()
	root.End()

	app.RequireStop()

	traces := capture.Traces(tracing.TraceOptions{})
	require.Len(t, traces, 1)
	assert.Len(t, traces[0].Walk(), 2)
}

func TestNoOpModule(t *testing.T) {
	var o observability.Observability

	app := fxtest.New(t, NoOpModule, fx.Populate(&o))
	app.RequireStart()

	ctx, sp := o.Tracer().Start(context.Background(), "ignored")
	sp.End()
	assert.Equal(t, context.Background(), ctx)
	assert.False(t, sp.Context().IsSampled())
	o.Logger().Info(ctx, "dropped")

	app.RequireStop()
}

func TestServerConfigFromEnv(t *testing.T) {
	t.Setenv("TELEMETRY_SERVER_ADDRESS", "127.0.0.1:9999")
	t.Setenv("TELEMETRY_SERVER_ENABLE_TRACE_DUMP", "false")

	cfg := tracing.DefaultConfig()
	cfg.ServiceName = "billing"
	cfg.ServiceVersion = "4.0.0"

	srv, err := ServerConfigFromEnv(cfg)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", srv.Address)
	assert.False(t, srv.EnableTraceDump)
	assert.True(t, srv.EnableMetrics)
	assert.Equal(t, "billing", srv.ServiceName)
	assert.Equal(t, "4.0.0", srv.ServiceVersion)

	t.Setenv("TELEMETRY_SERVER_READ_TIMEOUT", "soon")
	_, err = ServerConfigFromEnv(cfg)
	assert.Error(t, err)
}

func TestConfigFromEnvRejectsInvalidSettings(t *testing.T) {
	t.Setenv("TRACING_SAMPLING_STRATEGY", "sometimes")

	_, err := ConfigFromEnv()
	var cfgErr *tracing.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "sampling", cfgErr.Field)
}

// The only test in this package that installs the global driver.
func TestModuleWithServer(t *testing.T) {
	t.Setenv("TRACING_SERVICE_NAME", "checkout")
	t.Setenv("TRACING_OUTPUT_KIND", "otlp_grpc")
	t.Setenv("TRACING_OUTPUT_OTLP_ENDPOINT", "http://127.0.0.1:1")
	t.Setenv("TELEMETRY_SERVER_ADDRESS", "127.0.0.1:0")

	var (
		driver *tracing.Driver
		srv    *telemetryserver.Server
		o      observability.Observability
	)

	app := fxtest.New(t, Module, ServerModule, fx.Populate(&driver, &srv, &o))
	app.RequireStart()

	assert.Same(t, driver, tracing.Global())
	assert.Same(t, driver, o)
	assert.Equal(t, "checkout", driver.Config().ServiceName)

	_, scope := tracing.StartTrace(context.Background(), "open")

	base := "http://" + srv.Addr().String()

	health := get(t, base+"/health")
	assert.Equal(t, http.StatusOK, health.status)
	assert.Contains(t, health.body, `"tracing":{"status":"healthy"}`)
	assert.Contains(t, health.body, `"service":"checkout"`)

	metrics := get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, metrics.status)
	assert.Contains(t, metrics.body, "tracing_sampling_decisions_total")
	assert.Contains(t, metrics.body, "go_goroutines")

	traces := get(t, base+"/debug/traces")
	assert.Contains(t, traces.body, `"name":"open"`)

	scope.End()
	app.RequireStop()
}

type response struct {
	status int
	body   string
}

func get(t *testing.T, url string) response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, body: string(body)}
}
