package telemetryserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability/fake"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routerFunc func(chi.Router)

func (f routerFunc) Register(r chi.Router) { f(r) }

func serve(t *testing.T, srv *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "empty address", modify: func(c *Config) { c.Address = "" }, wantErr: true},
		{name: "empty service", modify: func(c *Config) { c.ServiceName = " " }, wantErr: true},
		{name: "zero read timeout", modify: func(c *Config) { c.ReadTimeout = 0 }, wantErr: true},
		{name: "negative write timeout", modify: func(c *Config) { c.WriteTimeout = -time.Second }, wantErr: true},
		{name: "zero idle timeout", modify: func(c *Config) { c.IdleTimeout = 0 }, wantErr: true},
		{name: "zero shutdown timeout", modify: func(c *Config) { c.ShutdownTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
				return
			}
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = ""

	_, err := New(WithConfig(cfg))
	assert.ErrorContains(t, err, "invalid telemetry server configuration")
}

func TestLiveAndHealth(t *testing.T) {
	srv, err := New(WithServiceInfo("orders", "1.2.0"))
	require.NoError(t, err)

	live := serve(t, srv, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Equal(t, "OK", live.Body.String())

	rec := serve(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, statusHealthy, body.Status)
	assert.Equal(t, "orders", body.Service)
	assert.Equal(t, "1.2.0", body.Version)
	assert.Empty(t, body.Checks)
}

func TestHealthReportsFailingCheck(t *testing.T) {
	logger := fake.NewLogger()
	srv, err := New(
		WithLogger(logger),
		WithHealthChecks(map[string]HealthCheckFunc{
			"tracing":   func(context.Context) error { return tracing.ErrQueueSaturated },
			"collector": func(context.Context) error { return nil },
		}),
	)
	require.NoError(t, err)

	rec := serve(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, statusUnhealthy, body.Status)
	assert.Equal(t, CheckResult{Status: statusHealthy}, body.Checks["collector"])
	assert.Equal(t, CheckResult{Status: statusUnhealthy, Error: tracing.ErrQueueSaturated.Error()}, body.Checks["tracing"])

	entries := logger.EntriesWithMessage("health check failed")
	require.Len(t, entries, 1)
	check, _ := entries[0].Field("check")
	assert.Equal(t, "tracing", check)
}

func TestMetricsFromGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "tracing_test_spans_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	srv, err := New(WithGatherer(reg))
	require.NoError(t, err)

	rec := serve(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tracing_test_spans_total 3")
}

func TestMetricsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableMetrics = false

	srv, err := New(WithConfig(cfg))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, serve(t, srv, http.MethodGet, "/metrics", nil).Code)
}

func TestTraceDump(t *testing.T) {
	d, _ := tracing.NewCapture()
	_, open := d.StartTrace(context.Background(), "long-running")
	defer open.End()

	srv, err := New(WithTraceSource(d))
	require.NoError(t, err)

	rec := serve(t, srv, http.MethodGet, "/debug/traces", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var dump struct {
		TraceEvents []struct {
			Name string `json:"name"`
		} `json:"traceEvents"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dump))
	require.NotEmpty(t, dump.TraceEvents)
	assert.Equal(t, "long-running", dump.TraceEvents[0].Name)
}

func TestTraceDumpRequiresSource(t *testing.T) {
	srv, err := New()
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, serve(t, srv, http.MethodGet, "/debug/traces", nil).Code)
}

func TestRecoverFromPanic(t *testing.T) {
	logger := fake.NewLogger()
	srv, err := New(WithLogger(logger))
	require.NoError(t, err)
	srv.RegisterRouters(routerFunc(func(r chi.Router) {
		r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	}))

	rec := serve(t, srv, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := logger.EntriesWithMessage("panic recovered")
	require.Len(t, entries, 1)
	value, _ := entries[0].Field("panic")
	assert.Equal(t, "boom", value)
}

func TestRunAndShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"

	srv, err := New(WithConfig(cfg))
	require.NoError(t, err)
	assert.Nil(t, srv.Addr())

	require.NoError(t, srv.Run())
	require.NotNil(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr().String() + "/live")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, srv.Shutdown(ctx))

	_, err = http.Get("http://" + srv.Addr().String() + "/live")
	assert.Error(t, err)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"

	srv, err := New(WithConfig(cfg))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestRunReportsBindError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"

	first, err := New(WithConfig(cfg))
	require.NoError(t, err)
	require.NoError(t, first.Run())
	defer first.Shutdown(context.Background())

	cfg.Address = first.Addr().String()
	second, err := New(WithConfig(cfg))
	require.NoError(t, err)

	err = second.Run()
	var opErr interface{ Timeout() bool }
	assert.True(t, errors.As(err, &opErr), "bind failure is a net error")
}
