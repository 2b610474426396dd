// Package telemetryserver exposes the operational endpoints of a traced
// service: health, liveness, Prometheus metrics and a dump of the traces
// still in flight.
package telemetryserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/observability/noop"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TraceSource renders the traces that are still open, in Chrome trace event
// format. *tracing.Driver implements it.
type TraceSource interface {
	ActiveTraces() []byte
}

// Router registers extra routes on the chi router.
type Router interface {
	Register(router chi.Router)
}

// Server serves the telemetry endpoints.
type Server struct {
	router       chi.Router
	httpServer   *http.Server
	config       Config
	logger       observability.Logger
	gatherer     prometheus.Gatherer
	traces       TraceSource
	healthChecks map[string]HealthCheckFunc
	middlewares  []func(http.Handler) http.Handler

	mu       sync.Mutex
	listener net.Listener
	serveErr chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a telemetry server with the given options.
func New(opts ...Option) (*Server, error) {
	srv := &Server{
		config:       DefaultConfig(),
		logger:       noop.Logger{},
		gatherer:     prometheus.DefaultGatherer,
		healthChecks: make(map[string]HealthCheckFunc),
		serveErr:     make(chan error, 1),
	}

	for _, opt := range opts {
		opt(srv)
	}

	if err := srv.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry server configuration: %w", err)
	}

	srv.router = chi.NewRouter()
	srv.router.Use(recoverMiddleware(srv.logger))
	for _, middleware := range srv.middlewares {
		srv.router.Use(middleware)
	}
	srv.registerEndpoints()

	srv.httpServer = &http.Server{
		Addr:         srv.config.Address,
		Handler:      srv.router,
		ReadTimeout:  srv.config.ReadTimeout,
		WriteTimeout: srv.config.WriteTimeout,
		IdleTimeout:  srv.config.IdleTimeout,
	}

	return srv, nil
}

// Handler returns the router, for tests and for mounting under another mux.
func (s *Server) Handler() http.Handler {
	return s.router
}

// RegisterRouters registers route handlers with the server.
func (s *Server) RegisterRouters(routers ...Router) *Server {
	for _, router := range routers {
		router.Register(s.router)
	}
	return s
}

func (s *Server) registerEndpoints() {
	ctx := context.Background()

	s.router.Get("/health", healthHandler(s.config, s.healthChecks, s.logger))
	s.router.Get("/live", liveHandler())

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		s.logger.Debug(ctx, "metrics endpoint enabled")
	}

	if s.config.EnableTraceDump && s.traces != nil {
		s.router.Get("/debug/traces", traceDumpHandler(s.traces))
		s.logger.Debug(ctx, "trace dump endpoint enabled")
	}
}
