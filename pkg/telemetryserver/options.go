package telemetryserver

import (
	"net/http"
	"strings"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Option is a function that configures a Server.
type Option func(*Server)

// WithConfig sets the full configuration for the server.
func WithConfig(cfg Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithPort sets the listen port on all interfaces.
func WithPort(port string) Option {
	return func(s *Server) {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		s.config.Address = port
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithTraceSource serves /debug/traces from src.
func WithTraceSource(src TraceSource) Option {
	return func(s *Server) {
		s.traces = src
	}
}

// WithHealthChecks registers health checks reported by /health.
func WithHealthChecks(checks map[string]HealthCheckFunc) Option {
	return func(s *Server) {
		for name, check := range checks {
			s.healthChecks[name] = check
		}
	}
}

// WithMiddleware adds a middleware applied to every route.
func WithMiddleware(middleware func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, middleware)
	}
}

// WithServiceInfo sets the service name and version reported by /health.
func WithServiceInfo(name, version string) Option {
	return func(s *Server) {
		if name != "" {
			s.config.ServiceName = name
		}
		if version != "" {
			s.config.ServiceVersion = version
		}
	}
}
