// Package tracehttp carries traces across HTTP: Middleware continues the
// caller's trace on the server side and Transport starts a client span and
// injects the W3C headers on the way out.
package tracehttp

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/propagation"
)

type statusWriter struct {
	http.ResponseWriter
	mu     sync.Mutex
	status int
	wrote  bool
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if !sw.wrote {
		sw.wrote = true
		sw.status = code
		sw.ResponseWriter.WriteHeader(code)
	}
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.wrote = true
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Status() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.status
}

// Middleware starts a server span per request on d. A traceparent header
// stitches the span into the caller's trace; without one a new trace is
// started and sampled as usual. Under chi the route pattern is recorded as
// http.route.
func Middleware(d *tracing.Driver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			opts := []tracing.StartOption{
				tracing.WithSpanKind(observability.SpanKindServer),
				tracing.WithTags(
					observability.String("http.method", r.Method),
					observability.String("http.target", r.URL.Path),
				),
			}
			if remote, ok := tracing.Extract(r.Context(), propagation.HeaderCarrier(r.Header)); ok {
				opts = append(opts, tracing.WithStitchedContext(remote))
			}

			ctx, scope := d.StartTrace(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path), opts...)
			defer scope.End()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				tracing.AddTag(ctx, "http.route", rctx.RoutePattern())
			}
			tracing.AddTag(ctx, "http.status_code", sw.Status())
			if sw.Status() >= http.StatusInternalServerError {
				tracing.AddTag(ctx, "error", true)
			}
		})
	}
}
