package tracehttp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing"
	"go.opentelemetry.io/otel/propagation"
)

// Transport wraps Base with a client span per request. The span is a child
// of the span in the request context, or a new trace when there is none, and
// its context is injected into the outgoing headers.
type Transport struct {
	// Driver defaults to tracing.Global().
	Driver *tracing.Driver
	// Base defaults to http.DefaultTransport.
	Base http.RoundTripper
}

// NewClient returns an http.Client whose requests are traced on d.
func NewClient(d *tracing.Driver, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{Driver: d, Base: http.DefaultTransport},
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	d := t.Driver
	if d == nil {
		d = tracing.Global()
	}

	ctx, scope := d.StartSpan(req.Context(), "HTTP "+req.Method,
		tracing.WithSpanKind(observability.SpanKindClient),
		tracing.WithTags(
			observability.String("http.method", req.Method),
			observability.String("http.url", req.URL.String()),
			observability.String("http.host", req.URL.Host),
		),
	)
	defer scope.End()

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(ctx)
	tracing.Inject(ctx, propagation.HeaderCarrier(out.Header))

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(out)
	if err != nil {
		tracing.AddTags(ctx,
			observability.Bool("error", true),
			observability.String("error.type", classifyError(err)),
		)
		tracing.Log(ctx, "request failed", observability.Error(err))
		return resp, err
	}

	tracing.AddTag(ctx, "http.status_code", resp.StatusCode)
	if resp.StatusCode >= http.StatusBadRequest {
		tracing.AddTag(ctx, "error", true)
	}
	return resp, nil
}

func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "network_timeout"
		}
		return "network_error"
	}

	return "unknown"
}
