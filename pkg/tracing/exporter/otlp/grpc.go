package otlp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/exporter"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// DefaultEndpoint is the collector address used when none is configured.
const DefaultEndpoint = "http://localhost:4317"

// DefaultTimeout bounds a single export call.
const DefaultTimeout = 10 * time.Second

// ErrInvalidEndpoint is returned for endpoints that are not a URL, a gRPC
// target or a host:port pair.
var ErrInvalidEndpoint = errors.New("invalid otlp endpoint")

// Config configures the gRPC exporter.
type Config struct {
	// Endpoint is an http(s) URL, a host:port pair or a gRPC target such as
	// dns:///collector:4317. http:// implies plaintext.
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`

	// Insecure disables TLS for endpoints without an http(s) scheme.
	Insecure bool `yaml:"insecure" envconfig:"INSECURE"`

	// RequestTimeout bounds each export call on top of the caller deadline.
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`

	// Headers are sent as gRPC metadata with every export.
	Headers map[string]string `yaml:"headers" envconfig:"HEADERS"`
}

// Target is a parsed endpoint.
type Target struct {
	Address  string
	Insecure bool
}

// ParseEndpoint converts an endpoint into a gRPC target.
func ParseEndpoint(endpoint string, insecureDefault bool) (Target, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	u, err := url.Parse(endpoint)
	if err == nil && u.Scheme != "" && u.Opaque == "" {
		switch u.Scheme {
		case "http", "https":
			if err := checkHostPort(u.Host); err != nil {
				return Target{}, err
			}
			return Target{Address: u.Host, Insecure: u.Scheme == "http"}, nil
		default:
			return Target{Address: endpoint, Insecure: insecureDefault}, nil
		}
	}

	if err := checkHostPort(endpoint); err != nil {
		return Target{}, err
	}
	return Target{Address: endpoint, Insecure: insecureDefault}, nil
}

func checkHostPort(hostport string) error {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, hostport)
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("%w: bad port in %q", ErrInvalidEndpoint, hostport)
	}
	return nil
}

// GRPCExporter sends batches to the OTLP TraceService.
type GRPCExporter struct {
	resource Resource
	config   Config
	conn     *grpc.ClientConn
	client   coltracepb.TraceServiceClient
	closed   sync.Once
	err      error
}

var _ exporter.Exporter = (*GRPCExporter)(nil)

// NewGRPCExporter creates a client for the collector. The connection is
// established lazily on the first export, so an unreachable collector does
// not fail start-up.
func NewGRPCExporter(cfg Config, res Resource, opts ...grpc.DialOption) (*GRPCExporter, error) {
	target, err := ParseEndpoint(cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return nil, err
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultTimeout
	}

	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if target.Insecure {
		creds = insecure.NewCredentials()
	}

	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)
	conn, err := grpc.NewClient(target.Address, dialOpts...)
	if err != nil {
		return nil, &exporter.TransportError{Op: "dial", Err: err}
	}

	return &GRPCExporter{
		resource: res,
		config:   cfg,
		conn:     conn,
		client:   coltracepb.NewTraceServiceClient(conn),
	}, nil
}

// Export sends batch as one ExportTraceServiceRequest. Spans the collector
// rejects are reported with a *exporter.DroppedSpansError.
func (e *GRPCExporter) Export(ctx context.Context, batch []span.FinishedSpan) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	if len(e.config.Headers) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, metadata.New(e.config.Headers))
	}

	resp, err := e.client.Export(ctx, Encode(e.resource, batch))
	if err != nil {
		return &exporter.TransportError{Op: "export", Err: err}
	}

	if partial := resp.GetPartialSuccess(); partial.GetRejectedSpans() > 0 {
		// The count comes from the collector and is not trusted past the batch size.
		rejected := min(partial.GetRejectedSpans(), int64(len(batch)))
		return &exporter.DroppedSpansError{
			Reason: exporter.DropRejected,
			Count:  int(rejected),
			Err:    errors.New(partial.GetErrorMessage()),
		}
	}
	return nil
}

// Shutdown closes the client connection.
func (e *GRPCExporter) Shutdown(context.Context) error {
	e.closed.Do(func() {
		e.err = e.conn.Close()
	})
	return e.err
}
