package tracing

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/exporter"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/exporter/otlp"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/sampling"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadConfig, e.g.
// TRACING_SAMPLING_RATIO or TRACING_OUTPUT_KIND.
const EnvPrefix = "TRACING"

// maxUDPPayload is the largest payload of a single IPv4 UDP datagram.
const maxUDPPayload = 65507

// OutputKind selects the exporter backend. Exactly one is active per driver.
type OutputKind string

const (
	OutputJaegerUDP OutputKind = "jaeger_thrift_udp"
	OutputOTLPGRPC  OutputKind = "otlp_grpc"
)

// ForkSampling selects how a forked trace gets its sampling decision.
type ForkSampling string

const (
	// ForkInherit samples the fork exactly when the span it forks from is
	// sampled.
	ForkInherit ForkSampling = "inherit"
	// ForkRedraw runs the configured strategy for the fork.
	ForkRedraw ForkSampling = "redraw"
)

// Config holds the tracing settings.
type Config struct {
	Enabled        bool            `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName    string          `yaml:"service_name" envconfig:"SERVICE_NAME"`
	ServiceVersion string          `yaml:"service_version" envconfig:"SERVICE_VERSION"`
	Output         OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Sampling       SamplingConfig  `yaml:"sampling" envconfig:"SAMPLING"`
	Reporter       exporter.Config `yaml:"reporter" envconfig:"REPORTER"`

	// LiveTracking keeps the unfinished sampled roots for ActiveTraces.
	LiveTracking bool `yaml:"live_tracking" envconfig:"LIVE_TRACKING"`
}

// OutputConfig selects and configures the backend.
type OutputConfig struct {
	Kind   OutputKind   `yaml:"kind" envconfig:"KIND"`
	Jaeger JaegerConfig `yaml:"jaeger" envconfig:"JAEGER"`
	OTLP   otlp.Config  `yaml:"otlp" envconfig:"OTLP"`
}

// JaegerConfig configures the Thrift compact UDP exporter.
type JaegerConfig struct {
	// ServerAddr is the agent address, host:port.
	ServerAddr string `yaml:"server_addr" envconfig:"SERVER_ADDR"`
	// ReporterBindAddr is the optional local address of the UDP socket. It
	// must use the same IP family as ServerAddr.
	ReporterBindAddr string `yaml:"reporter_bind_addr" envconfig:"REPORTER_BIND_ADDR"`
	// MaxPacketSize bounds each datagram; 0 selects the default.
	MaxPacketSize int `yaml:"max_packet_size" envconfig:"MAX_PACKET_SIZE"`
	// ProcessTags are added to the process of every batch.
	ProcessTags map[string]string `yaml:"process_tags" envconfig:"PROCESS_TAGS"`
}

// SamplingConfig configures the sampling strategy.
type SamplingConfig struct {
	Strategy     sampling.Kind      `yaml:"strategy" envconfig:"STRATEGY"`
	Ratio        float64            `yaml:"ratio" envconfig:"RATIO"`
	RateLimit    sampling.RateLimit `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	ForkSampling ForkSampling       `yaml:"fork_sampling" envconfig:"FORK_SAMPLING"`
}

// StrategyValue returns the sampling strategy described by c.
func (c SamplingConfig) StrategyValue() sampling.Strategy {
	return sampling.Strategy{Kind: c.Strategy, Ratio: c.Ratio, RateLimit: c.RateLimit}
}

// DefaultConfig returns the defaults: enabled, every trace sampled and sent
// to a local Jaeger agent.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		ServiceName: "unknown-service",
		Output: OutputConfig{
			Kind: OutputJaegerUDP,
			Jaeger: JaegerConfig{
				ServerAddr:    "127.0.0.1:6831",
				MaxPacketSize: 65000,
			},
			OTLP: otlp.Config{
				Endpoint:       otlp.DefaultEndpoint,
				RequestTimeout: otlp.DefaultTimeout,
			},
		},
		Sampling: SamplingConfig{
			Strategy:     sampling.KindActive,
			Ratio:        1.0,
			ForkSampling: ForkInherit,
		},
		Reporter:     exporter.DefaultConfig(),
		LiveTracking: true,
	}
}

// Validate checks the configuration. A disabled configuration is always
// valid. Errors are *ConfigurationError.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if strings.TrimSpace(c.ServiceName) == "" {
		return configError("service_name", "service name is required", nil)
	}

	switch c.Output.Kind {
	case OutputJaegerUDP:
		if strings.TrimSpace(c.Output.Jaeger.ServerAddr) == "" {
			return configError("output.jaeger.server_addr", "agent address is required", nil)
		}
		if c.Output.Jaeger.MaxPacketSize < 0 || c.Output.Jaeger.MaxPacketSize > maxUDPPayload {
			return configError("output.jaeger.max_packet_size",
				fmt.Sprintf("must be within [0, %d], got %d", maxUDPPayload, c.Output.Jaeger.MaxPacketSize), nil)
		}
	case OutputOTLPGRPC:
		if _, err := otlp.ParseEndpoint(c.Output.OTLP.Endpoint, c.Output.OTLP.Insecure); err != nil {
			return configError("output.otlp.endpoint", "invalid collector endpoint", err)
		}
		if c.Output.OTLP.RequestTimeout < 0 {
			return configError("output.otlp.request_timeout", "cannot be negative", nil)
		}
	default:
		return configError("output.kind", fmt.Sprintf("unknown output kind %q", c.Output.Kind), nil)
	}

	if err := c.Sampling.StrategyValue().Validate(); err != nil {
		return configError("sampling", "invalid sampling strategy", err)
	}

	switch c.Sampling.ForkSampling {
	case "", ForkInherit, ForkRedraw:
	default:
		return configError("sampling.fork_sampling", fmt.Sprintf("unknown fork sampling %q", c.Sampling.ForkSampling), nil)
	}

	if err := c.Reporter.Validate(); err != nil {
		return configError("reporter", "invalid reporter settings", err)
	}

	return nil
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path when
// path is not empty, overlays TRACING_* environment variables and validates
// the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read tracing config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, configError("file", "cannot parse "+path, err)
		}
	}

	return overlayEnv(cfg)
}

// ConfigFromEnv is LoadConfig without a file.
func ConfigFromEnv() (Config, error) {
	return overlayEnv(DefaultConfig())
}

func overlayEnv(cfg Config) (Config, error) {
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		var parseErr *envconfig.ParseError
		if errors.As(err, &parseErr) {
			return Config{}, configError(strings.ToLower(parseErr.KeyName), "cannot parse environment value", err)
		}
		return Config{}, configError("env", "cannot read environment", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
