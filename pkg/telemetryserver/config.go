package telemetryserver

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the telemetry server configuration.
type Config struct {
	Address         string        `yaml:"address" envconfig:"ADDRESS"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	ServiceName     string        `yaml:"service_name" envconfig:"SERVICE_NAME"`
	ServiceVersion  string        `yaml:"service_version" envconfig:"SERVICE_VERSION"`
	EnableMetrics   bool          `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	EnableTraceDump bool          `yaml:"enable_trace_dump" envconfig:"ENABLE_TRACE_DUMP"`
}

// DefaultConfig returns a new Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Address:         ":9464",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		ServiceName:     "unknown-service",
		ServiceVersion:  "unknown",
		EnableMetrics:   true,
		EnableTraceDump: true,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return errors.New("address is required")
	}

	if strings.TrimSpace(c.ServiceName) == "" {
		return errors.New("service name is required")
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive, got %v", c.ReadTimeout)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %v", c.WriteTimeout)
	}

	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %v", c.IdleTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", c.ShutdownTimeout)
	}

	return nil
}
