package exporter

import (
	"errors"
	"time"
)

// Config tunes the reporter.
type Config struct {
	// QueueSize is the capacity of the ingress queue.
	QueueSize int `yaml:"queue_size" envconfig:"QUEUE_SIZE"`

	// MaxBatchSize flushes a batch as soon as it holds this many spans.
	MaxBatchSize int `yaml:"max_batch_size" envconfig:"MAX_BATCH_SIZE"`

	// BatchTimeout flushes a non-empty batch this long after its first span.
	BatchTimeout time.Duration `yaml:"batch_timeout" envconfig:"BATCH_TIMEOUT"`

	// SendTimeout bounds a single Export call.
	SendTimeout time.Duration `yaml:"send_timeout" envconfig:"SEND_TIMEOUT"`

	// Cooldown is the first pause after a failed send; it grows
	// exponentially up to MaxCooldown and resets after a success.
	Cooldown    time.Duration `yaml:"cooldown" envconfig:"COOLDOWN"`
	MaxCooldown time.Duration `yaml:"max_cooldown" envconfig:"MAX_COOLDOWN"`
}

// DefaultConfig returns the reporter defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:    2048,
		MaxBatchSize: 100,
		BatchTimeout: 200 * time.Millisecond,
		SendTimeout:  5 * time.Second,
		Cooldown:     2 * time.Second,
		MaxCooldown:  30 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.QueueSize <= 0 {
		return errors.New("queue size must be positive")
	}

	if c.MaxBatchSize <= 0 {
		return errors.New("max batch size must be positive")
	}

	if c.BatchTimeout <= 0 {
		return errors.New("batch timeout must be positive")
	}

	if c.SendTimeout <= 0 {
		return errors.New("send timeout must be positive")
	}

	if c.Cooldown < 0 {
		return errors.New("cooldown cannot be negative")
	}

	if c.MaxCooldown < c.Cooldown {
		return errors.New("max cooldown cannot be shorter than cooldown")
	}

	return nil
}
