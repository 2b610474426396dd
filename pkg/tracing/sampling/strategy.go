// Package sampling decides, once per trace, whether the trace is recorded.
package sampling

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRatio is returned for a ratio outside [0, 1].
	ErrInvalidRatio = errors.New("sampling ratio must be within [0, 1]")
	// ErrUnknownStrategy is returned for an unrecognised strategy kind.
	ErrUnknownStrategy = errors.New("unknown sampling strategy")
	// ErrInvalidRateLimit is returned when an enabled rate limit admits nothing.
	ErrInvalidRateLimit = errors.New("rate limit must admit at least one event per second")
)

// Kind names a sampling strategy.
type Kind string

const (
	KindDisabled Kind = "disabled"
	KindPassive  Kind = "passive"
	KindActive   Kind = "active"
)

// RateLimit caps how many traces per second an Active strategy may originate.
type RateLimit struct {
	Enabled            bool   `yaml:"enabled" envconfig:"ENABLED"`
	MaxEventsPerSecond uint32 `yaml:"max_events_per_second" envconfig:"MAX_EVENTS_PER_SECOND"`
	// Burst above 1 lets short bursts through at the cost of the strict
	// per-second bound.
	Burst int `yaml:"burst" envconfig:"BURST"`
}

// Strategy is the configured sampling policy.
//
//   - Disabled never samples.
//   - Passive samples only when a parent or forced decision says so.
//   - Active samples a root when a uniform draw falls below Ratio and the
//     rate limit, if enabled, admits it.
type Strategy struct {
	Kind      Kind
	Ratio     float64
	RateLimit RateLimit
}

// Disabled returns the strategy that never samples.
func Disabled() Strategy {
	return Strategy{Kind: KindDisabled}
}

// Passive returns the strategy that never originates a sampled trace.
func Passive() Strategy {
	return Strategy{Kind: KindPassive}
}

// Active returns a ratio strategy with an optional rate limit.
func Active(ratio float64, limit RateLimit) Strategy {
	return Strategy{Kind: KindActive, Ratio: ratio, RateLimit: limit}
}

// Validate checks the strategy.
func (s Strategy) Validate() error {
	switch s.Kind {
	case KindDisabled, KindPassive:
		return nil
	case KindActive:
		if !(s.Ratio >= 0 && s.Ratio <= 1) {
			return fmt.Errorf("%w: got %v", ErrInvalidRatio, s.Ratio)
		}
		if s.RateLimit.Enabled && s.RateLimit.MaxEventsPerSecond == 0 {
			return ErrInvalidRateLimit
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, s.Kind)
	}
}

func (s Strategy) String() string {
	switch s.Kind {
	case KindActive:
		if s.RateLimit.Enabled {
			return fmt.Sprintf("active(ratio=%g, rate_limit=%d/s)", s.Ratio, s.RateLimit.MaxEventsPerSecond)
		}
		return fmt.Sprintf("active(ratio=%g)", s.Ratio)
	default:
		return string(s.Kind)
	}
}
