package sampling

import (
	"fmt"
	"math/rand/v2"

	"github.com/JailtonJunior94/tracekit-go/pkg/ratelimit"
	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/internal/promutil"
	"github.com/prometheus/client_golang/prometheus"
)

// Decision is the outcome of sampling, or Unset when none has been made.
type Decision uint8

const (
	Unset Decision = iota
	Sampled
	NotSampled
)

// DecisionOf converts a sampled flag into a Decision.
func DecisionOf(sampled bool) Decision {
	if sampled {
		return Sampled
	}
	return NotSampled
}

// IsSampled reports whether d is Sampled.
func (d Decision) IsSampled() bool {
	return d == Sampled
}

func (d Decision) String() string {
	switch d {
	case Sampled:
		return "sampled"
	case NotSampled:
		return "not_sampled"
	default:
		return "unset"
	}
}

// Input carries the per-trace facts a decision depends on.
type Input struct {
	// Parent is an inherited decision: a stitched remote parent or a forced
	// fork. Unset for a fresh root.
	Parent Decision
	// Override, when set, replaces the configured strategy with a one-off
	// ratio and bypasses the rate limit.
	Override *float64
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithClock sets the clock of the rate limiter.
func WithClock(clock ratelimit.Clock) Option {
	return func(s *Sampler) {
		s.clock = clock
	}
}

// WithRegisterer registers the decision counter on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Sampler) {
		s.registerer = reg
	}
}

// WithRandom replaces the uniform [0, 1) source used for ratio draws.
func WithRandom(fn func() float64) Option {
	return func(s *Sampler) {
		s.random = fn
	}
}

// Sampler applies a Strategy. It is safe for concurrent use.
type Sampler struct {
	strategy   Strategy
	limiter    *ratelimit.Limiter
	clock      ratelimit.Clock
	random     func() float64
	registerer prometheus.Registerer
	decisions  *prometheus.CounterVec
}

// New builds a sampler for strategy.
func New(strategy Strategy, opts ...Option) (*Sampler, error) {
	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	s := &Sampler{
		strategy: strategy,
		clock:    ratelimit.SystemClock(),
		random:   rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}

	if strategy.Kind == KindActive && strategy.RateLimit.Enabled {
		limitOpts := []ratelimit.Option{ratelimit.WithClock(s.clock)}
		if strategy.RateLimit.Burst > 0 {
			limitOpts = append(limitOpts, ratelimit.WithBurst(strategy.RateLimit.Burst))
		}
		limiter, err := ratelimit.New(strategy.RateLimit.MaxEventsPerSecond, limitOpts...)
		if err != nil {
			return nil, fmt.Errorf("sampling rate limit: %w", err)
		}
		s.limiter = limiter
	}

	s.decisions = promutil.Register(promutil.Wrap(s.registerer), prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracing_sampling_decisions_total",
			Help: "Root sampling decisions by outcome.",
		},
		[]string{"decision"},
	))

	return s, nil
}

// Strategy returns the configured strategy.
func (s *Sampler) Strategy() Strategy {
	return s.strategy
}

// Decide returns the decision for a new trace root. Descendant spans never
// call it; they copy the root's flag.
func (s *Sampler) Decide(in Input) Decision {
	d := s.decide(in)
	s.decisions.WithLabelValues(d.String()).Inc()
	return d
}

func (s *Sampler) decide(in Input) Decision {
	if s.strategy.Kind == KindDisabled {
		return NotSampled
	}

	if in.Override != nil {
		return DecisionOf(s.shouldSample(*in.Override))
	}

	if in.Parent != Unset {
		return in.Parent
	}

	if s.strategy.Kind == KindPassive {
		return NotSampled
	}

	if !s.shouldSample(s.strategy.Ratio) {
		return NotSampled
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return NotSampled
	}
	return Sampled
}

func (s *Sampler) shouldSample(ratio float64) bool {
	switch {
	case ratio >= 1:
		return true
	case !(ratio > 0):
		return false
	default:
		return s.random() < ratio
	}
}

// ShouldSample draws once against ratio. Ratios of 0 and 1 are answered
// without a draw.
func ShouldSample(ratio float64) bool {
	switch {
	case ratio >= 1:
		return true
	case !(ratio > 0):
		return false
	default:
		return rand.Float64() < ratio
	}
}
