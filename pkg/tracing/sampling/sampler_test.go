package sampling

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratio(v float64) *float64 { return &v }

func TestStrategyValidate(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		wantErr  error
	}{
		{name: "disabled", strategy: Disabled()},
		{name: "passive", strategy: Passive()},
		{name: "active full", strategy: Active(1, RateLimit{})},
		{name: "active zero", strategy: Active(0, RateLimit{})},
		{name: "ratio above one", strategy: Active(1.5, RateLimit{}), wantErr: ErrInvalidRatio},
		{name: "negative ratio", strategy: Active(-0.1, RateLimit{}), wantErr: ErrInvalidRatio},
		{name: "zero rate limit", strategy: Active(1, RateLimit{Enabled: true}), wantErr: ErrInvalidRateLimit},
		{name: "unknown kind", strategy: Strategy{Kind: "adaptive"}, wantErr: ErrUnknownStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.strategy.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = New(tt.strategy)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPassiveNeverOriginates(t *testing.T) {
	s, err := New(Passive())
	require.NoError(t, err)

	for i := 0; i < 10_000; i++ {
		require.Equal(t, NotSampled, s.Decide(Input{}))
	}
	assert.Equal(t, Sampled, s.Decide(Input{Parent: Sampled}), "passive follows a sampled parent")
	assert.Equal(t, NotSampled, s.Decide(Input{Parent: NotSampled}))
}

func TestActiveExtremes(t *testing.T) {
	always, err := New(Active(1, RateLimit{}))
	require.NoError(t, err)
	never, err := New(Active(0, RateLimit{}))
	require.NoError(t, err)

	for i := 0; i < 10_000; i++ {
		require.Equal(t, Sampled, always.Decide(Input{}))
		require.Equal(t, NotSampled, never.Decide(Input{}))
	}
}

func TestActiveRatioIsRespected(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	s, err := New(Active(0.25, RateLimit{}), WithRandom(rng.Float64))
	require.NoError(t, err)

	const n = 20_000
	sampled := 0
	for i := 0; i < n; i++ {
		if s.Decide(Input{}).IsSampled() {
			sampled++
		}
	}

	assert.InDelta(t, 0.25, float64(sampled)/n, 0.02)
}

func TestActiveRequiresBothGates(t *testing.T) {
	clock := ratelimit.NewManualClock(time.Unix(0, 0))
	s, err := New(Active(1, RateLimit{Enabled: true, MaxEventsPerSecond: 10}), WithClock(clock))
	require.NoError(t, err)

	assert.Equal(t, Sampled, s.Decide(Input{}))
	assert.Equal(t, NotSampled, s.Decide(Input{}), "ratio alone never overrides the cap")

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, Sampled, s.Decide(Input{}))

	zero, err := New(Active(0, RateLimit{Enabled: true, MaxEventsPerSecond: 10}), WithClock(clock))
	require.NoError(t, err)
	clock.Advance(time.Second)
	assert.Equal(t, NotSampled, zero.Decide(Input{}), "the limiter never overrides the ratio")
}

func TestOverridePrecedence(t *testing.T) {
	clock := ratelimit.NewManualClock(time.Unix(0, 0))

	t.Run("override beats passive", func(t *testing.T) {
		s, err := New(Passive())
		require.NoError(t, err)
		assert.Equal(t, Sampled, s.Decide(Input{Override: ratio(1)}))
	})

	t.Run("override beats parent", func(t *testing.T) {
		s, err := New(Active(1, RateLimit{}))
		require.NoError(t, err)
		assert.Equal(t, NotSampled, s.Decide(Input{Parent: Sampled, Override: ratio(0)}))
	})

	t.Run("override bypasses the rate limit", func(t *testing.T) {
		s, err := New(Active(1, RateLimit{Enabled: true, MaxEventsPerSecond: 1}), WithClock(clock))
		require.NoError(t, err)
		require.Equal(t, Sampled, s.Decide(Input{}))
		require.Equal(t, NotSampled, s.Decide(Input{}))
		assert.Equal(t, Sampled, s.Decide(Input{Override: ratio(1)}))
	})

	t.Run("disabled beats override", func(t *testing.T) {
		s, err := New(Disabled())
		require.NoError(t, err)
		assert.Equal(t, NotSampled, s.Decide(Input{Override: ratio(1)}))
		assert.Equal(t, NotSampled, s.Decide(Input{Parent: Sampled}))
	})
}

func TestDecisionsAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := New(Passive(), WithRegisterer(reg))
	require.NoError(t, err)

	s.Decide(Input{})
	s.Decide(Input{})
	s.Decide(Input{Parent: Sampled})

	assert.Equal(t, 2.0, testutil.ToFloat64(s.decisions.WithLabelValues("not_sampled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.decisions.WithLabelValues("sampled")))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "tracing_sampling_decisions_total"))
}

func TestShouldSampleFastPaths(t *testing.T) {
	for i := 0; i < 1000; i++ {
		require.True(t, ShouldSample(1))
		require.False(t, ShouldSample(0))
	}
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "passive", Passive().String())
	assert.Equal(t, "active(ratio=0.5)", Active(0.5, RateLimit{}).String())
	assert.Equal(t, "active(ratio=1, rate_limit=10/s)", Active(1, RateLimit{Enabled: true, MaxEventsPerSecond: 10}).String())
}
