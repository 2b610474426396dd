package ratelimit

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

func TestNewRejectsInvalidSettings(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = New(10, WithBurst(0))
	assert.ErrorIs(t, err, ErrInvalidBurst)

	_, err = New(10, WithBurst(MaxBurst+1))
	assert.ErrorIs(t, err, ErrInvalidBurst)
}

func TestLimiterStartsFullAndRefills(t *testing.T) {
	clock := NewManualClock(epoch)
	l, err := New(10, WithBurst(5), WithClock(clock))
	require.NoError(t, err)

	assert.Equal(t, int64(5), l.Available())
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(), "token %d", i)
	}
	assert.False(t, l.Allow())
	assert.Equal(t, int64(0), l.Available())

	clock.Advance(99 * time.Millisecond)
	assert.False(t, l.Allow(), "a token needs a full 100ms")

	clock.Advance(time.Millisecond)
	assert.True(t, l.Allow())

	clock.Advance(time.Hour)
	assert.Equal(t, int64(5), l.Available(), "credit is capped at capacity")
}

func TestTryAdmitMany(t *testing.T) {
	clock := NewManualClock(epoch)
	l, err := New(100, WithBurst(10), WithClock(clock))
	require.NoError(t, err)

	assert.True(t, l.TryAdmit(0))
	assert.False(t, l.TryAdmit(11), "more than capacity never succeeds")
	assert.True(t, l.TryAdmit(7))
	assert.False(t, l.TryAdmit(4), "partial admission must not consume")
	assert.Equal(t, int64(3), l.Available())
	assert.True(t, l.TryAdmit(3))
}

func TestClockGoingBackwardsDoesNotMintTokens(t *testing.T) {
	clock := NewManualClock(epoch)
	l, err := New(1, WithClock(clock))
	require.NoError(t, err)

	require.True(t, l.Allow())
	clock.Set(epoch.Add(-time.Hour))
	assert.False(t, l.Allow())
	clock.Set(epoch.Add(500 * time.Millisecond))
	assert.False(t, l.Allow())
	clock.Set(epoch.Add(time.Second))
	assert.True(t, l.Allow())
}

func TestReset(t *testing.T) {
	clock := NewManualClock(epoch)
	l, err := New(1, WithBurst(2), WithClock(clock))
	require.NoError(t, err)

	require.True(t, l.TryAdmit(2))
	l.Reset()
	assert.Equal(t, int64(2), l.Available())
	assert.Equal(t, int64(2), l.Capacity())
	assert.Equal(t, uint32(1), l.Rate())
}

// With the default burst, no half-open one-second window may contain more than
// rate admissions, whatever the arrival pattern.
func TestRollingWindowBound(t *testing.T) {
	rates := []uint32{1, 3, 7, 10, 250, 1000}

	for _, rate := range rates {
		t.Run(fmt.Sprintf("rate_%d", rate), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(uint64(rate), 42))
			clock := NewManualClock(epoch)
			l, err := New(rate, WithClock(clock))
			require.NoError(t, err)

			maxStep := int64(3 * time.Second / time.Duration(rate))
			var admitted []time.Time
			for i := 0; i < 20_000; i++ {
				clock.Advance(time.Duration(rng.Int64N(maxStep + 1)))
				attempts := 1 + rng.IntN(3)
				for j := 0; j < attempts; j++ {
					if l.Allow() {
						admitted = append(admitted, clock.Now())
					}
				}
			}
			require.NotEmpty(t, admitted)

			end := 0
			for start := range admitted {
				for end < len(admitted) && admitted[end].Before(admitted[start].Add(time.Second)) {
					end++
				}
				if n := end - start; n > int(rate) {
					t.Fatalf("rate %d: %d admissions in window starting at %v", rate, n, admitted[start].Sub(epoch))
				}
			}
		})
	}
}

func TestAvailableStaysWithinBounds(t *testing.T) {
	clock := NewManualClock(epoch)
	l, err := New(5, WithBurst(3), WithClock(clock))
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 5000; i++ {
		clock.Advance(time.Duration(rng.Int64N(int64(400 * time.Millisecond))))
		l.TryAdmit(rng.IntN(4))
		avail := l.Available()
		require.GreaterOrEqual(t, avail, int64(0))
		require.LessOrEqual(t, avail, l.Capacity())
	}
}

func TestConcurrentAdmissionsNeverExceedCapacity(t *testing.T) {
	clock := NewManualClock(epoch)
	l, err := New(1, WithBurst(50), WithClock(clock))
	require.NoError(t, err)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if l.Allow() {
					admitted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), admitted.Load())
}
