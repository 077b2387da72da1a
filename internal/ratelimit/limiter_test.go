package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)}
}

func TestLimiterCeiling(t *testing.T) {
	clock := newClock()
	limiter := New(3, WithClock(clock.Now))

	require.False(t, limiter.IsLimited(), "empty bucket is never limited")

	for i := 0; i < 3; i++ {
		limiter.RecordRequest()
	}
	require.Equal(t, 3, limiter.CurrentCount())
	require.False(t, limiter.IsLimited())
	require.True(t, limiter.Exhausted())

	limiter.RecordRequest()
	require.True(t, limiter.IsLimited())

	clock.Advance(time.Second)
	assert.Equal(t, 0, limiter.CurrentCount())
	assert.False(t, limiter.IsLimited())
	assert.False(t, limiter.Exhausted())
}

func TestLimiterUnlimited(t *testing.T) {
	limiter := New(0)
	for i := 0; i < 50; i++ {
		limiter.RecordRequest()
	}

	require.False(t, limiter.Enabled())
	require.False(t, limiter.IsLimited())
	require.False(t, limiter.Exhausted())
	require.Equal(t, 50, limiter.CurrentCount())
}

func TestLimiterCurrentCountIsIdempotent(t *testing.T) {
	clock := newClock()
	limiter := New(10, WithClock(clock.Now))
	limiter.RecordRequest()
	limiter.RecordRequest()

	first := limiter.CurrentCount()
	second := limiter.CurrentCount()
	require.Equal(t, first, second)
	require.Equal(t, 2, first)
}

func TestLimiterEvictsStaleBuckets(t *testing.T) {
	clock := newClock()
	limiter := New(5, WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		limiter.RecordRequest()
		clock.Advance(time.Second)
	}
	// Only the current and previous seconds survive the default retention.
	require.LessOrEqual(t, limiter.Buckets(), 2)

	clock.Advance(10 * time.Second)
	require.Equal(t, 0, limiter.Buckets())
}

func TestLimiterRetentionOption(t *testing.T) {
	clock := newClock()
	limiter := New(5, WithClock(clock.Now), WithRetention(5*time.Second))

	for i := 0; i < 4; i++ {
		limiter.RecordRequest()
		clock.Advance(time.Second)
	}
	require.Equal(t, 4, limiter.Buckets())
}

func TestLimiterConcurrentRecord(t *testing.T) {
	clock := newClock()
	limiter := New(1000, WithClock(clock.Now))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				limiter.RecordRequest()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 500, limiter.CurrentCount())
}

func TestLimiterNilSafe(t *testing.T) {
	var limiter *Limiter
	require.False(t, limiter.Enabled())
	require.False(t, limiter.IsLimited())
	require.Equal(t, 0, limiter.CurrentCount())
	limiter.RecordRequest()
}
