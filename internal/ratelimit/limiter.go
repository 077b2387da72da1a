// Package ratelimit tracks outbound requests in one-second buckets and reports
// when the configured per-second ceiling has been reached.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultRetention is how long past buckets are kept before eviction.
const DefaultRetention = 2 * time.Second

// Limiter counts requests per wall-clock second.
//
// A Limiter is safe for concurrent use. Sharing one Limiter between several
// API clients makes them draw from the same per-second budget.
type Limiter struct {
	mu        sync.Mutex
	ceiling   int
	buckets   map[int64]int
	clock     func() time.Time
	retention time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithRetention sets how long buckets for past seconds are retained.
func WithRetention(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.retention = d
		}
	}
}

// New returns a limiter allowing ceiling requests per second.
// A ceiling of zero or less disables limiting.
func New(ceiling int, opts ...Option) *Limiter {
	if ceiling < 0 {
		ceiling = 0
	}
	l := &Limiter{
		ceiling:   ceiling,
		buckets:   make(map[int64]int),
		retention: DefaultRetention,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Ceiling returns the configured requests-per-second ceiling (0 = unlimited).
func (l *Limiter) Ceiling() int {
	if l == nil {
		return 0
	}
	return l.ceiling
}

// Enabled reports whether a ceiling is configured.
func (l *Limiter) Enabled() bool {
	return l != nil && l.ceiling > 0
}

// IsLimited reports whether the current second has already seen more requests
// than the ceiling allows.
func (l *Limiter) IsLimited() bool {
	if !l.Enabled() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	count, ok := l.bucketLocked()
	if !ok {
		return false
	}
	return count > l.ceiling
}

// Exhausted reports whether the current second has no room left for another
// request without going over the ceiling.
func (l *Limiter) Exhausted() bool {
	if !l.Enabled() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	count, _ := l.bucketLocked()
	return count >= l.ceiling
}

// RecordRequest counts one request against the current second.
func (l *Limiter) RecordRequest() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	second := l.second()
	l.evictLocked(second)
	l.buckets[second]++
}

// CurrentCount returns the number of requests recorded in the current second.
func (l *Limiter) CurrentCount() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	count, _ := l.bucketLocked()
	return count
}

// Buckets returns the number of seconds currently retained.
func (l *Limiter) Buckets() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictLocked(l.second())
	return len(l.buckets)
}

func (l *Limiter) bucketLocked() (int, bool) {
	second := l.second()
	l.evictLocked(second)
	count, ok := l.buckets[second]
	return count, ok
}

// evictLocked drops buckets that fell out of the retention window.
func (l *Limiter) evictLocked(current int64) {
	keep := int64(l.retention / time.Second)
	if keep < 1 {
		keep = 1
	}
	for second := range l.buckets {
		if current-second >= keep {
			delete(l.buckets, second)
		}
	}
}

func (l *Limiter) second() int64 {
	return l.now().Unix()
}

func (l *Limiter) now() time.Time {
	if l.clock != nil {
		return l.clock()
	}
	return time.Now().UTC()
}
