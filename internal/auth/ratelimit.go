package auth

import (
	"sync"
	"time"
)

// defaultRatePerMinute applies to keys with no explicit limit and to
// anonymous callers when auth is disabled.
const defaultRatePerMinute = 120

const (
	cleanupInterval = 5 * time.Minute
	bucketIdleTTL   = 10 * time.Minute
)

// RateLimiter is a token-bucket limiter keyed by caller identity. Buckets
// refill continuously at the per-minute rate and hold at most one minute of
// burst.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens     float64
	ratePerSec float64
	capacity   float64
	lastRefill time.Time
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether the caller identified by key may proceed.
// ratePerMinute <= 0 applies the default.
func (rl *RateLimiter) Allow(key string, ratePerMinute int) bool {
	if ratePerMinute <= 0 {
		ratePerMinute = defaultRatePerMinute
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || b.capacity != float64(ratePerMinute) {
		b = &bucket{
			tokens:     float64(ratePerMinute),
			ratePerSec: float64(ratePerMinute) / 60,
			capacity:   float64(ratePerMinute),
			lastRefill: now,
		}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.ratePerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// cleanup periodically removes idle buckets so anonymous callers cannot grow
// the map without bound.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		rl.evictIdle(rl.now().Add(-bucketIdleTTL))
	}
}

// evictIdle drops every bucket not touched since cutoff.
func (rl *RateLimiter) evictIdle(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}
