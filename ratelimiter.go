// ratelimiter.go
package qlite

import (
	"context"
	"sync"
	"time"
)

/*
RateLimiter implements the Regulator interface using a token bucket. Each
operation consumes a token; tokens replenish at a fixed rate. The task
client uses one to pace its polling of the remote execution service, which
throttles aggressive clients.

Key features:
  - Smooth rate limiting with burst capacity
  - Configurable token replenishment rate
  - Thread-safe operation
  - Metric-aware, counting throttled waits
*/
type RateLimiter struct {
	tokens     int           // Current number of available tokens
	maxTokens  int           // Maximum token capacity
	refillRate time.Duration // Time between token replenishments
	lastRefill time.Time     // Last time tokens were added
	mu         sync.Mutex    // Ensures thread-safe access to tokens
	metrics    *Metrics      // Counters for throttled operations
}

/*
NewRateLimiter creates a new rate limit regulator.

Parameters:
  - maxTokens: Maximum number of tokens (burst capacity)
  - refillRate: Duration between token replenishments

Returns:
  - *RateLimiter: A new rate limit regulator instance

Example:
    limiter := NewRateLimiter(100, time.Second) // 100 ops/second with burst capacity
*/
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: now.Add(-refillRate), // Start with a full refill period elapsed
	}
}

/*
Observe implements the Regulator interface by accepting system metrics,
used here to count throttled operations.
*/
func (rl *RateLimiter) Observe(metrics *Metrics) {
	rl.metrics = metrics
}

/*
Limit implements the Regulator interface. It consumes a token if one is
available, allowing the operation to proceed; with the bucket empty the
operation is limited.

Returns:
  - bool: true if the operation should be limited, false if it can proceed

Thread-safe: yes.
*/
func (rl *RateLimiter) Limit() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens > 0 {
		rl.tokens--
		return false // Don't limit
	}
	return true // Limit
}

/*
Wait blocks until a token is acquired or the context ends. Each blocked
cycle counts as a throttled operation in the metrics.
*/
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if !rl.Limit() {
			return nil
		}
		if rl.metrics != nil {
			rl.metrics.RecordThrottle()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.refillRate):
		}
	}
}

/*
Renormalize implements the Regulator interface by triggering a token
refill, potentially allowing more operations if enough time has passed.
*/
func (rl *RateLimiter) Renormalize() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
}

/*
refill adds tokens proportional to the time elapsed since the last
refill, up to the bucket capacity.

Thread-safety: the caller holds the mutex.
*/
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)

	// Integer division over nanoseconds, rounding at the half period.
	elapsedNs := elapsed.Nanoseconds()
	refillRateNs := rl.refillRate.Nanoseconds()

	tokensToAdd := (elapsedNs + (refillRateNs / 2)) / refillRateNs

	if tokensToAdd > 0 {
		rl.tokens = min(rl.maxTokens, rl.tokens+int(tokensToAdd))
		// Only move lastRefill forward by the number of complete periods
		rl.lastRefill = rl.lastRefill.Add(time.Duration(tokensToAdd) * rl.refillRate)
	}
}
