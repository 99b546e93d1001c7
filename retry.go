// retry.go
package qlite

import (
	"context"
	"math"
	"time"
)

// RetryPolicy defines retry behavior
type RetryPolicy struct {
	MaxAttempts int
	Strategy    RetryStrategy
	Filter      func(error) bool
}

// RetryStrategy defines the interface for retry behavior
type RetryStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements RetryStrategy
type ExponentialBackoff struct {
	Initial time.Duration
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	return eb.Initial * time.Duration(math.Pow(2, float64(attempt-1)))
}

// FixedDelay implements RetryStrategy with a constant pause between
// attempts, the cadence remote submission endpoints expect.
type FixedDelay struct {
	Delay time.Duration
}

func (fd *FixedDelay) NextDelay(attempt int) time.Duration {
	return fd.Delay
}

// Execute runs fn until it succeeds, attempts run out, or the context
// ends. A Filter, when set, marks which errors are retryable; others
// return immediately.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	attempts := rp.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if rp.Filter != nil && !rp.Filter(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := time.Second
		if rp.Strategy != nil {
			delay = rp.Strategy.NextDelay(attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// WithCircuitBreaker routes a job's failures through a named breaker.
func WithCircuitBreaker(id string, maxFailures int, resetTimeout time.Duration) JobOption {
	return func(j *Job) {
		j.CircuitID = id
		j.CircuitConfig = &CircuitBreakerConfig{
			MaxFailures:  maxFailures,
			ResetTimeout: resetTimeout,
			HalfOpenMax:  1,
		}
	}
}

// WithRetry configures retry behavior for a job
func WithRetry(attempts int, strategy RetryStrategy) JobOption {
	return func(j *Job) {
		j.RetryPolicy = &RetryPolicy{
			MaxAttempts: attempts,
			Strategy:    strategy,
		}
	}
}
