// circuitbreaker.go
package qlite

import (
	"errors"
	"log"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call outright.
var ErrCircuitOpen = errors.New("circuit breaker open")

/*
CircuitState represents the state of the circuit breaker as it moves
between operational modes based on the health of the guarded dependency.
*/
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation state
	CircuitOpen                         // Failure state, rejecting requests
	CircuitHalfOpen                     // Probationary state, allowing limited requests
)

/*
CircuitBreaker guards calls against an unstable dependency, here the
remote execution service the task client talks to. When consecutive
failures cross the threshold it stops calls for a cooldown period instead
of hammering an endpoint that is already struggling.

The breaker operates in three states:
  - Closed: normal operation, all requests are allowed
  - Open: failure threshold exceeded, all requests are rejected
  - Half-Open: probationary state allowing limited requests through

It also implements the Regulator interface so a Pool can factor breaker
state into its scheduling decisions.
*/
type CircuitBreaker struct {
	mu               sync.RWMutex
	maxFailures      int           // Maximum failures before opening circuit
	resetTimeout     time.Duration // Time to wait before attempting recovery
	halfOpenMax      int           // Maximum requests allowed in half-open state
	failureCount     int           // Current count of consecutive failures
	state            CircuitState  // Current state of the circuit breaker
	openTime         time.Time     // Time when circuit was opened
	halfOpenAttempts int           // Number of attempts made in half-open state
	metrics          *Metrics      // Current system metrics
}

/*
NewCircuitBreaker creates a breaker in the closed state.

Parameters:
  - maxFailures: consecutive failures allowed before opening the circuit
  - resetTimeout: cooldown before an open circuit allows probes again
  - halfOpenMax: successful probes required to close from half-open

Returns:
  - *CircuitBreaker: a new breaker in the closed state
*/
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, halfOpenMax int) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  halfOpenMax,
		state:        CircuitClosed,
	}
}

/*
Execute runs fn through the breaker: rejected immediately with
ErrCircuitOpen when the circuit is open, otherwise run and recorded as a
success or failure.
*/
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

/*
State returns the current circuit state.
*/
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

/*
Observe implements the Regulator interface by accepting system metrics.
*/
func (cb *CircuitBreaker) Observe(metrics *Metrics) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.metrics = metrics
}

/*
Limit implements the Regulator interface: true when calls should not
proceed.
*/
func (cb *CircuitBreaker) Limit() bool {
	return !cb.Allow()
}

/*
Renormalize implements the Regulator interface by attempting recovery:
an open circuit past its cooldown moves to half-open.
*/
func (cb *CircuitBreaker) Renormalize() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.openTime) > cb.resetTimeout {
		cb.state = CircuitHalfOpen
		cb.halfOpenAttempts = 0
		log.Printf("Circuit breaker renormalized to half-open state")
	}
}

/*
RecordFailure counts a failure and opens the circuit when the threshold
is crossed. A failure during half-open sends the circuit straight back to
open.
*/
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	if cb.failureCount >= cb.maxFailures {
		if cb.state == CircuitHalfOpen {
			cb.state = CircuitOpen
			cb.openTime = time.Now()
			log.Printf("Circuit breaker reopened from half-open state")
		} else if cb.state == CircuitClosed {
			cb.state = CircuitOpen
			cb.openTime = time.Now()
			log.Printf("Circuit breaker opened")
		}
	}
}

/*
RecordSuccess counts a success: enough successful probes close a
half-open circuit, and any success resets the failure count while closed.
*/
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.halfOpenAttempts++
		if cb.halfOpenAttempts >= cb.halfOpenMax {
			cb.state = CircuitClosed
			cb.failureCount = 0
			cb.halfOpenAttempts = 0
			log.Printf("Circuit breaker closed from half-open")
		}
	} else if cb.state == CircuitClosed {
		cb.failureCount = 0
	}
}

/*
Allow reports whether a call may proceed in the current state. An open
circuit past its cooldown flips to half-open and lets the call through as
a probe.

Returns:
  - bool: true if the request should be allowed, false if rejected
*/
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.openTime) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.halfOpenAttempts = 0
			return true
		}
		return false
	case CircuitHalfOpen:
		return cb.halfOpenAttempts < cb.halfOpenMax
	default:
		return false
	}
}
