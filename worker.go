package qlite

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Worker evaluates circuit jobs, each worker on its own engine instance.
type Worker struct {
	pool   *Pool
	jobs   chan Job
	cancel context.CancelFunc
	engine *Engine
}

func (w *Worker) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			select {
			case w.pool.workers <- w.jobs:
				select {
				case job := <-w.jobs:
					eng, err := w.engineFor(job)
					if err != nil {
						w.pool.space.Store(job.ID, nil, err, job.TTL)
						if job.Circuit.Group != "" {
							w.pool.space.Publish(job.Circuit.Group, RunResult{JobID: job.ID, Err: err, CreatedAt: time.Now()})
						}
						continue
					}

					// Add timeout for job processing
					done := make(chan struct{})
					go func() {
						result, err := w.processJob(job, eng)
						w.pool.space.Store(job.ID, result, err, job.TTL)
						if job.Circuit.Group != "" {
							if result == nil {
								result = &RunResult{JobID: job.ID, Err: err, CreatedAt: time.Now()}
							}
							w.pool.space.Publish(job.Circuit.Group, *result)
						}
						close(done)
					}()

					select {
					case <-done:
					case <-ctx.Done():
						return
					case <-time.After(w.pool.getJobTimeout()): // Timeout for job processing
						log.Printf("Job %s timed out", job.ID)
						// The abandoned goroutine keeps eng; later jobs
						// must not share it.
						w.engine = nil
						continue
					}
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
					continue
				}
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}
	}
}

func (w *Worker) processJob(job Job, eng *Engine) (*RunResult, error) {
	startTime := job.StartTime

	// Circuit breaker check
	if err := w.checkCircuitBreaker(job.CircuitID); err != nil {
		return nil, err
	}

	// Dependency check
	if err := w.checkDependencies(job); err != nil {
		return nil, err
	}

	result, err := w.executeWithRetries(job, eng)

	// Record metrics before storing result
	w.pool.metrics.RecordJob(err == nil)

	if err != nil {
		return nil, err
	}

	w.recordSuccess(job.CircuitID, startTime)
	return result, nil
}

func (w *Worker) executeWithRetries(job Job, eng *Engine) (*RunResult, error) {
	for job.Attempt = 0; job.Attempt < job.RetryPolicy.MaxAttempts; job.Attempt++ {
		if job.Attempt > 0 {
			delay := job.RetryPolicy.Strategy.NextDelay(job.Attempt)
			log.Printf("Job %s retrying attempt %d after %v", job.ID, job.Attempt+1, delay)
			time.Sleep(delay)
		}

		result, err := w.evaluate(job, eng)
		if err == nil {
			return result, nil
		}

		job.LastError = err
		log.Printf("Job %s attempt %d failed with error: %v", job.ID, job.Attempt+1, err)
		w.recordFailure(job.CircuitID)

		if job.RetryPolicy.Filter != nil && !job.RetryPolicy.Filter(err) {
			break
		}
	}
	return nil, fmt.Errorf("all retries failed for job %s: %w", job.ID, job.LastError)
}

// evaluate runs one circuit on the given engine and reads it out.
func (w *Worker) evaluate(job Job, eng *Engine) (*RunResult, error) {
	if job.Circuit.Source != "" {
		if _, err := eng.RunOriginIR(job.Circuit.Source); err != nil {
			return nil, err
		}
	} else if err := eng.Run(job.Circuit.NQubits, job.Circuit.Opcodes); err != nil {
		return nil, err
	}

	probs, err := eng.Stateprob()
	if err != nil {
		return nil, err
	}
	result := &RunResult{JobID: job.ID, Probabilities: probs}

	if job.Circuit.Shots > 0 {
		counts, err := eng.MeasureShots(job.Circuit.Targets, job.Circuit.Shots)
		if err != nil {
			return nil, err
		}
		result.Counts = counts
	}

	return result, nil
}

// engineFor resolves the engine a job runs on, before the job goroutine
// starts. Jobs carrying their own config get a fresh engine; everything
// else shares the worker's. Only the start loop touches w.engine, so a
// goroutine abandoned by the job timeout never races the next job over it.
func (w *Worker) engineFor(job Job) (*Engine, error) {
	if job.Circuit.Config != nil {
		return NewEngine(job.Circuit.Config)
	}
	if w.engine == nil {
		eng, err := NewEngine(w.pool.engineConfig())
		if err != nil {
			return nil, err
		}
		w.engine = eng
	}
	return w.engine, nil
}

func (w *Worker) checkCircuitBreaker(circuitID string) error {
	if breaker := w.pool.breakerFor(circuitID); breaker != nil {
		if !breaker.Allow() {
			log.Printf("Job not allowed by circuit breaker %s", circuitID)
			return fmt.Errorf("%w: %s", ErrCircuitOpen, circuitID)
		}
	}
	return nil
}

func (w *Worker) recordSuccess(circuitID string, startTime time.Time) {
	if breaker := w.pool.breakerFor(circuitID); breaker != nil {
		breaker.RecordSuccess()
	}
	w.pool.metrics.RecordRun(startTime)
}

func (w *Worker) recordFailure(circuitID string) {
	if breaker := w.pool.breakerFor(circuitID); breaker != nil {
		breaker.RecordFailure()
	}
}

func (w *Worker) checkDependencies(job Job) error {
	if len(job.Dependencies) == 0 {
		return nil
	}

	for _, depID := range job.Dependencies {
		if err := w.checkSingleDependency(depID, job.DependencyRetryPolicy); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) checkSingleDependency(depID string, retryPolicy *RetryPolicy) error {
	maxAttempts := 1
	var strategy RetryStrategy = &ExponentialBackoff{Initial: time.Second}

	if retryPolicy != nil {
		maxAttempts = retryPolicy.MaxAttempts
		strategy = retryPolicy.Strategy
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		result := <-w.pool.space.Await(depID)
		if result.Err == nil {
			return nil
		}
		if attempt < maxAttempts-1 {
			time.Sleep(strategy.NextDelay(attempt + 1))
			continue
		}
		return fmt.Errorf("dependency %s failed: %w", depID, result.Err)
	}
	return nil
}
