package qlite

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrPoolOverloaded is returned when a regulator rejects new jobs.
var ErrPoolOverloaded = errors.New("pool overloaded")

// Pool is a hybrid worker pool/result store for circuit evaluation. Each
// worker owns its engine, so scheduled jobs never share mutable state.
type Pool struct {
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	workers    chan chan Job
	jobs       chan Job
	space      *ResultSpace
	scaler     *Scaler
	regulators []Regulator
	metrics    *Metrics
	breakers   map[string]*CircuitBreaker
	workerMu   sync.Mutex
	workerList []*Worker
	breakersMu sync.RWMutex
	config     *Config
}

// NewPool creates a pool with worker count bounds and an engine config
// shared by the workers. A nil config gets the defaults from NewConfig.
func NewPool(ctx context.Context, minWorkers, maxWorkers int, config *Config) *Pool {
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		ctx:        ctx,
		cancel:     cancel,
		breakers:   make(map[string]*CircuitBreaker),
		workerList: make([]*Worker, 0),
		jobs:       make(chan Job, maxWorkers*10),
		workers:    make(chan chan Job, maxWorkers),
		space:      NewResultSpace(),
		metrics:    NewMetrics(),
		config:     config,
	}

	// Start initial workers
	for i := 0; i < minWorkers; i++ {
		p.startWorker()
	}

	p.scaler = NewScaler(p, minWorkers, maxWorkers, &ScalerConfig{
		TargetLoad:         2.0,
		ScaleUpThreshold:   4.0,
		ScaleDownThreshold: 1.0,
		Cooldown:           time.Millisecond * 500,
	})
	p.regulators = append(p.regulators, p.scaler)
	if config != nil && config.MemoryBudget > 0 {
		p.regulators = append(p.regulators, NewMemoryGovernor(config.MemoryBudget, time.Second))
	}

	// Start the manager goroutine
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.manage()
	}()

	// Start metrics collection
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.collectMetrics()
	}()

	return p
}

// Job dispatch
func (p *Pool) manage() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			// Wait for a worker with timeout
			select {
			case <-p.ctx.Done():
				return
			case workerChan := <-p.workers:
				select {
				case workerChan <- job:
					// Job handed to worker
				case <-p.ctx.Done():
					return
				case <-time.After(p.getSchedulingTimeout()):
					// Registration from a since-removed worker; fail the
					// job rather than wedge dispatch on it.
					log.Printf("Worker went away before accepting job %s", job.ID)
					p.space.Store(job.ID, nil, fmt.Errorf("no available workers"), job.TTL)
					p.metrics.RecordSchedulingFailure()
				}
			case <-time.After(p.getSchedulingTimeout()):
				log.Printf("No available workers for job: %s, timeout occurred", job.ID)
				p.space.Store(job.ID, nil, fmt.Errorf("no available workers"), job.TTL)
				p.metrics.RecordSchedulingFailure()
			}
		}
	}
}

func (p *Pool) collectMetrics() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.metrics.mu.Lock()
			p.metrics.JobQueueSize = len(p.jobs)
			p.metrics.ActiveWorkers = len(p.workers)
			p.metrics.mu.Unlock()

			for _, r := range p.regulators {
				r.Observe(p.metrics)
			}
		}
	}
}

// Schedule queues one circuit job and returns the channel its result
// arrives on. The channel receives exactly one RunResult and closes.
func (p *Pool) Schedule(circuit CircuitJob, opts ...JobOption) <-chan RunResult {
	// Create context with configured timeout
	ctx, cancel := context.WithTimeout(p.ctx, p.getSchedulingTimeout())
	defer cancel()

	if circuit.ID == "" {
		circuit.ID = uuid.NewString()
	}

	job := Job{
		ID:      circuit.ID,
		Circuit: circuit,
		RetryPolicy: &RetryPolicy{
			MaxAttempts: 3,
			Strategy:    &ExponentialBackoff{Initial: time.Second},
		},
		StartTime: time.Now(),
	}

	// Apply options
	for _, opt := range opts {
		opt(&job)
	}

	if p.limited() {
		p.metrics.RecordSchedulingFailure()
		return errChannel(job.ID, ErrPoolOverloaded)
	}

	// Check circuit breaker if configured
	if job.CircuitID != "" {
		breaker := p.getCircuitBreaker(job)
		if breaker != nil && !breaker.Allow() {
			return errChannel(job.ID, fmt.Errorf("%w: %s", ErrCircuitOpen, job.CircuitID))
		}
	}

	// Try to schedule job with context timeout
	select {
	case p.jobs <- job:
		return p.space.Await(job.ID)
	case <-ctx.Done():
		p.metrics.RecordSchedulingFailure()
		return errChannel(job.ID, fmt.Errorf("job scheduling timeout: %w", ctx.Err()))
	}
}

func errChannel(id string, err error) <-chan RunResult {
	ch := make(chan RunResult, 1)
	ch <- RunResult{JobID: id, Err: err, CreatedAt: time.Now()}
	close(ch)
	return ch
}

func (p *Pool) limited() bool {
	for _, r := range p.regulators {
		if r.Limit() {
			return true
		}
	}
	return false
}

func (p *Pool) CreateBroadcastGroup(id string, ttl time.Duration) *BroadcastGroup {
	return p.space.CreateBroadcastGroup(id, ttl)
}

func (p *Pool) Subscribe(groupID string) chan RunResult {
	return p.space.Subscribe(groupID)
}

// Metrics exposes the pool's counters.
func (p *Pool) Metrics() *Metrics { return p.metrics }

// Helper functions
func (p *Pool) startWorker() {
	wctx, cancel := context.WithCancel(p.ctx)
	worker := &Worker{
		pool:   p,
		jobs:   make(chan Job),
		cancel: cancel,
	}
	p.workerMu.Lock()
	p.workerList = append(p.workerList, worker)
	p.workerMu.Unlock()

	p.metrics.mu.Lock()
	p.metrics.WorkerCount++
	count := p.metrics.WorkerCount
	p.metrics.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		worker.start(wctx)
	}()
	log.Printf("Started worker, total workers: %d", count)
}

func (p *Pool) addWorkers(n int) {
	for i := 0; i < n; i++ {
		p.startWorker()
	}
}

func (p *Pool) removeWorkers(n int) {
	p.workerMu.Lock()
	var cancels []context.CancelFunc
	for i := 0; i < n && len(p.workerList) > 0; i++ {
		w := p.workerList[len(p.workerList)-1]
		p.workerList = p.workerList[:len(p.workerList)-1]
		cancels = append(cancels, w.cancel)
	}
	p.workerMu.Unlock()

	for _, cancel := range cancels {
		if cancel != nil {
			cancel()
		}
	}

	p.metrics.mu.Lock()
	p.metrics.WorkerCount -= len(cancels)
	p.metrics.mu.Unlock()
}

// WithTTL configures how long a job's result stays retrievable.
func WithTTL(ttl time.Duration) JobOption {
	return func(j *Job) {
		j.TTL = ttl
	}
}

func (p *Pool) getCircuitBreaker(job Job) *CircuitBreaker {
	if job.CircuitID == "" || job.CircuitConfig == nil {
		return nil
	}

	p.breakersMu.Lock()
	defer p.breakersMu.Unlock()

	breaker, exists := p.breakers[job.CircuitID]
	if !exists {
		breaker = NewCircuitBreaker(
			job.CircuitConfig.MaxFailures,
			job.CircuitConfig.ResetTimeout,
			job.CircuitConfig.HalfOpenMax,
		)
		p.breakers[job.CircuitID] = breaker
	}

	return breaker
}

func (p *Pool) breakerFor(circuitID string) *CircuitBreaker {
	if circuitID == "" {
		return nil
	}
	p.breakersMu.RLock()
	defer p.breakersMu.RUnlock()
	return p.breakers[circuitID]
}

func (p *Pool) getSchedulingTimeout() time.Duration {
	if p.config != nil && p.config.SchedulingTimeout > 0 {
		return p.config.SchedulingTimeout
	}
	return 5 * time.Second // Default timeout
}

func (p *Pool) getJobTimeout() time.Duration {
	if p.config != nil && p.config.JobTimeout > 0 {
		return p.config.JobTimeout
	}
	return 30 * time.Second
}

func (p *Pool) engineConfig() *Config {
	if p.config != nil {
		return p.config
	}
	return NewConfig()
}

// Close stops workers, dispatch, and the result space. It blocks until
// every pool goroutine has exited.
func (p *Pool) Close() {
	if p == nil {
		return
	}

	log.Println("Closing pool")

	// Cancel context first to stop all operations
	if p.cancel != nil {
		p.cancel()
	}

	// Wait for all goroutines to finish before closing channels
	p.wg.Wait()

	p.workerMu.Lock()
	for _, worker := range p.workerList {
		close(worker.jobs)
	}
	p.workerList = nil
	p.workerMu.Unlock()

	close(p.jobs)
	close(p.workers)

	p.space.Close()

	log.Println("Pool closed")
}
