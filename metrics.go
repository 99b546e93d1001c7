// metrics.go
package qlite

import (
	"sort"
	"sync"
	"time"
)

// Metrics aggregates engine and pool counters. One instance may be shared
// by an Engine, a Pool, and a RateLimiter; all methods are safe for
// concurrent use.
type Metrics struct {
	mu            sync.RWMutex
	WorkerCount   int
	JobQueueSize  int
	ActiveWorkers int
	LastScale     time.Time

	// Engine-side counters.
	GateCounts   map[string]int64
	RunCount     int64
	ShotCount    int64
	TotalRunTime time.Duration

	// Pool-side counters.
	JobCount           int64
	JobSuccessRate     float64
	SchedulingFailures int64
	failedJobs         int64

	AverageRunLatency time.Duration
	P95RunLatency     time.Duration
	P99RunLatency     time.Duration

	// Rate limiting counters, bumped by RateLimiter waits.
	RateLimitHits int64
	ThrottledJobs int64

	latencyWindow []time.Duration
	windowSize    int
}

func NewMetrics() *Metrics {
	return &Metrics{
		GateCounts:    make(map[string]int64),
		latencyWindow: make([]time.Duration, 0, 1000), // Store last 1000 runs
		windowSize:    1000,
	}
}

// RecordGate counts one applied gate by catalog name.
func (m *Metrics) RecordGate(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GateCounts[name]++
}

// RecordRun accounts one circuit evaluation started at startTime.
func (m *Metrics) RecordRun(startTime time.Time) {
	duration := time.Since(startTime)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRunTime += duration
	m.RunCount++
	m.updateLatencyPercentiles(duration)
}

// RecordShots counts sampled shots.
func (m *Metrics) RecordShots(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShotCount += int64(n)
}

// RecordJob accounts one batch job outcome.
func (m *Metrics) RecordJob(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.JobCount++
	if !success {
		m.failedJobs++
	}
	m.JobSuccessRate = float64(m.JobCount-m.failedJobs) / float64(m.JobCount)
}

// RecordThrottle counts one rate-limited wait.
func (m *Metrics) RecordThrottle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RateLimitHits++
	m.ThrottledJobs++
}

// RecordSchedulingFailure counts a job the pool could not enqueue in time.
func (m *Metrics) RecordSchedulingFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SchedulingFailures++
}

func (m *Metrics) poolLoad() (workers, queued int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.WorkerCount, m.JobQueueSize
}

func (m *Metrics) updateLatencyPercentiles(duration time.Duration) {
	if m.RunCount > 0 {
		m.AverageRunLatency = (m.AverageRunLatency*time.Duration(m.RunCount-1) + duration) / time.Duration(m.RunCount)
	}

	m.latencyWindow = append(m.latencyWindow, duration)
	if len(m.latencyWindow) > m.windowSize {
		m.latencyWindow = m.latencyWindow[1:]
	}

	sorted := make([]time.Duration, len(m.latencyWindow))
	copy(sorted, m.latencyWindow)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	if len(sorted) > 0 {
		p95Index := int(float64(len(sorted)) * 0.95)
		p99Index := int(float64(len(sorted)) * 0.99)
		if p95Index >= len(sorted) {
			p95Index = len(sorted) - 1
		}
		if p99Index >= len(sorted) {
			p99Index = len(sorted) - 1
		}
		m.P95RunLatency = sorted[p95Index]
		m.P99RunLatency = sorted[p99Index]
	}
}

// ExportMetrics returns a flat snapshot for logging or scraping.
func (m *Metrics) ExportMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	gates := int64(0)
	for _, n := range m.GateCounts {
		gates += n
	}
	return map[string]interface{}{
		"worker_count":    m.WorkerCount,
		"queue_size":      m.JobQueueSize,
		"run_count":       m.RunCount,
		"gate_count":      gates,
		"shot_count":      m.ShotCount,
		"success_rate":    m.JobSuccessRate,
		"avg_run_latency": m.AverageRunLatency.Milliseconds(),
		"p95_run_latency": m.P95RunLatency.Milliseconds(),
		"p99_run_latency": m.P99RunLatency.Milliseconds(),
		"rate_limit_hits": m.RateLimitHits,
		"sched_failures":  m.SchedulingFailures,
	}
}
