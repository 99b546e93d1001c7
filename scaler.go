package qlite

import (
	"log"
	"math"
	"sync"
	"time"
)

// ScalerConfig tunes how the pool follows its queue load.
type ScalerConfig struct {
	TargetLoad         float64       // Target queued jobs per worker
	ScaleUpThreshold   float64       // Load above this adds workers
	ScaleDownThreshold float64       // Load below this removes workers
	Cooldown           time.Duration // Minimum time between scaling operations
}

// Scaler grows and shrinks a pool's worker set between its bounds. It
// implements Regulator: the pool feeds it metrics snapshots through
// Observe and each snapshot may trigger one scaling step.
type Scaler struct {
	mu sync.Mutex

	pool               *Pool
	minWorkers         int
	maxWorkers         int
	targetLoad         float64
	scaleUpThreshold   float64
	scaleDownThreshold float64
	cooldown           time.Duration
	lastScale          time.Time
	metrics            *Metrics
}

func NewScaler(pool *Pool, minWorkers, maxWorkers int, config *ScalerConfig) *Scaler {
	return &Scaler{
		pool:               pool,
		minWorkers:         minWorkers,
		maxWorkers:         maxWorkers,
		targetLoad:         config.TargetLoad,
		scaleUpThreshold:   config.ScaleUpThreshold,
		scaleDownThreshold: config.ScaleDownThreshold,
		cooldown:           config.Cooldown,
		lastScale:          time.Now(),
	}
}

// Observe implements Regulator.
func (s *Scaler) Observe(metrics *Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = metrics
	s.evaluate()
}

// Limit implements Regulator. It reports saturation: the pool is at its
// worker ceiling and still over the scale-up load.
func (s *Scaler) Limit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.metrics == nil {
		return false
	}

	workers, queued := s.metrics.poolLoad()
	if workers >= s.maxWorkers && workers > 0 {
		return float64(queued)/float64(workers) > s.scaleUpThreshold
	}
	return false
}

// Renormalize implements Regulator by retrying a scale once the cooldown
// has passed.
func (s *Scaler) Renormalize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastScale) >= s.cooldown {
		s.evaluate()
	}
}

func (s *Scaler) evaluate() {
	if s.metrics == nil || time.Since(s.lastScale) < s.cooldown {
		return
	}

	workers, queued := s.metrics.poolLoad()
	if workers == 0 {
		workers = 1
	}
	currentLoad := float64(queued) / float64(workers)

	switch {
	case currentLoad > s.scaleUpThreshold && workers < s.maxWorkers:
		needed := int(math.Ceil(float64(queued) / s.targetLoad))
		toAdd := min(needed-workers, s.maxWorkers-workers)
		if toAdd > 0 {
			s.scaleUp(toAdd)
			s.lastScale = time.Now()
		}

	case currentLoad < s.scaleDownThreshold && workers > s.minWorkers:
		needed := max(int(math.Ceil(float64(queued)/s.targetLoad)), s.minWorkers)
		toRemove := min(workers-needed, workers-s.minWorkers)
		if toRemove > 0 {
			s.scaleDown(toRemove)
			s.lastScale = time.Now()
		}
	}
}

func (s *Scaler) scaleUp(count int) {
	s.pool.addWorkers(count)
	log.Printf("Scaled up %d workers", count)
}

func (s *Scaler) scaleDown(count int) {
	s.pool.removeWorkers(count)
	log.Printf("Scaled down %d workers", count)
}
