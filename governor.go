package qlite

import (
	"runtime"
	"sync"
	"time"
)

/*
MemoryGovernor implements the Regulator interface to keep simulation state
within a heap budget.

State size grows exponentially with circuit width: a statevector holds 2^n
amplitudes and a density matrix 4^n entries, 16 bytes each. The governor
watches the live heap against a configured budget and asks the pool to
stop admitting jobs once the budget is spent, before an allocation fails.

Key features:
  - Heap usage monitoring
  - Budget-based admission limiting
  - Per-backend state size estimation
*/
type MemoryGovernor struct {
	mu sync.RWMutex

	budgetBytes   uint64        // Heap budget; 0 disables limiting
	checkInterval time.Duration // Minimum time between heap readings
	metrics       *Metrics
	lastCheck     time.Time

	currentHeap uint64
	limited     bool
}

/*
NewMemoryGovernor creates a governor with a heap budget in bytes.

Parameters:
  - budgetBytes: Heap budget; 0 disables limiting
  - checkInterval: Minimum time between heap readings

Returns:
  - *MemoryGovernor: A new governor instance
*/
func NewMemoryGovernor(budgetBytes uint64, checkInterval time.Duration) *MemoryGovernor {
	return &MemoryGovernor{
		budgetBytes:   budgetBytes,
		checkInterval: checkInterval,
	}
}

/*
Observe implements the Regulator interface by refreshing the heap reading.

Parameters:
  - metrics: Current pool metrics
*/
func (mg *MemoryGovernor) Observe(metrics *Metrics) {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	mg.metrics = metrics
	mg.refresh()
}

/*
Limit implements the Regulator interface. Returns true while the heap
budget is spent.
*/
func (mg *MemoryGovernor) Limit() bool {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	return mg.limited
}

/*
Renormalize implements the Regulator interface by re-reading the heap, so
a freed budget lifts the limit.
*/
func (mg *MemoryGovernor) Renormalize() {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	mg.refresh()
}

func (mg *MemoryGovernor) refresh() {
	if mg.budgetBytes == 0 {
		mg.limited = false
		return
	}
	if !mg.lastCheck.IsZero() && time.Since(mg.lastCheck) < mg.checkInterval {
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	mg.currentHeap = memStats.HeapAlloc
	mg.limited = mg.currentHeap >= mg.budgetBytes
	mg.lastCheck = time.Now()
}

// HeapUsage returns the last observed heap size and the budget.
func (mg *MemoryGovernor) HeapUsage() (heap, budget uint64) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	return mg.currentHeap, mg.budgetBytes
}

// StateBytes estimates the state allocation for a circuit of the given
// width on a backend.
func StateBytes(backend BackendType, nqubits int) uint64 {
	const ampBytes = 16
	dim := uint64(1) << uint(nqubits)
	if backend == BackendDensity {
		return ampBytes * dim * dim
	}
	return ampBytes * dim
}
