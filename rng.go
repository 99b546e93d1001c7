// rng.go
package qlite

import (
	"math/rand/v2"
	"sync"
)

// The sampling stream is process-scoped so that a single seed makes every
// engine in the process reproducible. All draws go through the mutex; the
// PCG source is not safe for concurrent use on its own.
var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
)

// SeedRNG reseeds the shared sampling stream. After a call with the same
// seed, sampling sequences repeat exactly.
func SeedRNG(seed uint64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng = rand.New(rand.NewPCG(seed, seed))
}

// randFloat64 draws one uniform variate from [0,1).
func randFloat64() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Float64()
}

// randBlock draws n uniform variates under one lock acquisition. Shot
// sampling burns through variates quickly; batching keeps the mutex cheap.
func randBlock(n int) []float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()
	}
	return out
}
