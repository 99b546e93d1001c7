// config.go
package qlite

import "time"

// MaxQubits is the hard ceiling on circuit width. 2^30 amplitudes is the
// largest statevector the engine will allocate.
const MaxQubits = 30

// Config carries engine and pool construction options. The zero value is
// not useful; start from NewConfig and override fields.
type Config struct {
	// Backend is a backend alias, resolved case-insensitively at engine
	// construction ("statevector", "density_matrix", ...).
	Backend string

	// NoiseDescription is the circuit-global channel descriptor, channel
	// name to probability. Density backend only.
	NoiseDescription map[string]float64

	// GateNoiseDescription overrides NoiseDescription for specific gates.
	GateNoiseDescription map[string]map[string]float64

	// MeasurementError lists one (p01, p10) readout pair per qubit.
	MeasurementError [][2]float64

	// Seed reseeds the shared sampling stream at engine construction when
	// non-zero. Zero leaves the stream alone.
	Seed uint64

	// MaxQubits lowers the qubit ceiling below the package default.
	MaxQubits int

	// SchedulingTimeout bounds how long a batch job waits for a worker.
	SchedulingTimeout time.Duration

	// JobTimeout bounds how long a worker waits on one job's evaluation
	// before abandoning it and taking the next. Zero means 30s.
	JobTimeout time.Duration

	// MemoryBudget caps the heap the pool may fill with simulation state,
	// in bytes. Zero disables the governor.
	MemoryBudget uint64
}

func NewConfig() *Config {
	return &Config{
		Backend:           string(BackendStatevector),
		MaxQubits:         MaxQubits,
		SchedulingTimeout: 10 * time.Second,
	}
}
