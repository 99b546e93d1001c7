// engine.go
package qlite

import (
	"sort"
	"time"
)

/*
Engine evaluates opcode sequences against one mutable quantum state and
serves measurement products from the result. The backend chosen at
construction decides the representation: a pure statevector, or a density
matrix when mixed states and noise channels are needed.

An Engine is stateful: each Simulate* call initializes a fresh state for
the requested qubit count, applies every opcode in order, and leaves the
final state in place for MeasureShots, GetProb, and the other extraction
methods. It is not safe for concurrent use; give each goroutine its own
Engine (the batch Pool does exactly that).

Example:
    engine, err := qlite.NewEngine(qlite.NewConfig())
    if err != nil {
        log.Fatal(err)
    }
    probs, err := engine.SimulateStateprob(2, []qlite.Opcode{
        qlite.NewOpcode("H", 0),
        qlite.NewOpcode("CNOT", 0, 1),
    })
    // probs is [0.5, 0, 0, 0.5]
    counts, err := engine.MeasureShots([]int{0, 1}, 1000)
*/
type Engine struct {
	backend   BackendType
	noise     *NoiseModel
	maxQubits int
	metrics   *Metrics

	nqubits  int
	sv       *StateVector
	dm       *DensityMatrix
	measured []Opcode
	valid    bool
}

/*
NewEngine builds an engine from a configuration.

The backend alias is resolved case-insensitively; the noise description is
validated against the channel set; a non-zero Seed reseeds the shared
sampling stream. Configuring noise channels together with the statevector
backend fails with an UnsupportedBackendError, because channels produce
mixed states a pure vector cannot hold.

Parameters:
  - config: engine options, nil for defaults

Returns:
  - *Engine: the ready engine
  - error: ConfigurationError or UnsupportedBackendError
*/
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = NewConfig()
	}
	backend, err := ResolveBackend(config.Backend)
	if err != nil {
		return nil, err
	}
	noise, err := NewNoiseModel(config.NoiseDescription, config.GateNoiseDescription, config.MeasurementError)
	if err != nil {
		return nil, err
	}
	if backend == BackendStatevector && noise.HasChannels() {
		return nil, &UnsupportedBackendError{Backend: backend, Op: "noise simulation"}
	}

	maxQubits := config.MaxQubits
	if maxQubits <= 0 || maxQubits > MaxQubits {
		maxQubits = MaxQubits
	}
	if config.Seed != 0 {
		SeedRNG(config.Seed)
	}

	return &Engine{
		backend:   backend,
		noise:     noise,
		maxQubits: maxQubits,
		metrics:   NewMetrics(),
	}, nil
}

// Backend returns the representation the engine evolves.
func (e *Engine) Backend() BackendType { return e.backend }

// Metrics returns the engine's counters.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// NQubits returns the width of the last run circuit, 0 before any run.
func (e *Engine) NQubits() int { return e.nqubits }

// Run initializes a fresh n-qubit state and applies the opcodes in order.
// On error the state is undefined and later extractions fail until the
// next successful run.
func (e *Engine) Run(n int, ops []Opcode) error {
	if n < 1 || n > e.maxQubits {
		return dimErrorf("qubit count %d outside [1,%d]", n, e.maxQubits)
	}
	if rows := len(e.noise.Readout); rows != 0 && rows != n {
		return configErrorf("readout error lists %d qubit pair(s), circuit has %d qubit(s)", rows, n)
	}

	start := time.Now()
	e.valid = false
	e.measured = e.measured[:0]
	e.nqubits = n

	switch e.backend {
	case BackendStatevector:
		sv, err := NewStateVector(n)
		if err != nil {
			return err
		}
		e.sv, e.dm = sv, nil
	case BackendDensity:
		dm, err := NewDensityMatrix(n)
		if err != nil {
			return err
		}
		e.dm, e.sv = dm, nil
	}

	for _, op := range ops {
		if err := e.step(op); err != nil {
			return err
		}
	}

	e.valid = true
	e.metrics.RecordRun(start)
	return nil
}

// step validates and applies a single opcode.
func (e *Engine) step(op Opcode) error {
	if err := op.Validate(e.nqubits); err != nil {
		return err
	}
	if IsNoOp(op.Gate) {
		return nil
	}
	if op.IsMeasure() {
		e.measured = append(e.measured, op)
		return nil
	}

	spec, _ := LookupGate(op.Gate)
	m := spec.Build(op.Params)
	if op.Adjoint {
		m = m.Dagger()
	}

	if err := e.state().Apply(m, op.Qubits, op.SortedControls()); err != nil {
		return err
	}
	if e.backend == BackendDensity {
		if err := e.noise.ApplyAfterGate(e.dm, op.Gate, op.Qubits); err != nil {
			return err
		}
	}
	e.metrics.RecordGate(CanonicalGateName(op.Gate))
	return nil
}

func (e *Engine) state() State {
	if e.sv != nil {
		return e.sv
	}
	if e.dm != nil {
		return e.dm
	}
	return nil
}

func (e *Engine) requireResult() error {
	if !e.valid || e.state() == nil {
		return configErrorf("no circuit result available; run a circuit first")
	}
	return nil
}

// SimulateStatevector runs the circuit and returns the final amplitudes.
// Fails on the density backend, where no pure vector exists to extract.
func (e *Engine) SimulateStatevector(n int, ops []Opcode) ([]complex128, error) {
	if e.backend != BackendStatevector {
		return nil, &UnsupportedBackendError{Backend: e.backend, Op: "statevector extraction"}
	}
	if err := e.Run(n, ops); err != nil {
		return nil, err
	}
	return e.sv.Amplitudes(), nil
}

// SimulateStateprob runs the circuit and returns the full probability
// vector over all n qubits.
func (e *Engine) SimulateStateprob(n int, ops []Opcode) ([]float64, error) {
	if err := e.Run(n, ops); err != nil {
		return nil, err
	}
	return e.state().Probabilities(), nil
}

// SimulatePmeasure runs the circuit and returns the marginal distribution
// over the listed qubits, other qubits summed out. Bit j of a marginal
// index holds targets[j]'s value.
func (e *Engine) SimulatePmeasure(n int, ops []Opcode, targets []int) ([]float64, error) {
	if err := e.Run(n, ops); err != nil {
		return nil, err
	}
	return Marginal(e.state().Probabilities(), e.nqubits, targets)
}

// Stateprob returns the probability vector of the state left by the last
// run.
func (e *Engine) Stateprob() ([]float64, error) {
	if err := e.requireResult(); err != nil {
		return nil, err
	}
	return e.state().Probabilities(), nil
}

// Amplitudes returns the amplitudes of the state left by the last run.
// Statevector backend only.
func (e *Engine) Amplitudes() ([]complex128, error) {
	if e.backend != BackendStatevector {
		return nil, &UnsupportedBackendError{Backend: e.backend, Op: "statevector extraction"}
	}
	if err := e.requireResult(); err != nil {
		return nil, err
	}
	return e.sv.Amplitudes(), nil
}

// Density returns the density matrix left by the last run. Density backend
// only.
func (e *Engine) Density() (*DensityMatrix, error) {
	if e.backend != BackendDensity {
		return nil, &UnsupportedBackendError{Backend: e.backend, Op: "density extraction"}
	}
	if err := e.requireResult(); err != nil {
		return nil, err
	}
	return e.dm, nil
}

// GetProb returns the probability that qubit reads value (0 or 1) in the
// state left by the last run.
func (e *Engine) GetProb(qubit, value int) (float64, error) {
	if err := e.requireResult(); err != nil {
		return 0, err
	}
	return GetProb(e.state().Probabilities(), e.nqubits, qubit, value)
}

// MeasureSingleShot draws one full basis index from the state left by the
// last run. No readout error is applied.
func (e *Engine) MeasureSingleShot() (int, error) {
	if err := e.requireResult(); err != nil {
		return 0, err
	}
	return sampleIndex(e.state().Probabilities(), randFloat64()), nil
}

/*
MeasureShots samples shot outcomes from the state left by the last run.

targets[j] is the qubit measured into classical slot j; slot 0 is the
rightmost character of the returned bitstring keys. A nil targets list
falls back to the MEASURE mappings recorded during the run (ordered by
classical slot), or to every qubit in ascending order when the circuit
recorded none. Readout error configured on the engine is applied to each
sampled bit independently.

Parameters:
  - targets: measured qubits in slot order, nil for the recorded mappings
  - shots: number of independent samples

Returns:
  - Counts: bitstring to occurrence count, summing to shots
  - error: ConfigurationError before any successful run, DimensionError
    for bad targets
*/
func (e *Engine) MeasureShots(targets []int, shots int) (Counts, error) {
	if err := e.requireResult(); err != nil {
		return nil, err
	}
	if targets == nil {
		var err error
		if targets, err = e.recordedTargets(); err != nil {
			return nil, err
		}
	}
	counts, err := SampleShots(e.state().Probabilities(), e.nqubits, targets, shots, e.noise)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordShots(shots)
	return counts, nil
}

// recordedTargets orders the run's MEASURE mappings by classical slot. An
// empty record measures every qubit in ascending order.
func (e *Engine) recordedTargets() ([]int, error) {
	if len(e.measured) == 0 {
		all := make([]int, e.nqubits)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	bySlot := make(map[int]int, len(e.measured))
	slots := make([]int, 0, len(e.measured))
	for _, op := range e.measured {
		if _, dup := bySlot[op.CBit]; dup {
			return nil, dimErrorf("classical slot %d measured twice", op.CBit)
		}
		bySlot[op.CBit] = op.Qubits[0]
		slots = append(slots, op.CBit)
	}
	sort.Ints(slots)

	targets := make([]int, len(slots))
	for j, slot := range slots {
		targets[j] = bySlot[slot]
	}
	return targets, nil
}
