// statevector.go
package qlite

import (
	"math"
	"math/bits"
	"math/cmplx"
)

// StateVector holds a pure n-qubit state as 2^n complex amplitudes. Qubit 0
// indexes the least-significant bit of the basis index, so |q1 q0> = |10>
// lives at index 2. Construct with NewStateVector; the zero value is not
// usable.
type StateVector struct {
	nqubits int
	amps    []complex128
}

// NewStateVector allocates the |0...0> state on n qubits.
func NewStateVector(n int) (*StateVector, error) {
	if n < 1 || n > MaxQubits {
		return nil, dimErrorf("qubit count %d outside [1,%d]", n, MaxQubits)
	}
	sv := &StateVector{
		nqubits: n,
		amps:    make([]complex128, 1<<n),
	}
	sv.amps[0] = 1
	return sv, nil
}

// NQubits returns the qubit count.
func (sv *StateVector) NQubits() int { return sv.nqubits }

// Amplitudes returns a copy of the amplitude vector.
func (sv *StateVector) Amplitudes() []complex128 {
	out := make([]complex128, len(sv.amps))
	copy(out, sv.amps)
	return out
}

// Probabilities returns |amplitude|^2 per basis state.
func (sv *StateVector) Probabilities() []float64 {
	probs := make([]float64, len(sv.amps))
	for i, amplitude := range sv.amps {
		prob := cmplx.Abs(amplitude)
		prob *= prob
		probs[i] = prob
	}
	return probs
}

// Norm returns the Euclidean norm of the amplitude vector; 1 for any state
// reached through unitary opcodes.
func (sv *StateVector) Norm() float64 {
	total := 0.0
	for _, amplitude := range sv.amps {
		prob := cmplx.Abs(amplitude)
		total += prob * prob
	}
	return math.Sqrt(total)
}

// Reset returns the state to |0...0> in place.
func (sv *StateVector) Reset() {
	for i := range sv.amps {
		sv.amps[i] = 0
	}
	sv.amps[0] = 1
}

// targetOffsets lays out a local k-qubit basis inside the global index
// space. offs[l] is the offset of local basis state l from a base index
// whose target bits are all 0; the first target maps to the high-order
// local bit. tmask has the target bits set.
func targetOffsets(targets []int) (offs []int, tmask int) {
	k := len(targets)
	strides := make([]int, k)
	for j, q := range targets {
		strides[k-1-j] = 1 << q
		tmask |= 1 << q
	}
	offs = make([]int, 1<<k)
	for l := 1; l < 1<<k; l++ {
		low := bits.TrailingZeros(uint(l))
		offs[l] = offs[l&(l-1)] + strides[low]
	}
	return offs, tmask
}

func controlMask(controls []int) int {
	mask := 0
	for _, q := range controls {
		mask |= 1 << q
	}
	return mask
}

// Apply multiplies the amplitudes of the target qubits by m, restricted to
// basis states where every control qubit is 1. The first target indexes the
// high-order bit of m's local basis. Targets and controls must be disjoint
// and in range; Opcode.Validate enforces that upstream.
func (sv *StateVector) Apply(m Matrix, targets, controls []int) error {
	if m.Dim != 1<<len(targets) {
		return dimErrorf("matrix dim %d does not fit %d target(s)", m.Dim, len(targets))
	}

	offs, tmask := targetOffsets(targets)
	cmask := controlMask(controls)

	scratch := make([]complex128, len(offs))
	for base := range sv.amps {
		if base&tmask != 0 || base&cmask != cmask {
			continue
		}

		// Gather the 2^k amplitudes of this group, multiply, scatter back.
		for l, off := range offs {
			scratch[l] = sv.amps[base+off]
		}
		for r := 0; r < m.Dim; r++ {
			row := m.Data[r*m.Dim : (r+1)*m.Dim]
			acc := complex(0, 0)
			for c, v := range scratch {
				acc += row[c] * v
			}
			sv.amps[base+offs[r]] = acc
		}
	}
	return nil
}
