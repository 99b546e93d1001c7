// density.go
package qlite

/*
DensityMatrix holds a mixed n-qubit state as a 2^n by 2^n complex matrix in
row-major order. The same basis convention as StateVector applies: qubit 0
indexes the least-significant bit of a row or column index.

Two invariants hold between operations: trace 1 and Hermitian
positive-semidefiniteness. Unitary application and the channel methods
preserve both.

Thread-safe: no. A DensityMatrix belongs to one circuit evaluation at a
time.
*/
type DensityMatrix struct {
	nqubits int
	dim     int
	data    []complex128
}

// NewDensityMatrix allocates |0...0><0...0| on n qubits.
func NewDensityMatrix(n int) (*DensityMatrix, error) {
	if n < 1 || n > MaxQubits {
		return nil, dimErrorf("qubit count %d outside [1,%d]", n, MaxQubits)
	}
	dm := &DensityMatrix{
		nqubits: n,
		dim:     1 << n,
	}
	dm.data = make([]complex128, dm.dim*dm.dim)
	dm.data[0] = 1
	return dm, nil
}

// NQubits returns the qubit count.
func (dm *DensityMatrix) NQubits() int { return dm.nqubits }

// Dim returns the matrix dimension 2^n.
func (dm *DensityMatrix) Dim() int { return dm.dim }

// At returns the matrix element at row r, column c.
func (dm *DensityMatrix) At(r, c int) complex128 {
	return dm.data[r*dm.dim+c]
}

// Probabilities returns the diagonal of the matrix as real probabilities.
func (dm *DensityMatrix) Probabilities() []float64 {
	probs := make([]float64, dm.dim)
	for i := range probs {
		probs[i] = real(dm.data[i*dm.dim+i])
	}
	return probs
}

// Trace returns the real trace; 1 for a valid state.
func (dm *DensityMatrix) Trace() float64 {
	total := 0.0
	for i := 0; i < dm.dim; i++ {
		total += real(dm.data[i*dm.dim+i])
	}
	return total
}

// Reset returns the state to |0...0><0...0| in place.
func (dm *DensityMatrix) Reset() {
	for i := range dm.data {
		dm.data[i] = 0
	}
	dm.data[0] = 1
}

// Apply conjugates the state by the unitary m on the target qubits,
// restricted to basis states where every control qubit is 1. The update is
// rho -> U rho U-dagger, done as a row pass with m and a column pass with
// the elementwise conjugate of m.
func (dm *DensityMatrix) Apply(m Matrix, targets, controls []int) error {
	if m.Dim != 1<<len(targets) {
		return dimErrorf("matrix dim %d does not fit %d target(s)", m.Dim, len(targets))
	}
	offs, tmask := targetOffsets(targets)
	cmask := controlMask(controls)
	dm.applyRows(dm.data, m, offs, tmask, cmask)
	dm.applyCols(dm.data, m.Conj(), offs, tmask, cmask)
	return nil
}

// applyRows left-multiplies buf by the controlled embedding of m, walking
// the row index with the same gather/scatter scheme as the statevector
// kernel, once per column.
func (dm *DensityMatrix) applyRows(buf []complex128, m Matrix, offs []int, tmask, cmask int) {
	scratch := make([]complex128, len(offs))
	for base := 0; base < dm.dim; base++ {
		if base&tmask != 0 || base&cmask != cmask {
			continue
		}
		for col := 0; col < dm.dim; col++ {
			for l, off := range offs {
				scratch[l] = buf[(base+off)*dm.dim+col]
			}
			for r := 0; r < m.Dim; r++ {
				row := m.Data[r*m.Dim : (r+1)*m.Dim]
				acc := complex(0, 0)
				for c, v := range scratch {
					acc += row[c] * v
				}
				buf[(base+offs[r])*dm.dim+col] = acc
			}
		}
	}
}

// applyCols right-multiplies buf by the dagger of the embedded unitary.
// Right-multiplying by U-dagger is the same as applying conj(U) along the
// column index of each row, so mc must already be the conjugated matrix.
func (dm *DensityMatrix) applyCols(buf []complex128, mc Matrix, offs []int, tmask, cmask int) {
	scratch := make([]complex128, len(offs))
	for base := 0; base < dm.dim; base++ {
		if base&tmask != 0 || base&cmask != cmask {
			continue
		}
		for row := 0; row < dm.dim; row++ {
			rowOff := row * dm.dim
			for l, off := range offs {
				scratch[l] = buf[rowOff+base+off]
			}
			for r := 0; r < mc.Dim; r++ {
				mrow := mc.Data[r*mc.Dim : (r+1)*mc.Dim]
				acc := complex(0, 0)
				for c, v := range scratch {
					acc += mrow[c] * v
				}
				buf[rowOff+base+offs[r]] = acc
			}
		}
	}
}

// ApplyKraus replaces the state with the channel output sum over the given
// Kraus operators, rho -> sum_i K_i rho K_i-dagger, acting on the target
// qubits. The operators must satisfy sum_i K_i-dagger K_i = I for the
// trace to be preserved.
func (dm *DensityMatrix) ApplyKraus(ops []Matrix, targets []int) error {
	for _, kmat := range ops {
		if kmat.Dim != 1<<len(targets) {
			return dimErrorf("Kraus dim %d does not fit %d target(s)", kmat.Dim, len(targets))
		}
	}
	offs, tmask := targetOffsets(targets)

	out := make([]complex128, len(dm.data))
	work := make([]complex128, len(dm.data))
	for _, kmat := range ops {
		copy(work, dm.data)
		dm.applyRows(work, kmat, offs, tmask, 0)
		dm.applyCols(work, kmat.Conj(), offs, tmask, 0)
		for i, v := range work {
			out[i] += v
		}
	}
	dm.data = out
	return nil
}

// Depolarize mixes the state toward the maximally mixed state on the
// target qubits: rho -> (1-p) rho + p (I/d tensor Tr_T rho), where d = 2^k
// and Tr_T traces out the targets. The non-target qubits keep their
// reduced state exactly.
func (dm *DensityMatrix) Depolarize(targets []int, p float64) error {
	if p < 0 || p > 1 {
		return configErrorf("depolarizing probability %g outside [0,1]", p)
	}
	if p == 0 {
		return nil
	}
	offs, tmask := targetOffsets(targets)
	d := len(offs)

	bases := make([]int, 0, dm.dim/d)
	for b := 0; b < dm.dim; b++ {
		if b&tmask == 0 {
			bases = append(bases, b)
		}
	}

	// Tr_T rho, indexed by (base row, base column) pairs. Computed before
	// scaling so the mix uses the pre-channel reduced state.
	sigma := make([]complex128, len(bases)*len(bases))
	for i, br := range bases {
		for j, bc := range bases {
			tr := complex(0, 0)
			for _, off := range offs {
				tr += dm.data[(br+off)*dm.dim+bc+off]
			}
			sigma[i*len(bases)+j] = tr
		}
	}

	scale := complex(1-p, 0)
	for i := range dm.data {
		dm.data[i] *= scale
	}

	weight := complex(p/float64(d), 0)
	for i, br := range bases {
		for j, bc := range bases {
			add := sigma[i*len(bases)+j] * weight
			for _, off := range offs {
				dm.data[(br+off)*dm.dim+bc+off] += add
			}
		}
	}
	return nil
}
