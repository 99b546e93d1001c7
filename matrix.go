// matrix.go
package qlite

import (
	"math/cmplx"
)

// Matrix is a dense square complex matrix in row-major order. Gate builders
// produce 2x2, 4x4 or 8x8 unitaries; the density backend uses the same type
// at dimension 2^n.
type Matrix struct {
	Dim  int
	Data []complex128
}

func NewMatrix(dim int) Matrix {
	return Matrix{Dim: dim, Data: make([]complex128, dim*dim)}
}

// IdentityMatrix returns the dim x dim identity.
func IdentityMatrix(dim int) Matrix {
	m := NewMatrix(dim)
	for i := 0; i < dim; i++ {
		m.Data[i*dim+i] = 1
	}
	return m
}

// MatrixOf builds a matrix from row-major literal values. It panics if the
// value count is not a perfect square; builders only call it with literals.
func MatrixOf(values ...complex128) Matrix {
	dim := 1
	for dim*dim < len(values) {
		dim++
	}
	if dim*dim != len(values) {
		panic("matrix literal is not square")
	}
	return Matrix{Dim: dim, Data: values}
}

func (m Matrix) At(r, c int) complex128 {
	return m.Data[r*m.Dim+c]
}

func (m Matrix) Set(r, c int, v complex128) {
	m.Data[r*m.Dim+c] = v
}

// Mul returns the matrix product m * other.
func (m Matrix) Mul(other Matrix) Matrix {
	out := NewMatrix(m.Dim)
	for r := 0; r < m.Dim; r++ {
		for c := 0; c < m.Dim; c++ {
			var sum complex128
			for k := 0; k < m.Dim; k++ {
				sum += m.At(r, k) * other.At(k, c)
			}
			out.Set(r, c, sum)
		}
	}
	return out
}

// Dagger returns the conjugate transpose.
func (m Matrix) Dagger() Matrix {
	out := NewMatrix(m.Dim)
	for r := 0; r < m.Dim; r++ {
		for c := 0; c < m.Dim; c++ {
			out.Set(c, r, cmplx.Conj(m.At(r, c)))
		}
	}
	return out
}

// Conj returns the elementwise conjugate (no transpose).
func (m Matrix) Conj() Matrix {
	out := NewMatrix(m.Dim)
	for i, v := range m.Data {
		out.Data[i] = cmplx.Conj(v)
	}
	return out
}

// Kron returns the Kronecker product m ⊗ other, with m indexing the
// high-order part. For two-qubit composites the left factor acts on the
// first operand.
func (m Matrix) Kron(other Matrix) Matrix {
	dim := m.Dim * other.Dim
	out := NewMatrix(dim)
	for r1 := 0; r1 < m.Dim; r1++ {
		for c1 := 0; c1 < m.Dim; c1++ {
			for r2 := 0; r2 < other.Dim; r2++ {
				for c2 := 0; c2 < other.Dim; c2++ {
					out.Set(r1*other.Dim+r2, c1*other.Dim+c2, m.At(r1, c1)*other.At(r2, c2))
				}
			}
		}
	}
	return out
}

// Scale returns the matrix multiplied by a scalar.
func (m Matrix) Scale(s complex128) Matrix {
	out := NewMatrix(m.Dim)
	for i, v := range m.Data {
		out.Data[i] = s * v
	}
	return out
}

// EqualsApprox reports elementwise equality within tol.
func (m Matrix) EqualsApprox(other Matrix, tol float64) bool {
	if m.Dim != other.Dim {
		return false
	}
	for i := range m.Data {
		if cmplx.Abs(m.Data[i]-other.Data[i]) > tol {
			return false
		}
	}
	return true
}

// IsUnitary reports whether m * m† equals identity within tol.
func (m Matrix) IsUnitary(tol float64) bool {
	return m.Mul(m.Dagger()).EqualsApprox(IdentityMatrix(m.Dim), tol)
}
