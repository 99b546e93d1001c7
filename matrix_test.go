package qlite

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMatrixOps(t *testing.T) {
	x := MatrixOf(0, 1, 1, 0)
	z := MatrixOf(1, 0, 0, -1)

	Convey("Mul should compose operators", t, func() {
		// XZ = [[0,-1],[1,0]]
		xz := x.Mul(z)
		So(xz.At(0, 1), ShouldEqual, complex(-1, 0))
		So(xz.At(1, 0), ShouldEqual, complex(1, 0))
	})

	Convey("Dagger should conjugate and transpose", t, func() {
		s := MatrixOf(1, 0, 0, complex(0, 1))
		sd := s.Dagger()
		So(sd.At(1, 1), ShouldEqual, complex(0, -1))
		So(s.Mul(sd).EqualsApprox(IdentityMatrix(2), 1e-12), ShouldBeTrue)
	})

	Convey("Conj should not transpose", t, func() {
		m := MatrixOf(0, complex(0, 1), complex(0, 2), 0)
		mc := m.Conj()
		So(mc.At(0, 1), ShouldEqual, complex(0, -1))
		So(mc.At(1, 0), ShouldEqual, complex(0, -2))
	})

	Convey("Kron should put the left factor on the high bit", t, func() {
		// X ⊗ I flips the high-order qubit of a two-qubit basis.
		xi := x.Kron(IdentityMatrix(2))
		So(xi.Dim, ShouldEqual, 4)
		So(xi.At(0, 2), ShouldEqual, complex(1, 0))
		So(xi.At(1, 3), ShouldEqual, complex(1, 0))
		So(xi.At(0, 1), ShouldEqual, complex(0, 0))
	})

	Convey("Scale should multiply every entry", t, func() {
		half := IdentityMatrix(2).Scale(complex(0.5, 0))
		So(half.At(0, 0), ShouldEqual, complex(0.5, 0))
		So(half.IsUnitary(1e-12), ShouldBeFalse)
	})

	Convey("EqualsApprox should respect dimension and tolerance", t, func() {
		So(x.EqualsApprox(IdentityMatrix(4), 1e-12), ShouldBeFalse)
		near := MatrixOf(0, 1, complex(1+1e-13, 0), 0)
		So(x.EqualsApprox(near, 1e-12), ShouldBeTrue)
		So(x.EqualsApprox(near, 1e-14), ShouldBeFalse)
	})

	Convey("MatrixOf should reject non-square literals", t, func() {
		So(func() { MatrixOf(1, 2, 3) }, ShouldPanic)
	})
}
