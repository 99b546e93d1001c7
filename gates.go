// gates.go
package qlite

import (
	"math"
)

// gateSpec describes one catalog entry: how many qubit operands the gate
// takes, how many real parameters, and how to build its base unitary over
// the 2^Arity-dimensional operand subspace. The first operand indexes the
// high-order bit of the local basis.
type gateSpec struct {
	Arity  int
	Params int
	Build  func(p []float64) Matrix
}

// noOpNames are opcode markers with no state effect: explicit identity,
// circuit initialization, classical-register declaration, barriers, and an
// absent operation.
var noOpNames = map[string]bool{
	"I":       true,
	"QINIT":   true,
	"CREG":    true,
	"BARRIER": true,
	"":        true,
}

// IsNoOp reports whether name is a recognized no-op marker.
func IsNoOp(name string) bool { return noOpNames[name] }

// CanonicalGateName maps accepted gate-name aliases onto catalog names.
// Noise descriptors in the wild key Hadamard as HADAMARD.
func CanonicalGateName(name string) string {
	if name == "HADAMARD" {
		return "H"
	}
	return name
}

// LookupGate resolves a catalog name. The catalog is the single source of
// truth for gate semantics; nothing outside this file special-cases a gate
// name.
func LookupGate(name string) (gateSpec, bool) {
	spec, ok := gateCatalog[CanonicalGateName(name)]
	return spec, ok
}

func expi(x float64) complex128 {
	return complex(math.Cos(x), math.Sin(x))
}

var invSqrt2 = complex(1/math.Sqrt2, 0)

var gateCatalog = map[string]gateSpec{
	"H": {1, 0, func(p []float64) Matrix {
		return MatrixOf(invSqrt2, invSqrt2, invSqrt2, -invSqrt2)
	}},
	"X": {1, 0, func(p []float64) Matrix {
		return MatrixOf(0, 1, 1, 0)
	}},
	"Y": {1, 0, func(p []float64) Matrix {
		return MatrixOf(0, -1i, 1i, 0)
	}},
	"Z": {1, 0, func(p []float64) Matrix {
		return MatrixOf(1, 0, 0, -1)
	}},
	"S": {1, 0, func(p []float64) Matrix {
		return MatrixOf(1, 0, 0, 1i)
	}},
	"T": {1, 0, func(p []float64) Matrix {
		return MatrixOf(1, 0, 0, expi(math.Pi/4))
	}},
	"SX": {1, 0, func(p []float64) Matrix {
		return MatrixOf(0.5+0.5i, 0.5-0.5i, 0.5-0.5i, 0.5+0.5i)
	}},
	"RX": {1, 1, func(p []float64) Matrix {
		c, s := cosSinHalf(p[0])
		return MatrixOf(c, -1i*s, -1i*s, c)
	}},
	"RY": {1, 1, func(p []float64) Matrix {
		c, s := cosSinHalf(p[0])
		return MatrixOf(c, -s, s, c)
	}},
	"RZ": {1, 1, func(p []float64) Matrix {
		return MatrixOf(expi(-p[0]/2), 0, 0, expi(p[0]/2))
	}},
	"U1": {1, 1, func(p []float64) Matrix {
		return MatrixOf(1, 0, 0, expi(p[0]))
	}},
	"U2": {1, 2, func(p []float64) Matrix {
		phi, lam := p[0], p[1]
		return MatrixOf(
			invSqrt2, -invSqrt2*expi(lam),
			invSqrt2*expi(phi), invSqrt2*expi(phi+lam),
		)
	}},
	"U3":      {1, 3, buildU3},
	"RPhi":    {1, 2, func(p []float64) Matrix { return buildRPhi(p[0], p[1]) }},
	"RPhi90":  {1, 2, func(p []float64) Matrix { return buildRPhi(math.Pi/2, p[0]) }},
	"RPhi180": {1, 2, func(p []float64) Matrix { return buildRPhi(math.Pi, p[0]) }},

	"CZ": {2, 0, func(p []float64) Matrix {
		return MatrixOf(
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, -1,
		)
	}},
	"SWAP": {2, 0, func(p []float64) Matrix {
		return MatrixOf(
			1, 0, 0, 0,
			0, 0, 1, 0,
			0, 1, 0, 0,
			0, 0, 0, 1,
		)
	}},
	"ISWAP": {2, 0, func(p []float64) Matrix {
		return MatrixOf(
			1, 0, 0, 0,
			0, 0, 1i, 0,
			0, 1i, 0, 0,
			0, 0, 0, 1,
		)
	}},
	// XY is the fixed theta=pi/2 member of the XY-interaction family,
	// exp(-i(pi/4)(XX+YY)): the ISWAP inverse.
	"XY": {2, 0, func(p []float64) Matrix {
		return MatrixOf(
			1, 0, 0, 0,
			0, 0, -1i, 0,
			0, -1i, 0, 0,
			0, 0, 0, 1,
		)
	}},
	// First operand is the control, second the target.
	"CNOT": {2, 0, func(p []float64) Matrix {
		return MatrixOf(
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 0, 1,
			0, 0, 1, 0,
		)
	}},
	"XX": {2, 1, func(p []float64) Matrix { return buildXX(p[0]) }},
	"YY": {2, 1, func(p []float64) Matrix { return buildYY(p[0]) }},
	"ZZ": {2, 1, func(p []float64) Matrix { return buildZZ(p[0]) }},
	// Independent U1 phases on each operand plus a joint ZZ phase.
	"PHASE2Q": {2, 3, func(p []float64) Matrix {
		t1, t2, tzz := p[0], p[1], p[2]
		return MatrixOf(
			1, 0, 0, 0,
			0, expi(t2), 0, 0,
			0, 0, expi(t1), 0,
			0, 0, 0, expi(t1+t2+tzz),
		)
	}},
	"UU15": {2, 15, buildUU15},

	// Operands: (control1, control2, target).
	"TOFFOLI": {3, 0, func(p []float64) Matrix {
		m := IdentityMatrix(8)
		m.Set(6, 6, 0)
		m.Set(7, 7, 0)
		m.Set(6, 7, 1)
		m.Set(7, 6, 1)
		return m
	}},
	// Operands: (control, target1, target2).
	"CSWAP": {3, 0, func(p []float64) Matrix {
		m := IdentityMatrix(8)
		m.Set(5, 5, 0)
		m.Set(6, 6, 0)
		m.Set(5, 6, 1)
		m.Set(6, 5, 1)
		return m
	}},
}

func cosSinHalf(theta float64) (complex128, complex128) {
	return complex(math.Cos(theta/2), 0), complex(math.Sin(theta/2), 0)
}

func buildU3(p []float64) Matrix {
	theta, phi, lam := p[0], p[1], p[2]
	c, s := cosSinHalf(theta)
	return MatrixOf(
		c, -expi(lam)*s,
		expi(phi)*s, expi(phi+lam)*c,
	)
}

// buildRPhi rotates by theta about the axis (cos phi, sin phi, 0) in the
// XY plane. RPhi90 and RPhi180 fix theta and keep a reserved second
// parameter slot for call-shape compatibility.
func buildRPhi(theta, phi float64) Matrix {
	c, s := cosSinHalf(theta)
	return MatrixOf(
		c, -1i*expi(-phi)*s,
		-1i*expi(phi)*s, c,
	)
}

func buildXX(theta float64) Matrix {
	c, s := cosSinHalf(theta)
	return MatrixOf(
		c, 0, 0, -1i*s,
		0, c, -1i*s, 0,
		0, -1i*s, c, 0,
		-1i*s, 0, 0, c,
	)
}

func buildYY(theta float64) Matrix {
	c, s := cosSinHalf(theta)
	return MatrixOf(
		c, 0, 0, 1i*s,
		0, c, -1i*s, 0,
		0, -1i*s, c, 0,
		1i*s, 0, 0, c,
	)
}

func buildZZ(theta float64) Matrix {
	return MatrixOf(
		expi(-theta/2), 0, 0, 0,
		0, expi(theta/2), 0, 0,
		0, 0, expi(theta/2), 0,
		0, 0, 0, expi(-theta/2),
	)
}

// buildUU15 composes an arbitrary two-qubit unitary in Cartan form: local
// U3 rotations on both operands, the commuting XX/YY/ZZ interaction core,
// then local U3 rotations again. 15 real parameters cover SU(4) up to
// global phase.
func buildUU15(p []float64) Matrix {
	pre := buildU3(p[0:3]).Kron(buildU3(p[3:6]))
	core := buildXX(p[6]).Mul(buildYY(p[7])).Mul(buildZZ(p[8]))
	post := buildU3(p[9:12]).Kron(buildU3(p[12:15]))
	return post.Mul(core).Mul(pre)
}
