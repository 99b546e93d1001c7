// opcode.go
package qlite

import (
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

/*
Opcode is one instruction of a circuit: a gate name from the catalog, the
qubit operands it acts on, optional real parameters, an optional set of
extra control qubits, and an adjoint flag. Opcodes are plain values; build
them with NewOpcode and the With* chain and hand them to an Engine.

Example:
    ops := []qlite.Opcode{
        qlite.NewOpcode("H", 0),
        qlite.NewOpcode("CNOT", 0, 1),
        qlite.NewOpcode("RZ", 1).WithParams(math.Pi / 2).WithControls(0).WithAdjoint(),
    }
*/
type Opcode struct {
	// Gate is the catalog name ("H", "CNOT", ...), a no-op marker, or
	// "MEASURE" for a measurement mapping.
	Gate string

	// Qubits are the gate operands in order. For CNOT the first operand is
	// the control; for TOFFOLI the first two are; for CSWAP the first is.
	Qubits []int

	// CBit is the classical slot a MEASURE writes to, -1 otherwise.
	CBit int

	// Params are the real gate parameters, catalog order.
	Params []float64

	// Controls are additional control qubits beyond the gate's own
	// operands. The gate acts only on basis states where all of them are 1.
	Controls mapset.Set[int]

	// Adjoint applies the conjugate transpose of the gate unitary.
	Adjoint bool
}

// MeasureGate is the opcode name that records a qubit-to-classical-slot
// mapping instead of applying a unitary.
const MeasureGate = "MEASURE"

// NewOpcode builds an opcode for gate acting on qubits.
func NewOpcode(gate string, qubits ...int) Opcode {
	return Opcode{
		Gate:   gate,
		Qubits: qubits,
		CBit:   -1,
	}
}

// NewMeasure builds a measurement mapping from qubit to classical slot cbit.
func NewMeasure(qubit, cbit int) Opcode {
	return Opcode{
		Gate:   MeasureGate,
		Qubits: []int{qubit},
		CBit:   cbit,
	}
}

// WithParams returns a copy of the opcode carrying the given parameters.
func (op Opcode) WithParams(params ...float64) Opcode {
	op.Params = params
	return op
}

// WithControls returns a copy of the opcode with extra control qubits added.
func (op Opcode) WithControls(qubits ...int) Opcode {
	set := mapset.NewSet[int]()
	if op.Controls != nil {
		set = op.Controls.Clone()
	}
	set.Append(qubits...)
	op.Controls = set
	return op
}

// WithAdjoint returns a copy of the opcode with the adjoint flag toggled.
// Toggling rather than setting lets nested dagger blocks cancel.
func (op Opcode) WithAdjoint() Opcode {
	op.Adjoint = !op.Adjoint
	return op
}

// SortedControls returns the control qubits in ascending order, never nil.
func (op Opcode) SortedControls() []int {
	if op.Controls == nil || op.Controls.Cardinality() == 0 {
		return []int{}
	}
	return mapset.Sorted(op.Controls)
}

// IsMeasure reports whether the opcode is a measurement mapping.
func (op Opcode) IsMeasure() bool { return op.Gate == MeasureGate }

// Validate checks the opcode against the catalog and a circuit of n qubits.
// An unrecognized gate name yields an UnknownOpcodeError; operand, control,
// and parameter problems yield a DimensionError.
func (op Opcode) Validate(n int) error {
	if IsNoOp(op.Gate) {
		return nil
	}
	if op.IsMeasure() {
		if len(op.Qubits) != 1 {
			return dimErrorf("MEASURE takes one qubit, got %d", len(op.Qubits))
		}
		if op.Qubits[0] < 0 || op.Qubits[0] >= n {
			return dimErrorf("MEASURE qubit %d out of range [0,%d)", op.Qubits[0], n)
		}
		if op.CBit < 0 {
			return dimErrorf("MEASURE needs a classical slot")
		}
		return nil
	}

	spec, ok := LookupGate(op.Gate)
	if !ok {
		return &UnknownOpcodeError{Op: op}
	}
	if len(op.Qubits) != spec.Arity {
		return dimErrorf("%s takes %d qubit(s), got %d", op.Gate, spec.Arity, len(op.Qubits))
	}
	if len(op.Params) != spec.Params {
		return dimErrorf("%s takes %d parameter(s), got %d", op.Gate, spec.Params, len(op.Params))
	}

	seen := mapset.NewSet[int]()
	for _, q := range op.Qubits {
		if q < 0 || q >= n {
			return dimErrorf("%s qubit %d out of range [0,%d)", op.Gate, q, n)
		}
		if !seen.Add(q) {
			return dimErrorf("%s qubit %d repeated", op.Gate, q)
		}
	}
	for _, q := range op.SortedControls() {
		if q < 0 || q >= n {
			return dimErrorf("%s control qubit %d out of range [0,%d)", op.Gate, q, n)
		}
		if !seen.Add(q) {
			return dimErrorf("%s control qubit %d overlaps an operand", op.Gate, q)
		}
	}
	return nil
}

// String renders the opcode in circuit-text style, e.g.
// "RZ q[1],(1.5708) controlled q[0] dagger".
func (op Opcode) String() string {
	var b strings.Builder
	if op.Gate == "" {
		b.WriteString("NOP")
	} else {
		b.WriteString(op.Gate)
	}
	for i, q := range op.Qubits {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteByte(',')
		}
		b.WriteString("q[")
		b.WriteString(strconv.Itoa(q))
		b.WriteByte(']')
	}
	if op.IsMeasure() && op.CBit >= 0 {
		b.WriteString(",c[")
		b.WriteString(strconv.Itoa(op.CBit))
		b.WriteByte(']')
	}
	if len(op.Params) > 0 {
		b.WriteString(",(")
		for i, p := range op.Params {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(p, 'g', -1, 64))
		}
		b.WriteByte(')')
	}
	if controls := op.SortedControls(); len(controls) > 0 {
		b.WriteString(" controlled")
		for i, q := range controls {
			if i == 0 {
				b.WriteByte(' ')
			} else {
				b.WriteByte(',')
			}
			b.WriteString("q[")
			b.WriteString(strconv.Itoa(q))
			b.WriteByte(']')
		}
	}
	if op.Adjoint {
		b.WriteString(" dagger")
	}
	return b.String()
}
