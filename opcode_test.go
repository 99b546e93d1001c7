package qlite

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestOpcodeBuilders(t *testing.T) {
	Convey("Given the opcode builder chain", t, func() {
		Convey("NewOpcode should leave the classical slot unset", func() {
			op := NewOpcode("CNOT", 0, 1)
			So(op.Gate, ShouldEqual, "CNOT")
			So(op.Qubits, ShouldResemble, []int{0, 1})
			So(op.CBit, ShouldEqual, -1)
			So(op.IsMeasure(), ShouldBeFalse)
		})

		Convey("NewMeasure should bind qubit to slot", func() {
			op := NewMeasure(2, 1)
			So(op.IsMeasure(), ShouldBeTrue)
			So(op.Qubits, ShouldResemble, []int{2})
			So(op.CBit, ShouldEqual, 1)
		})

		Convey("WithControls should not touch the original", func() {
			base := NewOpcode("X", 0).WithControls(1)
			wider := base.WithControls(3, 2)

			So(base.SortedControls(), ShouldResemble, []int{1})
			So(wider.SortedControls(), ShouldResemble, []int{1, 2, 3})
		})

		Convey("SortedControls should never return nil", func() {
			So(NewOpcode("X", 0).SortedControls(), ShouldResemble, []int{})
		})

		Convey("WithAdjoint should toggle", func() {
			op := NewOpcode("S", 0).WithAdjoint()
			So(op.Adjoint, ShouldBeTrue)
			So(op.WithAdjoint().Adjoint, ShouldBeFalse)
		})
	})
}

func TestOpcodeString(t *testing.T) {
	Convey("Opcodes should render in circuit-text style", t, func() {
		So(NewOpcode("H", 0).String(), ShouldEqual, "H q[0]")
		So(NewOpcode("CNOT", 0, 1).String(), ShouldEqual, "CNOT q[0],q[1]")
		So(NewMeasure(1, 2).String(), ShouldEqual, "MEASURE q[1],c[2]")
		So(Opcode{}.String(), ShouldEqual, "NOP")

		full := NewOpcode("RZ", 1).WithParams(math.Pi/2).WithControls(0).WithAdjoint()
		So(full.String(), ShouldEqual, "RZ q[1],(1.5707963267948966) controlled q[0] dagger")
	})
}
