package qlite

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseOriginIR(t *testing.T) {
	Convey("Given a Bell circuit", t, func() {
		prog, err := ParseOriginIR(`QINIT 2
CREG 2
H q[0]
CNOT q[0],q[1]
MEASURE q[0],c[0]
MEASURE q[1],c[1]`)
		So(err, ShouldBeNil)

		Convey("Headers and statements should parse", func() {
			So(prog.NQubits, ShouldEqual, 2)
			So(prog.NCBits, ShouldEqual, 2)
			So(len(prog.Opcodes), ShouldEqual, 4)

			So(prog.Opcodes[0].Gate, ShouldEqual, "H")
			So(prog.Opcodes[1].Qubits, ShouldResemble, []int{0, 1})
			So(prog.Opcodes[2].IsMeasure(), ShouldBeTrue)
			So(prog.Opcodes[2].CBit, ShouldEqual, 0)
			So(prog.Opcodes[3].Qubits, ShouldResemble, []int{1})
		})
	})

	Convey("Given parametric statements", t, func() {
		prog, err := ParseOriginIR(`QINIT 1
RX q[0],(1.5708)
U3 q[0],(0.1, 0.2, 0.3)`)
		So(err, ShouldBeNil)

		So(prog.Opcodes[0].Params, ShouldResemble, []float64{1.5708})
		So(prog.Opcodes[1].Params, ShouldResemble, []float64{0.1, 0.2, 0.3})
	})

	Convey("Given block statements", t, func() {
		Convey("A DAGGER block should reverse and conjugate", func() {
			prog, err := ParseOriginIR(`QINIT 1
DAGGER
S q[0]
T q[0]
ENDDAGGER`)
			So(err, ShouldBeNil)
			So(len(prog.Opcodes), ShouldEqual, 2)
			So(prog.Opcodes[0].Gate, ShouldEqual, "T")
			So(prog.Opcodes[0].Adjoint, ShouldBeTrue)
			So(prog.Opcodes[1].Gate, ShouldEqual, "S")
		})

		Convey("Nested DAGGER blocks should cancel", func() {
			prog, err := ParseOriginIR(`QINIT 1
DAGGER
DAGGER
S q[0]
ENDDAGGER
ENDDAGGER`)
			So(err, ShouldBeNil)
			So(prog.Opcodes[0].Adjoint, ShouldBeFalse)
		})

		Convey("A CONTROL block should add its qubits to every statement", func() {
			prog, err := ParseOriginIR(`QINIT 3
CONTROL q[2]
X q[0]
X q[1]
ENDCONTROL`)
			So(err, ShouldBeNil)
			So(len(prog.Opcodes), ShouldEqual, 2)
			So(prog.Opcodes[0].SortedControls(), ShouldResemble, []int{2})
			So(prog.Opcodes[1].SortedControls(), ShouldResemble, []int{2})
		})

		Convey("Nested CONTROL blocks should accumulate", func() {
			prog, err := ParseOriginIR(`QINIT 3
CONTROL q[2]
CONTROL q[1]
X q[0]
ENDCONTROL
ENDCONTROL`)
			So(err, ShouldBeNil)
			So(prog.Opcodes[0].SortedControls(), ShouldResemble, []int{1, 2})
		})
	})

	Convey("Given malformed circuits", t, func() {
		cases := map[string]string{
			"missing QINIT":         "H q[0]",
			"unterminated block":    "QINIT 1\nDAGGER\nS q[0]",
			"MEASURE inside block":  "QINIT 1\nCREG 1\nDAGGER\nMEASURE q[0],c[0]\nENDDAGGER",
			"late header":           "QINIT 1\nH q[0]\nCREG 1",
			"double QINIT":          "QINIT 1\nQINIT 2",
			"bad width":             "QINIT goose",
			"bad parameter":         "QINIT 1\nRX q[0],(fast)",
			"stray ENDDAGGER":       "QINIT 1\nENDDAGGER",
			"stray ENDCONTROL":      "QINIT 1\nENDCONTROL",
			"CONTROL without qubit": "QINIT 1\nCONTROL\nX q[0]\nENDCONTROL",
			"gate without qubits":   "QINIT 1\nH",
		}

		for label, text := range cases {
			_, err := ParseOriginIR(text)
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrParse), ShouldBeTrue)
			So(label, ShouldNotBeEmpty)
		}

		Convey("Parse errors should carry the line number", func() {
			_, err := ParseOriginIR("QINIT 1\nRX q[0],(fast)")
			var pe *ParseError
			So(errors.As(err, &pe), ShouldBeTrue)
			So(pe.Line, ShouldEqual, 2)
		})
	})

	Convey("Given an unknown gate name", t, func() {
		Convey("Parsing should succeed and evaluation should fail", func() {
			prog, err := ParseOriginIR("QINIT 1\nWARP q[0]")
			So(err, ShouldBeNil)
			So(prog.Opcodes[0].Gate, ShouldEqual, "WARP")

			engine, err := NewEngine(nil)
			So(err, ShouldBeNil)
			So(errors.Is(engine.Run(1, prog.Opcodes), ErrUnknownOpcode), ShouldBeTrue)
		})
	})
}

func TestRunOriginIR(t *testing.T) {
	Convey("Given an engine", t, func() {
		engine, err := NewEngine(nil)
		So(err, ShouldBeNil)

		Convey("A full circuit should run and sample", func() {
			prog, err := engine.RunOriginIR(`QINIT 2
CREG 2
H q[0]
CNOT q[0],q[1]
MEASURE q[0],c[0]
MEASURE q[1],c[1]`)
			So(err, ShouldBeNil)
			So(prog.NQubits, ShouldEqual, 2)

			counts, err := engine.MeasureShots(nil, 300)
			So(err, ShouldBeNil)
			So(counts["00"]+counts["11"], ShouldEqual, 300)
		})

		Convey("HADAMARD should evaluate through the alias", func() {
			_, err := engine.RunOriginIR("QINIT 1\nHADAMARD q[0]")
			So(err, ShouldBeNil)

			p, err := engine.GetProb(0, 1)
			So(err, ShouldBeNil)
			So(p, ShouldAlmostEqual, 0.5, 1e-12)
		})

		Convey("A DAGGER block should undo its forward pass", func() {
			_, err := engine.RunOriginIR(`QINIT 1
H q[0]
RZ q[0],(0.7)
DAGGER
H q[0]
RZ q[0],(0.7)
ENDDAGGER`)
			So(err, ShouldBeNil)

			probs, err := engine.Stateprob()
			So(err, ShouldBeNil)
			So(probs[0], ShouldAlmostEqual, 1.0, 1e-9)
		})

		Convey("A circuit with no qubits should be rejected", func() {
			_, err := engine.RunOriginIR("QINIT 0\nCREG 1")
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		})

		Convey("BARRIER statements should be inert", func() {
			_, err := engine.RunOriginIR(`QINIT 2
X q[0]
BARRIER q[0],q[1]
X q[1]`)
			So(err, ShouldBeNil)

			probs, err := engine.Stateprob()
			So(err, ShouldBeNil)
			So(probs[3], ShouldAlmostEqual, 1.0, 1e-12)
		})

		Convey("RX through text should match the builder form", func() {
			theta := math.Pi / 3
			_, err := engine.RunOriginIR("QINIT 1\nRX q[0],(1.0471975511965976)")
			So(err, ShouldBeNil)
			fromText, err := engine.Stateprob()
			So(err, ShouldBeNil)

			direct, err := engine.SimulateStateprob(1, []Opcode{
				NewOpcode("RX", 0).WithParams(theta),
			})
			So(err, ShouldBeNil)

			So(fromText[0], ShouldAlmostEqual, direct[0], 1e-12)
			So(fromText[1], ShouldAlmostEqual, direct[1], 1e-12)
		})
	})
}
