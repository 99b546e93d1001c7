package qlite

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func bellOps() []Opcode {
	return []Opcode{
		NewOpcode("H", 0),
		NewOpcode("CNOT", 0, 1),
	}
}

func TestNewEngine(t *testing.T) {
	Convey("Given engine construction", t, func() {
		Convey("A nil config should yield statevector defaults", func() {
			engine, err := NewEngine(nil)
			So(err, ShouldBeNil)
			So(engine.Backend(), ShouldEqual, BackendStatevector)
			So(engine.NQubits(), ShouldEqual, 0)
		})

		Convey("Backend aliases should resolve case-insensitively", func() {
			for alias, want := range map[string]BackendType{
				"Statevector":     BackendStatevector,
				"state_vector":    BackendStatevector,
				"Density_Matrix":  BackendDensity,
				"densityoperator": BackendDensity,
			} {
				engine, err := NewEngine(&Config{Backend: alias})
				So(err, ShouldBeNil)
				So(engine.Backend(), ShouldEqual, want)
			}
		})

		Convey("Unknown backends should be rejected", func() {
			_, err := NewEngine(&Config{Backend: "tensor_network"})
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		})

		Convey("Noise channels on the statevector backend should be rejected", func() {
			_, err := NewEngine(&Config{
				Backend:          string(BackendStatevector),
				NoiseDescription: map[string]float64{ChannelDepolarizing: 0.01},
			})
			So(errors.Is(err, ErrUnsupportedBackend), ShouldBeTrue)

			var ube *UnsupportedBackendError
			So(errors.As(err, &ube), ShouldBeTrue)
			So(ube.Backend, ShouldEqual, BackendStatevector)
		})

		Convey("Readout error alone should be fine on the statevector backend", func() {
			_, err := NewEngine(&Config{
				Backend:          string(BackendStatevector),
				MeasurementError: [][2]float64{{0.01, 0.02}},
			})
			So(err, ShouldBeNil)
		})

		Convey("Invalid noise descriptions should be rejected", func() {
			_, err := NewEngine(&Config{
				Backend:          string(BackendDensity),
				NoiseDescription: map[string]float64{"cosmic": 0.5},
			})
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		})
	})
}

func TestEngineRun(t *testing.T) {
	Convey("Given a statevector engine", t, func() {
		engine, err := NewEngine(nil)
		So(err, ShouldBeNil)

		Convey("A Bell circuit should split between 00 and 11", func() {
			probs, err := engine.SimulateStateprob(2, bellOps())
			So(err, ShouldBeNil)
			So(len(probs), ShouldEqual, 4)
			So(probs[0], ShouldAlmostEqual, 0.5, 1e-12)
			So(probs[3], ShouldAlmostEqual, 0.5, 1e-12)
			So(engine.NQubits(), ShouldEqual, 2)
		})

		Convey("An empty circuit should leave the ground state", func() {
			probs, err := engine.SimulateStateprob(1, nil)
			So(err, ShouldBeNil)
			So(probs[0], ShouldAlmostEqual, 1.0, 1e-12)
		})

		Convey("An unknown gate should fail the run", func() {
			err := engine.Run(1, []Opcode{NewOpcode("WARP", 0)})
			So(errors.Is(err, ErrUnknownOpcode), ShouldBeTrue)

			var uoe *UnknownOpcodeError
			So(errors.As(err, &uoe), ShouldBeTrue)
			So(uoe.Op.Gate, ShouldEqual, "WARP")

			Convey("And later extraction should fail until the next run", func() {
				_, err := engine.Stateprob()
				So(errors.Is(err, ErrConfiguration), ShouldBeTrue)

				So(engine.Run(1, []Opcode{NewOpcode("X", 0)}), ShouldBeNil)
				probs, err := engine.Stateprob()
				So(err, ShouldBeNil)
				So(probs[1], ShouldAlmostEqual, 1.0, 1e-12)
			})
		})

		Convey("Extraction before any run should fail", func() {
			_, err := engine.Stateprob()
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)

			_, err = engine.MeasureShots(nil, 10)
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		})

		Convey("Out-of-range operands should fail validation", func() {
			err := engine.Run(2, []Opcode{NewOpcode("CNOT", 0, 2)})
			So(errors.Is(err, ErrDimension), ShouldBeTrue)

			err = engine.Run(2, []Opcode{NewOpcode("CNOT", 1, 1)})
			So(errors.Is(err, ErrDimension), ShouldBeTrue)

			err = engine.Run(2, []Opcode{NewOpcode("RX", 0)})
			So(errors.Is(err, ErrDimension), ShouldBeTrue)
		})

		Convey("Gate and run metrics should accumulate", func() {
			So(engine.Run(2, bellOps()), ShouldBeNil)

			metrics := engine.Metrics()
			So(metrics.RunCount, ShouldEqual, 1)
			So(metrics.GateCounts["H"], ShouldEqual, 1)
			So(metrics.GateCounts["CNOT"], ShouldEqual, 1)
		})
	})

	Convey("Given a lowered qubit ceiling", t, func() {
		engine, err := NewEngine(&Config{MaxQubits: 4})
		So(err, ShouldBeNil)

		So(engine.Run(4, nil), ShouldBeNil)
		So(errors.Is(engine.Run(5, nil), ErrDimension), ShouldBeTrue)

		Convey("And the package ceiling should cap oversize requests", func() {
			wide, err := NewEngine(&Config{MaxQubits: 100})
			So(err, ShouldBeNil)
			So(errors.Is(wide.Run(MaxQubits+1, nil), ErrDimension), ShouldBeTrue)
		})
	})
}

func TestEngineAdjointAndControls(t *testing.T) {
	Convey("Given phase-sensitive circuits", t, func() {
		engine, err := NewEngine(nil)
		So(err, ShouldBeNil)

		Convey("An adjoint S should rotate the phase the other way", func() {
			amps, err := engine.SimulateStatevector(1, []Opcode{
				NewOpcode("X", 0),
				NewOpcode("S", 0).WithAdjoint(),
			})
			So(err, ShouldBeNil)
			So(real(amps[1]), ShouldAlmostEqual, 0.0, 1e-12)
			So(imag(amps[1]), ShouldAlmostEqual, -1.0, 1e-12)
		})

		Convey("Toggling the adjoint twice should cancel", func() {
			amps, err := engine.SimulateStatevector(1, []Opcode{
				NewOpcode("X", 0),
				NewOpcode("S", 0).WithAdjoint().WithAdjoint(),
			})
			So(err, ShouldBeNil)
			So(imag(amps[1]), ShouldAlmostEqual, 1.0, 1e-12)
		})

		Convey("Extra controls should gate the unitary", func() {
			probs, err := engine.SimulateStateprob(2, []Opcode{
				NewOpcode("X", 0),
				NewOpcode("X", 1).WithControls(0),
			})
			So(err, ShouldBeNil)
			So(probs[3], ShouldAlmostEqual, 1.0, 1e-12)

			probs, err = engine.SimulateStateprob(2, []Opcode{
				NewOpcode("X", 1).WithControls(0),
			})
			So(err, ShouldBeNil)
			So(probs[0], ShouldAlmostEqual, 1.0, 1e-12)
		})

		Convey("Controls overlapping the operands should fail", func() {
			err := engine.Run(2, []Opcode{NewOpcode("X", 0).WithControls(0)})
			So(errors.Is(err, ErrDimension), ShouldBeTrue)
		})
	})
}

func TestEngineMeasureShots(t *testing.T) {
	Convey("Given a circuit with recorded measurements", t, func() {
		engine, err := NewEngine(nil)
		So(err, ShouldBeNil)

		Convey("Nil targets should follow the MEASURE mappings", func() {
			So(engine.Run(2, []Opcode{
				NewOpcode("X", 1),
				NewMeasure(0, 0),
				NewMeasure(1, 1),
			}), ShouldBeNil)

			counts, err := engine.MeasureShots(nil, 100)
			So(err, ShouldBeNil)
			So(counts["10"], ShouldEqual, 100)
		})

		Convey("Mappings should honor the classical slot order", func() {
			So(engine.Run(2, []Opcode{
				NewOpcode("X", 1),
				NewMeasure(1, 0),
				NewMeasure(0, 1),
			}), ShouldBeNil)

			counts, err := engine.MeasureShots(nil, 100)
			So(err, ShouldBeNil)
			So(counts["01"], ShouldEqual, 100)
		})

		Convey("No mappings should measure every qubit in order", func() {
			So(engine.Run(2, []Opcode{NewOpcode("X", 1)}), ShouldBeNil)

			counts, err := engine.MeasureShots(nil, 50)
			So(err, ShouldBeNil)
			So(counts["10"], ShouldEqual, 50)
		})

		Convey("Explicit targets should override the record", func() {
			So(engine.Run(2, []Opcode{
				NewOpcode("X", 1),
				NewMeasure(0, 0),
			}), ShouldBeNil)

			counts, err := engine.MeasureShots([]int{1}, 50)
			So(err, ShouldBeNil)
			So(counts["1"], ShouldEqual, 50)
		})

		Convey("A classical slot measured twice should fail", func() {
			So(engine.Run(2, []Opcode{
				NewMeasure(0, 0),
				NewMeasure(1, 0),
			}), ShouldBeNil)

			_, err := engine.MeasureShots(nil, 10)
			So(errors.Is(err, ErrDimension), ShouldBeTrue)
		})

		Convey("Shot totals should land in the metrics", func() {
			So(engine.Run(1, []Opcode{NewOpcode("H", 0)}), ShouldBeNil)
			_, err := engine.MeasureShots([]int{0}, 75)
			So(err, ShouldBeNil)
			So(engine.Metrics().ShotCount, ShouldEqual, 75)
		})
	})

	Convey("Given a seeded engine", t, func() {
		run := func() Counts {
			engine, err := NewEngine(&Config{Seed: 7})
			So(err, ShouldBeNil)
			So(engine.Run(2, bellOps()), ShouldBeNil)
			counts, err := engine.MeasureShots([]int{0, 1}, 400)
			So(err, ShouldBeNil)
			return counts
		}

		Convey("The same seed should reproduce the counts exactly", func() {
			first := run()
			second := run()
			So(second, ShouldResemble, first)
			So(first["00"]+first["11"], ShouldEqual, 400)
		})
	})
}

func TestEngineDensityBackend(t *testing.T) {
	Convey("Given a density engine", t, func() {
		engine, err := NewEngine(&Config{Backend: "density_matrix"})
		So(err, ShouldBeNil)
		So(engine.Backend(), ShouldEqual, BackendDensity)

		Convey("Pure circuits should match the statevector distribution", func() {
			probs, err := engine.SimulateStateprob(2, bellOps())
			So(err, ShouldBeNil)
			So(probs[0], ShouldAlmostEqual, 0.5, 1e-12)
			So(probs[3], ShouldAlmostEqual, 0.5, 1e-12)

			dm, err := engine.Density()
			So(err, ShouldBeNil)
			So(dm.Trace(), ShouldAlmostEqual, 1.0, 1e-12)
		})

		Convey("Amplitude extraction should be refused", func() {
			So(engine.Run(1, nil), ShouldBeNil)
			_, err := engine.Amplitudes()
			So(errors.Is(err, ErrUnsupportedBackend), ShouldBeTrue)

			_, err = engine.SimulateStatevector(1, nil)
			So(errors.Is(err, ErrUnsupportedBackend), ShouldBeTrue)
		})
	})

	Convey("Given a statevector engine", t, func() {
		engine, err := NewEngine(nil)
		So(err, ShouldBeNil)
		So(engine.Run(1, nil), ShouldBeNil)

		Convey("Density extraction should be refused", func() {
			_, err := engine.Density()
			So(errors.Is(err, ErrUnsupportedBackend), ShouldBeTrue)
		})
	})

	Convey("Given full depolarizing noise", t, func() {
		engine, err := NewEngine(&Config{
			Backend:          "density_matrix",
			NoiseDescription: map[string]float64{ChannelDepolarizing: 1.0},
		})
		So(err, ShouldBeNil)

		Convey("A Bell circuit should decay to the uniform mixture", func() {
			probs, err := engine.SimulateStateprob(2, bellOps())
			So(err, ShouldBeNil)
			for _, p := range probs {
				So(p, ShouldAlmostEqual, 0.25, 1e-12)
			}
		})
	})

	Convey("Given readout error on the statevector backend", t, func() {
		engine, err := NewEngine(&Config{
			MeasurementError: [][2]float64{{0, 1}},
		})
		So(err, ShouldBeNil)
		So(engine.Run(1, []Opcode{NewOpcode("X", 0)}), ShouldBeNil)

		Convey("Sampled bits should flip even though the state is pure", func() {
			counts, err := engine.MeasureShots([]int{0}, 80)
			So(err, ShouldBeNil)
			So(counts["0"], ShouldEqual, 80)
		})
	})

	Convey("Given readout error narrower than the circuit", t, func() {
		engine, err := NewEngine(&Config{
			MeasurementError: [][2]float64{{0.5, 0.5}},
		})
		So(err, ShouldBeNil)

		Convey("The run should fail instead of sampling the uncovered qubit noise-free", func() {
			err := engine.Run(2, []Opcode{NewOpcode("X", 0)})
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)

			_, err = engine.MeasureShots([]int{0, 1}, 10)
			So(err, ShouldNotBeNil)
		})

		Convey("A matching width should still run", func() {
			So(engine.Run(1, []Opcode{NewOpcode("X", 0)}), ShouldBeNil)
		})
	})
}

func TestEngineExtraction(t *testing.T) {
	Convey("Given a run engine", t, func() {
		engine, err := NewEngine(nil)
		So(err, ShouldBeNil)
		So(engine.Run(2, []Opcode{NewOpcode("X", 1)}), ShouldBeNil)

		Convey("GetProb should read single-qubit marginals", func() {
			p, err := engine.GetProb(1, 1)
			So(err, ShouldBeNil)
			So(p, ShouldAlmostEqual, 1.0, 1e-12)

			p, err = engine.GetProb(0, 1)
			So(err, ShouldBeNil)
			So(p, ShouldAlmostEqual, 0.0, 1e-12)
		})

		Convey("MeasureSingleShot should draw a full basis index", func() {
			idx, err := engine.MeasureSingleShot()
			So(err, ShouldBeNil)
			So(idx, ShouldEqual, 2)
		})

		Convey("SimulatePmeasure should marginalize in one call", func() {
			m, err := engine.SimulatePmeasure(2, []Opcode{NewOpcode("X", 1)}, []int{1})
			So(err, ShouldBeNil)
			So(m[1], ShouldAlmostEqual, 1.0, 1e-12)
		})
	})
}
