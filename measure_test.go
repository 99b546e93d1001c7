package qlite

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMarginal(t *testing.T) {
	// Bell distribution over two qubits.
	bell := []float64{0.5, 0, 0, 0.5}

	Convey("Given a two-qubit distribution", t, func() {
		Convey("A single-qubit marginal should sum the partner out", func() {
			m, err := Marginal(bell, 2, []int{0})
			So(err, ShouldBeNil)
			So(m[0], ShouldAlmostEqual, 0.5, 1e-12)
			So(m[1], ShouldAlmostEqual, 0.5, 1e-12)
		})

		Convey("The first listed qubit should map to the low bit", func() {
			skewed := []float64{0, 0.25, 0, 0.75}
			m, err := Marginal(skewed, 2, []int{1, 0})
			So(err, ShouldBeNil)

			// Marginal bit 0 is qubit 1, bit 1 is qubit 0.
			So(m[2], ShouldAlmostEqual, 0.25, 1e-12)
			So(m[3], ShouldAlmostEqual, 0.75, 1e-12)
		})

		Convey("Bad arguments should report dimension errors", func() {
			_, err := Marginal(bell, 3, []int{0})
			So(errors.Is(err, ErrDimension), ShouldBeTrue)

			_, err = Marginal(bell, 2, nil)
			So(errors.Is(err, ErrDimension), ShouldBeTrue)

			_, err = Marginal(bell, 2, []int{2})
			So(errors.Is(err, ErrDimension), ShouldBeTrue)

			_, err = Marginal(bell, 2, []int{0, 0})
			So(errors.Is(err, ErrDimension), ShouldBeTrue)
		})
	})
}

func TestFormatBitstring(t *testing.T) {
	Convey("Slot 0 should render rightmost", t, func() {
		So(formatBitstring(0, 3), ShouldEqual, "000")
		So(formatBitstring(1, 3), ShouldEqual, "001")
		So(formatBitstring(4, 3), ShouldEqual, "100")
		So(formatBitstring(5, 3), ShouldEqual, "101")
	})
}

func TestSampleShots(t *testing.T) {
	Convey("Given a deterministic distribution", t, func() {
		probs := []float64{0, 1}

		Convey("Every shot should land on the same bitstring", func() {
			counts, err := SampleShots(probs, 1, []int{0}, 250, nil)
			So(err, ShouldBeNil)
			So(counts["1"], ShouldEqual, 250)
			So(counts.Total(), ShouldEqual, 250)
		})

		Convey("A certain readout flip should invert the record", func() {
			nm, err := NewNoiseModel(nil, nil, [][2]float64{{0, 1}})
			So(err, ShouldBeNil)

			counts, err := SampleShots(probs, 1, []int{0}, 100, nm)
			So(err, ShouldBeNil)
			So(counts["0"], ShouldEqual, 100)
		})

		Convey("A certain 0-to-1 flip should set idle qubits", func() {
			nm, err := NewNoiseModel(nil, nil, [][2]float64{{1, 0}})
			So(err, ShouldBeNil)

			counts, err := SampleShots([]float64{1, 0}, 1, []int{0}, 100, nm)
			So(err, ShouldBeNil)
			So(counts["1"], ShouldEqual, 100)
		})
	})

	Convey("Given a seeded stream", t, func() {
		SeedRNG(42)
		first, err := SampleShots([]float64{0.5, 0, 0, 0.5}, 2, []int{0, 1}, 500, nil)
		So(err, ShouldBeNil)

		SeedRNG(42)
		second, err := SampleShots([]float64{0.5, 0, 0, 0.5}, 2, []int{0, 1}, 500, nil)
		So(err, ShouldBeNil)

		Convey("Repeating the seed should repeat the counts", func() {
			So(second, ShouldResemble, first)
			So(first["00"]+first["11"], ShouldEqual, 500)
		})
	})

	Convey("Negative shot counts should error", t, func() {
		_, err := SampleShots([]float64{0, 1}, 1, []int{0}, -1, nil)
		So(errors.Is(err, ErrDimension), ShouldBeTrue)
	})

	Convey("Zero shots should yield empty counts", t, func() {
		counts, err := SampleShots([]float64{0, 1}, 1, []int{0}, 0, nil)
		So(err, ShouldBeNil)
		So(counts.Total(), ShouldEqual, 0)
	})
}

func TestGetProb(t *testing.T) {
	Convey("Given a Bell distribution", t, func() {
		bell := []float64{0.5, 0, 0, 0.5}

		Convey("Each qubit should read 1 half the time", func() {
			for q := 0; q < 2; q++ {
				p, err := GetProb(bell, 2, q, 1)
				So(err, ShouldBeNil)
				So(p, ShouldAlmostEqual, 0.5, 1e-12)
			}
		})

		Convey("Values other than 0 and 1 should error", func() {
			_, err := GetProb(bell, 2, 0, 2)
			So(errors.Is(err, ErrDimension), ShouldBeTrue)
		})

		Convey("Out-of-range qubits should error", func() {
			_, err := GetProb(bell, 2, 5, 0)
			So(errors.Is(err, ErrDimension), ShouldBeTrue)
		})
	})
}

func TestCheckDistribution(t *testing.T) {
	Convey("Distribution checks should respect the tolerance", t, func() {
		So(checkDistribution([]float64{0.5, 0.5}, 1e-9), ShouldBeNil)
		So(checkDistribution([]float64{0.6, 0.5}, 1e-9), ShouldNotBeNil)
		So(checkDistribution([]float64{0.5, 0.5 + 1e-12}, 1e-9), ShouldBeNil)
	})
}
