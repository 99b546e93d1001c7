// measure.go
package qlite

import (
	"fmt"
)

// Counts aggregates sampled measurement outcomes keyed by classical
// bitstring. Slot 0 is the rightmost character, so a one-qubit circuit in
// |1> samples to {"1": shots}.
type Counts map[string]uint64

// Total returns the number of shots the counts aggregate.
func (c Counts) Total() uint64 {
	total := uint64(0)
	for _, n := range c {
		total += n
	}
	return total
}

// Marginal sums a full 2^n probability vector down to the marginal over
// the listed qubits. Bit j of a marginal index holds the value of
// targets[j], so the first listed qubit is the least-significant bit.
func Marginal(probs []float64, n int, targets []int) ([]float64, error) {
	if len(probs) != 1<<n {
		return nil, dimErrorf("probability vector length %d does not match %d qubits", len(probs), n)
	}
	if len(targets) == 0 {
		return nil, dimErrorf("no measurement targets")
	}
	seen := 0
	for _, q := range targets {
		if q < 0 || q >= n {
			return nil, dimErrorf("measurement qubit %d out of range [0,%d)", q, n)
		}
		if seen&(1<<q) != 0 {
			return nil, dimErrorf("measurement qubit %d repeated", q)
		}
		seen |= 1 << q
	}

	out := make([]float64, 1<<len(targets))
	for idx, p := range probs {
		out[slotIndex(idx, targets)] += p
	}
	return out, nil
}

// slotIndex compresses a full basis index down to the marginal index over
// the listed qubits.
func slotIndex(idx int, targets []int) int {
	s := 0
	for j, q := range targets {
		s |= ((idx >> q) & 1) << j
	}
	return s
}

// sampleIndex walks the cumulative distribution and returns the basis
// index the variate r lands in. Rounding leftovers fall into the last
// bucket.
func sampleIndex(probs []float64, r float64) int {
	acc := 0.0
	for i, p := range probs {
		acc += p
		if r < acc {
			return i
		}
	}
	return len(probs) - 1
}

// formatBitstring renders a marginal index as a classical bitstring of the
// given width, slot 0 rightmost.
func formatBitstring(idx, width int) string {
	b := make([]byte, width)
	for j := 0; j < width; j++ {
		if (idx>>j)&1 == 1 {
			b[width-1-j] = '1'
		} else {
			b[width-1-j] = '0'
		}
	}
	return string(b)
}

// SampleShots draws shots independent samples from the marginal over
// targets and flips each sampled bit per the readout-error pairs of the
// noise model. Every shot consumes exactly 1+len(targets) variates from
// the shared stream, so runs repeat exactly under SeedRNG regardless of
// outcomes.
func SampleShots(probs []float64, n int, targets []int, shots int, nm *NoiseModel) (Counts, error) {
	if shots < 0 {
		return nil, dimErrorf("negative shot count %d", shots)
	}
	marginal, err := Marginal(probs, n, targets)
	if err != nil {
		return nil, err
	}

	width := len(targets)
	counts := make(Counts)
	for s := 0; s < shots; s++ {
		rs := randBlock(1 + width)
		idx := sampleIndex(marginal, rs[0])
		for j, q := range targets {
			p01, p10 := nm.ReadoutFor(q)
			if (idx>>j)&1 == 1 {
				if rs[1+j] < p10 {
					idx &^= 1 << j
				}
			} else if rs[1+j] < p01 {
				idx |= 1 << j
			}
		}
		counts[formatBitstring(idx, width)]++
	}
	return counts, nil
}

// GetProb returns the probability that the given qubit reads the given
// classical value (0 or 1) under the full distribution probs.
func GetProb(probs []float64, n, qubit, value int) (float64, error) {
	if value != 0 && value != 1 {
		return 0, dimErrorf("measured value must be 0 or 1, got %d", value)
	}
	marginal, err := Marginal(probs, n, []int{qubit})
	if err != nil {
		return 0, err
	}
	return marginal[value], nil
}

// checkDistribution verifies probs sums to 1 within tol.
func checkDistribution(probs []float64, tol float64) error {
	total := 0.0
	for _, p := range probs {
		total += p
	}
	if diff := total - 1; diff > tol || diff < -tol {
		return fmt.Errorf("distribution sums to %g, want 1", total)
	}
	return nil
}
