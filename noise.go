// noise.go
package qlite

import (
	"math"
)

// Channel names accepted in noise descriptors.
const (
	ChannelDepolarizing = "depolarizing"
	ChannelDamping      = "damping"
	ChannelBitFlip      = "bitflip"
	ChannelPhaseFlip    = "phaseflip"
)

// channelOrder fixes the application order when one descriptor stacks
// several channels on the same gate.
var channelOrder = []string{
	ChannelDepolarizing,
	ChannelDamping,
	ChannelBitFlip,
	ChannelPhaseFlip,
}

/*
NoiseModel describes the stochastic channels attached to a circuit and the
readout-error model applied at sampling time.

Default is the circuit-global descriptor, a mapping from channel name to
probability, applied after every gate that has no per-gate override.
PerGate maps specific gate names to their own descriptors; an override
replaces the default wholesale rather than merging with it. Readout holds
one (p01, p10) pair per qubit: the probability that a true 0 is read as 1
and a true 1 as 0.

Channels mutate the density representation only. The readout pairs never
touch the state; they act on sampled classical bits in MeasureShots.

Example:
    model, err := qlite.NewNoiseModel(
        map[string]float64{qlite.ChannelDepolarizing: 0.01},
        map[string]map[string]float64{
            "CNOT": {qlite.ChannelDepolarizing: 0.05},
        },
        [][2]float64{{0.01, 0.02}, {0.01, 0.02}},
    )
*/
type NoiseModel struct {
	Default map[string]float64
	PerGate map[string]map[string]float64
	Readout [][2]float64
}

// NewNoiseModel validates and normalizes a noise description. Channel
// names must come from the fixed set, probabilities must lie in [0,1], and
// per-gate keys must name catalog gates (HADAMARD is accepted for H).
// The maps are copied; the caller keeps ownership of its arguments.
func NewNoiseModel(def map[string]float64, perGate map[string]map[string]float64, readout [][2]float64) (*NoiseModel, error) {
	nm := &NoiseModel{
		Default: map[string]float64{},
		PerGate: map[string]map[string]float64{},
	}
	if err := copyDescriptor(nm.Default, def, "default"); err != nil {
		return nil, err
	}
	for gate, desc := range perGate {
		canonical := CanonicalGateName(gate)
		if _, ok := LookupGate(canonical); !ok {
			return nil, configErrorf("noise override for unknown gate %q", gate)
		}
		dst := map[string]float64{}
		if err := copyDescriptor(dst, desc, gate); err != nil {
			return nil, err
		}
		nm.PerGate[canonical] = dst
	}
	for q, pair := range readout {
		if pair[0] < 0 || pair[0] > 1 || pair[1] < 0 || pair[1] > 1 {
			return nil, configErrorf("readout error for qubit %d outside [0,1]: %v", q, pair)
		}
	}
	nm.Readout = append([][2]float64{}, readout...)
	return nm, nil
}

func copyDescriptor(dst, src map[string]float64, scope string) error {
	for name, p := range src {
		if !validChannel(name) {
			return configErrorf("unknown noise channel %q in %s descriptor", name, scope)
		}
		if p < 0 || p > 1 {
			return configErrorf("%s probability %g in %s descriptor outside [0,1]", name, p, scope)
		}
		dst[name] = p
	}
	return nil
}

func validChannel(name string) bool {
	for _, known := range channelOrder {
		if name == known {
			return true
		}
	}
	return false
}

// HasChannels reports whether any gate would pick up a channel. Readout
// error alone does not count; it lives in the sampling layer and works on
// either backend.
func (nm *NoiseModel) HasChannels() bool {
	if nm == nil {
		return false
	}
	if len(nm.Default) > 0 {
		return true
	}
	for _, desc := range nm.PerGate {
		if len(desc) > 0 {
			return true
		}
	}
	return false
}

// ChannelsFor returns the descriptor in effect for a gate: the per-gate
// override when one exists, the circuit default otherwise.
func (nm *NoiseModel) ChannelsFor(gate string) map[string]float64 {
	if nm == nil {
		return nil
	}
	if desc, ok := nm.PerGate[CanonicalGateName(gate)]; ok {
		return desc
	}
	return nm.Default
}

// ApplyAfterGate runs the configured channels for gate over the gate's
// target qubits, in fixed channel order. Depolarizing acts jointly on the
// whole target subspace; the single-qubit channels act independently on
// each target.
func (nm *NoiseModel) ApplyAfterGate(dm *DensityMatrix, gate string, targets []int) error {
	desc := nm.ChannelsFor(gate)
	if len(desc) == 0 {
		return nil
	}
	for _, name := range channelOrder {
		p, ok := desc[name]
		if !ok || p == 0 {
			continue
		}
		switch name {
		case ChannelDepolarizing:
			if err := dm.Depolarize(targets, p); err != nil {
				return err
			}
		case ChannelDamping:
			ops := dampingKraus(p)
			for _, q := range targets {
				if err := dm.ApplyKraus(ops, []int{q}); err != nil {
					return err
				}
			}
		case ChannelBitFlip:
			ops := flipKraus(p, gateCatalog["X"].Build(nil))
			for _, q := range targets {
				if err := dm.ApplyKraus(ops, []int{q}); err != nil {
					return err
				}
			}
		case ChannelPhaseFlip:
			ops := flipKraus(p, gateCatalog["Z"].Build(nil))
			for _, q := range targets {
				if err := dm.ApplyKraus(ops, []int{q}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ReadoutFor returns the (p01, p10) pair for a qubit, (0,0) when none is
// configured.
func (nm *NoiseModel) ReadoutFor(q int) (p01, p10 float64) {
	if nm == nil || q < 0 || q >= len(nm.Readout) {
		return 0, 0
	}
	return nm.Readout[q][0], nm.Readout[q][1]
}

// dampingKraus builds the amplitude-damping operators for decay
// probability gamma: K0 = [[1,0],[0,sqrt(1-gamma)]], K1 = [[0,sqrt(gamma)],[0,0]].
func dampingKraus(gamma float64) []Matrix {
	return []Matrix{
		MatrixOf(1, 0, 0, complex(math.Sqrt(1-gamma), 0)),
		MatrixOf(0, complex(math.Sqrt(gamma), 0), 0, 0),
	}
}

// flipKraus builds the mixture {sqrt(1-p) I, sqrt(p) F} for a flip
// operator F (X for bitflip, Z for phaseflip).
func flipKraus(p float64, flip Matrix) []Matrix {
	return []Matrix{
		IdentityMatrix(2).Scale(complex(math.Sqrt(1-p), 0)),
		flip.Scale(complex(math.Sqrt(p), 0)),
	}
}
