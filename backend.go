// backend.go
package qlite

import "strings"

// BackendType selects the state representation an engine evolves.
type BackendType string

const (
	// BackendStatevector keeps a pure state of 2^n amplitudes.
	BackendStatevector BackendType = "statevector"

	// BackendDensity keeps a mixed state of 2^n x 2^n entries and is the
	// only representation noise channels act on.
	BackendDensity BackendType = "density_operator"
)

var backendAliases = map[string]BackendType{
	"statevector":      BackendStatevector,
	"state_vector":     BackendStatevector,
	"density_matrix":   BackendDensity,
	"densitymatrix":    BackendDensity,
	"density_operator": BackendDensity,
	"densityoperator":  BackendDensity,
}

// ResolveBackend maps a case-insensitive alias onto a BackendType. The
// empty string selects the statevector backend. Unrecognized names yield a
// ConfigurationError.
func ResolveBackend(name string) (BackendType, error) {
	if name == "" {
		return BackendStatevector, nil
	}
	if bt, ok := backendAliases[strings.ToLower(name)]; ok {
		return bt, nil
	}
	return "", configErrorf("unknown backend %q", name)
}

// State is the surface shared by both representations. The engine
// type-switches down to the concrete containers for amplitude extraction
// and channel application.
type State interface {
	NQubits() int
	Probabilities() []float64
	Apply(m Matrix, targets, controls []int) error
	Reset()
}
