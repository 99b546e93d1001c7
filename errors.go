package qlite

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks. The concrete types below carry the
// diagnostic context.
var (
	ErrUnknownOpcode      = errors.New("unknown opcode")
	ErrUnsupportedBackend = errors.New("unsupported backend")
	ErrConfiguration      = errors.New("invalid configuration")
	ErrDimension          = errors.New("dimension mismatch")
	ErrParse              = errors.New("parse error")
)

// UnknownOpcodeError reports an opcode whose gate name is not in the catalog.
// It carries the full opcode for diagnosis.
type UnknownOpcodeError struct {
	Op Opcode
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode operation %q (full opcode: %s)", e.Op.Gate, e.Op.String())
}

func (e *UnknownOpcodeError) Is(target error) bool { return target == ErrUnknownOpcode }

// UnsupportedBackendError reports an operation requested against an
// incompatible backend. The caller must reselect the backend; the state is
// not recoverable through this engine instance.
type UnsupportedBackendError struct {
	Backend BackendType
	Op      string
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("%s is not supported on the %s backend", e.Op, e.Backend)
}

func (e *UnsupportedBackendError) Is(target error) bool { return target == ErrUnsupportedBackend }

// ConfigurationError reports an invalid backend alias or a malformed
// noise/readout/cloud descriptor.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// DimensionError reports a qubit index outside [0,n), a duplicate operand,
// a parameter-count mismatch, or a qubit count over the ceiling.
type DimensionError struct {
	Reason string
}

func (e *DimensionError) Error() string {
	return "dimension mismatch: " + e.Reason
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimension }

func dimErrorf(format string, args ...any) *DimensionError {
	return &DimensionError{Reason: fmt.Sprintf(format, args...)}
}

// ParseError reports a malformed circuit-text line.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d (%q): %s", e.Line, e.Text, e.Msg)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }
