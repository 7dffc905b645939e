// Package diag defines the recoverable-condition taxonomy shared by the
// planning stages. None of these conditions abort a run; they are collected
// as warnings and carried into the output artifact.
package diag

import (
	"errors"
	"fmt"
)

// Kind classifies a recoverable condition.
type Kind string

const (
	// DataUnavailable means an external fetch failed or returned nothing and a
	// documented default was used instead.
	DataUnavailable Kind = "data_unavailable"
	// InsufficientData means too few historical samples were available.
	InsufficientData Kind = "insufficient_data"
	// ConstraintViolation means a composition or capacity target was not met.
	ConstraintViolation Kind = "constraint_violation"
	// GateFailure means one or more readiness checks failed.
	GateFailure Kind = "gate_failure"
)

var (
	ErrDataUnavailable  = errors.New("data unavailable")
	ErrInsufficientData = errors.New("insufficient data")
)

// Warning is a single recoverable condition raised by a stage.
type Warning struct {
	Kind    Kind   `json:"kind"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s: %s", w.Stage, w.Kind, w.Message)
}

// New builds a warning with a formatted message.
func New(kind Kind, stage, format string, args ...any) Warning {
	return Warning{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// FromError converts a wrapped sentinel error into a warning. Errors that
// match neither sentinel are reported as data_unavailable.
func FromError(stage string, err error) Warning {
	kind := DataUnavailable
	if errors.Is(err, ErrInsufficientData) {
		kind = InsufficientData
	}
	return Warning{Kind: kind, Stage: stage, Message: err.Error()}
}

// Count returns how many warnings have the given kind.
func Count(ws []Warning, kind Kind) int {
	n := 0
	for _, w := range ws {
		if w.Kind == kind {
			n++
		}
	}
	return n
}
