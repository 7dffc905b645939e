package diag

import (
	"fmt"
	"testing"
)

func TestFromErrorClassifiesSentinels(t *testing.T) {
	w := FromError("metrics", fmt.Errorf("velocity: %w", ErrInsufficientData))
	if w.Kind != InsufficientData {
		t.Errorf("Kind = %q, want %q", w.Kind, InsufficientData)
	}
	if w.Message != "velocity: insufficient data" {
		t.Errorf("Message = %q", w.Message)
	}

	w = FromError("tracker", fmt.Errorf("fetch backlog: %w", ErrDataUnavailable))
	if w.Kind != DataUnavailable {
		t.Errorf("Kind = %q, want %q", w.Kind, DataUnavailable)
	}

	w = FromError("tracker", fmt.Errorf("connection refused"))
	if w.Kind != DataUnavailable {
		t.Errorf("unclassified error Kind = %q, want %q", w.Kind, DataUnavailable)
	}
}

func TestCountAndString(t *testing.T) {
	ws := []Warning{
		New(ConstraintViolation, "balance", "bug ratio %.0f%% over target", 35.0),
		New(ConstraintViolation, "select", "capacity target not met"),
		New(GateFailure, "readiness", "2 checks failed"),
	}
	if got := Count(ws, ConstraintViolation); got != 2 {
		t.Errorf("Count(constraint_violation) = %d, want 2", got)
	}
	if got := Count(ws, InsufficientData); got != 0 {
		t.Errorf("Count(insufficient_data) = %d, want 0", got)
	}
	if got := ws[0].String(); got != "[balance] constraint_violation: bug ratio 35% over target" {
		t.Errorf("String() = %q", got)
	}
}
