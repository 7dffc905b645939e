package checks

import (
	"context"
	"fmt"
	"testing"
)

func TestRunGroup_AllPass(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{ExitCode: 0}, {ExitCode: 0}}}
	runner := NewRunner(mock)

	gr, results, err := runner.RunGroup(context.Background(), "/tmp", "pipeline", []CheckConfig{
		{Name: "build", Command: "make build"},
		{Name: "test", Command: "make test"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gr.Passed || gr.Group != "pipeline" {
		t.Errorf("group = %+v", gr)
	}
	if len(gr.Checks) != 2 || len(results) != 2 {
		t.Errorf("expected 2 checks, got %d/%d", len(gr.Checks), len(results))
	}
	if len(gr.Failed()) != 0 {
		t.Errorf("Failed() = %v", gr.Failed())
	}
}

func TestRunGroup_ContinuesAfterFailure(t *testing.T) {
	mock := &mockCmd{results: []mockResult{
		{ExitCode: 1, Stdout: "lint errors"},
		{Err: fmt.Errorf("no such binary")},
		{ExitCode: 0},
	}}
	runner := NewRunner(mock)

	gr, results, err := runner.RunGroup(context.Background(), "/tmp", "qualityGates", []CheckConfig{
		{Name: "lint", Command: "make lint"},
		{Name: "audit", Command: "audit"},
		{Name: "test", Command: "make test"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gr.Passed {
		t.Error("expected group to fail")
	}
	if len(mock.calls) != 3 || len(results) != 3 {
		t.Errorf("expected every check to run, got %d calls", len(mock.calls))
	}
	failed := gr.Failed()
	if len(failed) != 2 || failed[0] != "lint" || failed[1] != "audit" {
		t.Errorf("Failed() = %v", failed)
	}
}

func TestRunGroup_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock := &mockCmd{results: []mockResult{{Block: true}}}

	if _, _, err := NewRunner(mock).RunGroup(ctx, "/tmp", "pipeline", []CheckConfig{{Name: "a", Command: "a"}}); err == nil {
		t.Error("expected error for canceled context")
	}
}
