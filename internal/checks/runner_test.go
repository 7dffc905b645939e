package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

// mockCmd records calls and returns configured results.
type mockCmd struct {
	calls   []mockCall
	results []mockResult
	callIdx int
}

type mockCall struct {
	Dir     string
	Command string
}

type mockResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	Block    bool
}

func (m *mockCmd) Run(ctx context.Context, dir string, command string) (string, string, int, error) {
	m.calls = append(m.calls, mockCall{Dir: dir, Command: command})
	if m.callIdx >= len(m.results) {
		return "", "", 0, nil
	}
	r := m.results[m.callIdx]
	m.callIdx++
	if r.Block {
		<-ctx.Done()
		return "partial", "", -1, ctx.Err()
	}
	return r.Stdout, r.Stderr, r.ExitCode, r.Err
}

func TestRunner_Run_HappyPath(t *testing.T) {
	mock := &mockCmd{
		results: []mockResult{
			{Stdout: "all good", ExitCode: 0},
		},
	}
	runner := NewRunner(mock)

	result, err := runner.Run(context.Background(), "/tmp/test", CheckConfig{
		Name:    "lint",
		Command: "make lint",
		Parser:  "generic",
		Timeout: 30 * time.Second,
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Passed {
		t.Errorf("expected passed=true, got false")
	}
	if result.CheckName != "lint" {
		t.Errorf("expected check_name=lint, got %q", result.CheckName)
	}
	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(mock.calls))
	}
	if mock.calls[0].Dir != "/tmp/test" || mock.calls[0].Command != "make lint" {
		t.Errorf("unexpected call %+v", mock.calls[0])
	}
}

func TestRunner_Run_FailedCheck(t *testing.T) {
	mock := &mockCmd{
		results: []mockResult{
			{Stdout: "checking...\nerrors found\n", ExitCode: 1},
		},
	}
	runner := NewRunner(mock)

	result, err := runner.Run(context.Background(), "/tmp/test", CheckConfig{Name: "lint", Command: "make lint"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Passed {
		t.Errorf("expected passed=false, got true")
	}
	if result.ExitCode != 1 {
		t.Errorf("expected exit_code=1, got %d", result.ExitCode)
	}
	if result.Summary != "failed (exit code 1): errors found" {
		t.Errorf("summary = %q", result.Summary)
	}
}

func TestRunner_Run_UnknownParserFallsToGeneric(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{Stdout: "output", ExitCode: 0}}}
	runner := NewRunner(mock)

	result, err := runner.Run(context.Background(), "/tmp/test", CheckConfig{
		Name:    "custom",
		Command: "custom-check",
		Parser:  "unknown-parser",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary != "passed (exit code 0)" {
		t.Errorf("expected generic summary, got %q", result.Summary)
	}
}

func TestRunner_Run_CommandError(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{Err: fmt.Errorf("connection refused")}}}
	runner := NewRunner(mock)

	_, err := runner.Run(context.Background(), "/tmp/test", CheckConfig{Name: "lint", Command: "make lint"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunner_Run_Timeout(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{Block: true}}}
	runner := NewRunner(mock)

	result, err := runner.Run(context.Background(), "/tmp/test", CheckConfig{
		Name:    "slow",
		Command: "sleep 60",
		Timeout: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Passed || !result.TimedOut || result.ExitCode != -1 {
		t.Errorf("expected timed-out failure, got %+v", result)
	}
	if !strings.HasPrefix(result.Summary, "timeout after") {
		t.Errorf("summary = %q", result.Summary)
	}
}

func TestRunner_Run_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock := &mockCmd{results: []mockResult{{Block: true}}}

	if _, err := NewRunner(mock).Run(ctx, "/tmp", CheckConfig{Name: "x", Command: "x"}); err == nil {
		t.Error("expected error when the parent context is canceled")
	}
}

func TestGenericParser(t *testing.T) {
	p := &GenericParser{}
	if r := p.Parse("ok", "", 0); !r.Passed || r.Findings != "" {
		t.Errorf("pass result = %+v", r)
	}

	r := p.Parse("", "boom\n", 2)
	if r.Passed || r.Summary != "failed (exit code 2): boom" || r.Findings != "boom" {
		t.Errorf("fail result = %+v", r)
	}

	long := strings.Repeat("x", maxOutputLen+100)
	r = p.Parse(long, "", 1)
	if f := r.Findings.(string); !strings.HasPrefix(f, "…(truncated)") {
		t.Errorf("expected truncated findings, got %d bytes", len(f))
	}
}

const goTestOutput = `{"Action":"run","Package":"example/pkg","Test":"TestA"}
{"Action":"pass","Package":"example/pkg","Test":"TestA"}
{"Action":"run","Package":"example/pkg","Test":"TestB"}
{"Action":"fail","Package":"example/pkg","Test":"TestB"}
{"Action":"skip","Package":"example/pkg","Test":"TestC"}
{"Action":"fail","Package":"example/pkg"}
`

func TestGoTestParser_Failures(t *testing.T) {
	r := (&GoTestParser{}).Parse(goTestOutput, "", 1)
	if r.Passed {
		t.Error("expected failure")
	}
	if r.Summary != "1 passed, 1 failed, 1 skipped" {
		t.Errorf("summary = %q", r.Summary)
	}
	data, err := json.Marshal(r.Findings)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"test":"TestB"`) {
		t.Errorf("findings = %s", data)
	}
}

func TestGoTestParser_AllPass(t *testing.T) {
	out := `{"Action":"pass","Package":"p","Test":"TestA"}
{"Action":"pass","Package":"p"}`
	r := (&GoTestParser{}).Parse(out, "", 0)
	if !r.Passed || r.Summary != "passed: 1 passed, 0 failed, 0 skipped" {
		t.Errorf("result = %+v", r)
	}
}

func TestGoTestParser_NotJSON(t *testing.T) {
	r := (&GoTestParser{}).Parse("ok  \texample/pkg\t0.01s", "", 0)
	if !r.Passed || !strings.Contains(r.Summary, "could not parse") {
		t.Errorf("result = %+v", r)
	}
}
