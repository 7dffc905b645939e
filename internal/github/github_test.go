package github

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type mockCmd struct {
	calls   [][]string
	results []mockResult
	idx     int
}

type mockResult struct {
	output string
	err    error
}

func (m *mockCmd) Run(_ context.Context, args ...string) (string, error) {
	m.calls = append(m.calls, args)
	if m.idx >= len(m.results) {
		return "", nil
	}
	r := m.results[m.idx]
	m.idx++
	return r.output, r.err
}

type mockGitRunner struct {
	calls   []gitCall
	results []mockResult
	idx     int
}

type gitCall struct {
	Dir  string
	Args []string
}

func (m *mockGitRunner) RunGit(_ context.Context, dir string, args ...string) (string, error) {
	m.calls = append(m.calls, gitCall{Dir: dir, Args: args})
	if m.idx >= len(m.results) {
		return "", nil
	}
	r := m.results[m.idx]
	m.idx++
	return r.output, r.err
}

func hasArgPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestGetIssue(t *testing.T) {
	issueJSON := `{
		"number": 42,
		"title": "Add authentication",
		"body": "Implement auth.\n\n## Acceptance Criteria\n- [ ] Login works\n- [ ] Logout works",
		"state": "OPEN",
		"labels": [{"name": "feature"}, {"name": "points:5"}],
		"assignees": [{"login": "alice"}],
		"comments": [{"body": "+1"}, {"body": "me too"}],
		"createdAt": "2026-01-02T10:00:00Z",
		"updatedAt": "2026-01-05T10:00:00Z"
	}`

	mock := &mockCmd{
		results: []mockResult{{output: issueJSON}},
	}

	client := NewClient(mock, "example/app")
	issue, err := client.GetIssue(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if issue.Number != 42 {
		t.Errorf("expected number 42, got %d", issue.Number)
	}
	if issue.State != "OPEN" {
		t.Errorf("expected OPEN, got %q", issue.State)
	}
	if len(issue.Comments) != 2 {
		t.Errorf("expected 2 comments, got %d", len(issue.Comments))
	}
	if got := issue.LabelNames(); len(got) != 2 || got[1] != "points:5" {
		t.Errorf("LabelNames() = %v", got)
	}
	if !strings.Contains(issue.AcceptanceCriteria, "Login works") {
		t.Errorf("expected AC to be extracted, got %q", issue.AcceptanceCriteria)
	}
	if issue.CreatedAt.Day() != 2 {
		t.Errorf("CreatedAt = %v", issue.CreatedAt)
	}

	call := mock.calls[0]
	if call[0] != "issue" || call[1] != "view" || call[2] != "42" {
		t.Errorf("unexpected call: %v", call)
	}
	if !hasArgPair(call, "--repo", "example/app") {
		t.Errorf("expected --repo example/app in %v", call)
	}
}

func TestGetIssue_InvalidNumber(t *testing.T) {
	mock := &mockCmd{}
	client := NewClient(mock, "example/app")

	if _, err := client.GetIssue(context.Background(), 0); err == nil {
		t.Fatal("expected error for issue 0")
	}
	if len(mock.calls) != 0 {
		t.Errorf("expected no gh calls, got %d", len(mock.calls))
	}
}

func TestListIssues(t *testing.T) {
	mock := &mockCmd{
		results: []mockResult{{output: `[
			{"number": 1, "title": "one", "body": "- [ ] done", "state": "OPEN", "labels": []},
			{"number": 2, "title": "two", "body": "", "state": "CLOSED", "labels": [{"name": "bug"}]}
		]`}},
	}
	client := NewClient(mock, "example/app")

	issues, err := client.ListIssues(context.Background(), ListOpts{State: "all", Milestone: "Cycle 7", Limit: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(issues))
	}
	if issues[0].AcceptanceCriteria != "- done" {
		t.Errorf("AcceptanceCriteria = %q", issues[0].AcceptanceCriteria)
	}

	call := mock.calls[0]
	for _, pair := range [][2]string{{"--state", "all"}, {"--milestone", "Cycle 7"}, {"--limit", "50"}} {
		if !hasArgPair(call, pair[0], pair[1]) {
			t.Errorf("expected %s %s in %v", pair[0], pair[1], call)
		}
	}
}

func TestListIssues_Defaults(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{output: `[]`}}}
	client := NewClient(mock, "example/app")

	if _, err := client.ListIssues(context.Background(), ListOpts{NoMilestone: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := mock.calls[0]
	if !hasArgPair(call, "--state", "open") || !hasArgPair(call, "--limit", "200") {
		t.Errorf("expected default state/limit in %v", call)
	}
	if !hasArgPair(call, "--search", "no:milestone") {
		t.Errorf("expected no:milestone search in %v", call)
	}
}

func TestListIssues_Error(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{err: errors.New("auth required")}}}
	client := NewClient(mock, "example/app")

	_, err := client.ListIssues(context.Background(), ListOpts{})
	if err == nil || !strings.Contains(err.Error(), "list issues") {
		t.Errorf("expected wrapped list error, got %v", err)
	}
}

func TestListMilestones(t *testing.T) {
	mock := &mockCmd{results: []mockResult{{output: `[
		{"number": 3, "title": "Cycle 3", "state": "closed", "due_on": "2026-02-14T00:00:00Z", "created_at": "2026-01-30T00:00:00Z", "closed_at": "2026-02-14T08:00:00Z"},
		{"number": 4, "title": "Cycle 4", "state": "open", "due_on": "2026-02-28T00:00:00Z", "created_at": "2026-02-14T00:00:00Z"}
	]`}}}
	client := NewClient(mock, "example/app")

	ms, err := client.ListMilestones(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("expected 2 milestones, got %d", len(ms))
	}
	if ms[0].ClosedAt == nil || ms[1].ClosedAt != nil {
		t.Errorf("unexpected closed_at values: %+v", ms)
	}
	if ms[1].DueOn == nil || ms[1].DueOn.Day() != 28 {
		t.Errorf("DueOn = %v", ms[1].DueOn)
	}
	if mock.calls[0][1] != "repos/example/app/milestones?state=all&per_page=100" {
		t.Errorf("unexpected api path: %v", mock.calls[0])
	}
}

func TestLatestWorkflowRun(t *testing.T) {
	mock := &mockCmd{results: []mockResult{
		{output: `[{"name": "ci", "status": "completed", "conclusion": "success", "headBranch": "main"}]`},
		{output: `[]`},
	}}
	client := NewClient(mock, "example/app")

	run, err := client.LatestWorkflowRun(context.Background(), "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run == nil || !run.Passed() {
		t.Errorf("expected passing run, got %+v", run)
	}

	run, err = client.LatestWorkflowRun(context.Background(), "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run != nil {
		t.Errorf("expected nil run for empty list, got %+v", run)
	}
}

func TestLatestWorkflowRun_RejectsDashPrefix(t *testing.T) {
	client := NewClient(&mockCmd{}, "example/app")
	if _, err := client.LatestWorkflowRun(context.Background(), "--evil"); err == nil {
		t.Error("expected error for branch starting with -")
	}
}

func TestWorkflowRunPassed(t *testing.T) {
	cases := []struct {
		run  WorkflowRun
		want bool
	}{
		{WorkflowRun{Status: "completed", Conclusion: "success"}, true},
		{WorkflowRun{Status: "completed", Conclusion: "failure"}, false},
		{WorkflowRun{Status: "in_progress"}, false},
	}
	for _, c := range cases {
		if got := c.run.Passed(); got != c.want {
			t.Errorf("Passed(%+v) = %v, want %v", c.run, got, c.want)
		}
	}
}

func TestWorkingTreeClean(t *testing.T) {
	git := &mockGitRunner{results: []mockResult{{output: ""}, {output: " M main.go"}}}
	client := NewClientWithGit(&mockCmd{}, git, "example/app")

	clean, err := client.WorkingTreeClean(context.Background(), "/repo")
	if err != nil || !clean {
		t.Errorf("expected clean tree, got %v, %v", clean, err)
	}
	clean, err = client.WorkingTreeClean(context.Background(), "/repo")
	if err != nil || clean {
		t.Errorf("expected dirty tree, got %v, %v", clean, err)
	}
	if git.calls[0].Dir != "/repo" || git.calls[0].Args[0] != "status" {
		t.Errorf("unexpected git call: %+v", git.calls[0])
	}
}

func TestWorkingTreeClean_NoGitRunner(t *testing.T) {
	client := NewClient(&mockCmd{}, "example/app")
	if _, err := client.WorkingTreeClean(context.Background(), "/repo"); err == nil {
		t.Error("expected error without git runner")
	}
}

func TestExtractAcceptanceCriteria_Header(t *testing.T) {
	body := `## Overview
Some intro.

## Acceptance Criteria
- [ ] Login works
- [ ] Logout works
- [x] Session persists

## Dependencies
Some deps.`

	ac := ExtractAcceptanceCriteria(body)
	if !strings.Contains(ac, "Login works") {
		t.Errorf("expected Login works in AC, got %q", ac)
	}
	if strings.Contains(ac, "Dependencies") {
		t.Errorf("AC should not include Dependencies section, got %q", ac)
	}
}

func TestExtractAcceptanceCriteria_CheckboxFallback(t *testing.T) {
	body := `Tasks:
  - [ ] Indented item
  - [X] Uppercase X item`

	ac := ExtractAcceptanceCriteria(body)
	if ac != "- Indented item\n- Uppercase X item" {
		t.Errorf("unexpected AC %q", ac)
	}
}

func TestExtractAcceptanceCriteria_NoAC(t *testing.T) {
	if ac := ExtractAcceptanceCriteria("Just a plain description."); ac != "" {
		t.Errorf("expected empty AC, got %q", ac)
	}
}

func TestValidateIssueNumber(t *testing.T) {
	if err := ValidateIssueNumber(1); err != nil {
		t.Errorf("expected no error for 1, got %v", err)
	}
	if err := ValidateIssueNumber(-1); err == nil {
		t.Error("expected error for -1")
	}
}
