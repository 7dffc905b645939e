package report

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/lucasnoah/cycleplan/internal/align"
	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/metrics"
	"github.com/lucasnoah/cycleplan/internal/pipeline"
	"github.com/lucasnoah/cycleplan/internal/readiness"
	"github.com/lucasnoah/cycleplan/internal/scoring"
	"github.com/lucasnoah/cycleplan/internal/selection"
)

// --- Test helpers ---

func testArtifact() *pipeline.Artifact {
	return &pipeline.Artifact{
		RunID:     "11111111-2222-3333-4444-555555555555",
		Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Config:    "team-a",
		CycleHealth: metrics.CycleHealth{
			Status:           metrics.AtRisk,
			Progress:         0.4,
			ExpectedProgress: 0.5,
			TotalDays:        10,
		},
		Velocity: metrics.Velocity{Average: 41, Trend: metrics.Stable, Confidence: metrics.High},
		Backlog:  metrics.BacklogReadiness{Total: 10, Ready: 6, Score: 60},
		Dependencies: metrics.DependencyRisk{
			Risk:             metrics.LevelMedium,
			CriticalBlockers: 1,
		},
		Capacity: metrics.Capacity{
			ActiveMembers: 5,
			PointCapacity: 50,
			Source:        "override",
			BufferFactor:  0.85,
			Target:        42.5,
		},
		AtRisk: []metrics.AtRiskItem{{ItemID: "C9", Title: "Old migration", Reason: "stale in progress"}},
		ScoredSelection: []pipeline.SelectedItem{
			{ID: "B1", Identifier: "ENG-1", Title: "Fix login", Estimate: 8, Priority: "urgent", Category: scoring.Bug, Score: 47.5, Tier: selection.TierMust},
			{ID: "F1", Title: "Export API", Estimate: 13, Priority: "high", Category: scoring.Feature, Score: 44.13, Tier: selection.TierShould},
			{ID: "T1", Title: "Drop legacy cache", Estimate: 5, Priority: "low", Category: scoring.TechDebt, Score: 20, Tier: selection.TierCould},
		},
		Excluded: []scoring.Exclusion{{ItemID: "U2", Reason: "no estimate"}, {ItemID: "U1", Reason: "no estimate"}},
		Composition: selection.Composition{
			Bug:      0.31,
			TechDebt: 0.19,
			Feature:  0.5,
			Points:   map[scoring.Category]int{scoring.Bug: 8, scoring.TechDebt: 5, scoring.Feature: 13},
			Targets:  map[scoring.Category]float64{scoring.Bug: 0.2, scoring.TechDebt: 0.3, scoring.Feature: 0.5},
			Balanced: true,
		},
		Assignments: map[string]align.Assignment{
			"B1": {Primary: "backend", Supporting: []string{"qa"}},
			"F1": {Primary: "backend", Supporting: []string{"frontend", "qa"}},
			"T1": {Primary: "backend"},
		},
		WorkQueues: align.WorkQueues{
			Immediate: []align.WorkQueueEntry{
				{ItemID: "B1", Title: "Fix login", Category: scoring.Bug, Estimate: 8, Risk: align.RiskHigh, Files: []string{"internal/auth/login.go"}},
			},
			Standard:   []align.WorkQueueEntry{{ItemID: "F1", Title: "Export API", Category: scoring.Feature, Estimate: 13, Risk: align.RiskMedium}},
			Background: []align.WorkQueueEntry{{ItemID: "T1", Title: "Drop legacy cache", Category: scoring.TechDebt, Estimate: 5, Risk: align.RiskLow}},
		},
		TestRequirements: map[string]align.TestRequirements{
			"B1": {
				Coverage:           align.CoverageTargets{Line: 90, Branch: 85, Function: 90},
				Types:              []string{"unit", "regression"},
				Counts:             map[string]int{"unit": 3, "regression": 1},
				AcceptanceCriteria: []string{"Login accepts valid passwords"},
			},
		},
		Alignment: []align.Detail{
			{ItemID: "B1", Queue: align.QueueImmediate, Risk: align.RiskHigh},
			{ItemID: "F1", Queue: align.QueueStandard, Risk: align.RiskMedium},
			{ItemID: "T1", Queue: align.QueueBackground, Risk: align.RiskLow},
		},
		Readiness: pipeline.Readiness{
			Score:     75,
			Decision:  readiness.DecisionGo,
			Threshold: 75,
			Risks: []readiness.Risk{
				{Group: readiness.GroupTeam, Description: "team readiness checks failed", Failed: []string{"on-call staffed"}},
			},
			Mitigations: map[string][]string{"team": {"Confirm on-call coverage before kickoff"}},
			Advisories:  []string{"1 high-risk item planned"},
		},
		Tiers:    selection.Tiers{Must: []string{"B1"}, Should: []string{"F1"}, Could: []string{"T1"}},
		Warnings: []diag.Warning{diag.New(diag.DataUnavailable, "tracker", "roster unavailable")},
	}
}

func render(t *testing.T, kind string, a *pipeline.Artifact) string {
	t.Helper()
	out, err := NewRenderer(afero.NewMemMapFs(), "").Render(kind, a)
	if err != nil {
		t.Fatalf("Render(%s): %v", kind, err)
	}
	return out
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

// --- Tests ---

func TestRender_AllKinds(t *testing.T) {
	a := testArtifact()
	for _, kind := range Kinds {
		out := render(t, kind, a)
		if strings.Contains(out, "{{") {
			t.Errorf("%s: unexpanded template syntax:\n%s", kind, out)
		}
	}
}

func TestRender_Planning(t *testing.T) {
	out := render(t, "planning", testArtifact())
	assertContains(t, out,
		"# Cycle Planning: team-a",
		"Readiness: **GO** (75.00% against a 75% threshold)",
		"- **ENG-1** Fix login (8 pts, urgent, bug, score 47.5)",
		"- **F1** Export API (13 pts, high, feature, score 44.13)",
		"Health: at_risk (40% done, 50% expected)",
		"Dependency risk: medium (1 critical blockers)",
		"Backlog readiness: 60% (6 of 10 ready)",
		"C9 Old migration: stale in progress",
		"- **team**: team readiness checks failed",
		"  - mitigation: Confirm on-call coverage before kickoff",
		"Advisories:",
		"- U1: no estimate\n- U2: no estimate",
		"[tracker] data_unavailable: roster unavailable",
		"42.5",
	)
	if strings.Contains(out, "Rebalancing swaps") {
		t.Error("no swaps section expected for a balanced plan")
	}
}

func TestRender_PlanningEmptyTiers(t *testing.T) {
	a := testArtifact()
	a.Tiers = selection.Tiers{Must: []string{"B1"}}
	a.Readiness.Risks = nil
	out := render(t, "planning", a)
	if strings.Count(out, "_None._") != 2 {
		t.Errorf("expected two empty tiers:\n%s", out)
	}
	assertContains(t, out, "No readiness check failed.")
}

func TestRender_Worklog(t *testing.T) {
	out := render(t, "worklog", testArtifact())
	assertContains(t, out,
		"Run 11111111-2222-3333-4444-555555555555, 3 items, 26 points.",
		"### Immediate\n- **ENG-1** Fix login (8 pts, bug, high risk)\n  - Files: `internal/auth/login.go`",
		"- **F1** Export API (13 pts, feature, medium risk)",
		"### Review\n_Empty._",
		"- Coverage: line 90%, branch 85%, function 90%",
		"- Tests: unit (3), regression (1)",
		"- [ ] Login accepts valid passwords",
		"frontend, qa",
		"| 10 | | | | |",
	)
	if strings.Contains(out, "| 11 |") {
		t.Error("daily rows should stop at the cycle length")
	}
}

func TestRender_Kickoff(t *testing.T) {
	out := render(t, "kickoff", testArtifact())
	assertContains(t, out,
		"Planned: **26** of 42.5 target points across 3 items",
		"Capacity: 50 points (override)",
		"Keep the mix near 20% bug / 30% tech_debt / 50% feature",
		"## Open Risks",
	)
	// work starts with the immediate queue
	start := out[strings.Index(out, "## Work Starts With"):]
	if strings.Contains(start, "Export API") {
		t.Errorf("only immediate items expected:\n%s", start)
	}
}

func TestRender_KickoffWithoutImmediate(t *testing.T) {
	a := testArtifact()
	a.WorkQueues.Immediate = nil
	out := render(t, "kickoff", a)
	start := out[strings.Index(out, "## Work Starts With"):]
	assertContains(t, start, "Fix login", "Export API", "Drop legacy cache")
}

func TestRender_Override(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/tmpl/kickoff.md", []byte("{{config}}: {{readiness_decision}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := NewRenderer(fs, "/tmpl").Render("kickoff", testArtifact())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "team-a: GO" {
		t.Errorf("got %q", out)
	}
}

func TestRender_Errors(t *testing.T) {
	r := NewRenderer(afero.NewMemMapFs(), "")
	if _, err := r.Render("retro", testArtifact()); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := r.Render("planning", nil); err == nil {
		t.Error("expected error for nil artifact")
	}

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/tmpl/planning.md", []byte("{{no_such_var}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRenderer(fs, "/tmpl").Render("planning", testArtifact()); err == nil {
		t.Error("expected error for an unknown variable")
	}
}

func TestNum(t *testing.T) {
	cases := map[float64]string{42.5: "42.5", 40: "40", 0.85: "0.85", 0: "0", 44.126: "44.13", 100: "100"}
	for in, want := range cases {
		if got := num(in); got != want {
			t.Errorf("num(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestDailyRows_DefaultLength(t *testing.T) {
	if got := strings.Count(dailyRows(0), "\n") + 1; got != 14 {
		t.Errorf("expected 14 rows, got %d", got)
	}
}
