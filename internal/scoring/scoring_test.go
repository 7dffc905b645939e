package scoring

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

func est(n int) *int { return &n }

const longDesc = "This description is comfortably longer than twenty characters."

func item(id string, estimate int, labels ...string) tracker.WorkItem {
	return tracker.WorkItem{
		ID:          id,
		Title:       "Item " + id,
		Description: longDesc,
		Estimate:    est(estimate),
		State:       tracker.StateBacklog,
		Labels:      labels,
	}
}

func TestBusinessValue(t *testing.T) {
	cfg := config.Default().Scoring
	it := item("a", 5, "customer")
	it.Priority = tracker.PriorityHigh
	it.Project = "platform"

	// (30 + 15 + 10) * 1.5
	if got := BusinessValue(&it, cfg); got != 82.5 {
		t.Errorf("BusinessValue = %v, want 82.5", got)
	}

	it.Labels = append(it.Labels, "revenue")
	it.Parent = "epic-1"
	if got := BusinessValue(&it, cfg); got != 100 {
		t.Errorf("BusinessValue = %v, want capped 100", got)
	}

	none := item("b", 5)
	if got := BusinessValue(&none, cfg); got != 7.5 {
		t.Errorf("BusinessValue(no priority) = %v, want 7.5", got)
	}
}

func TestTechnicalDebt(t *testing.T) {
	s := NewScorer(config.Default())
	it := item("a", 3, "tech-debt")
	it.Title = "Migrate legacy exporter"
	it.Description = "Old code path has flaky tests and no coverage."

	// label 25 + keywords (legacy, migrate) 20 + testing (test, coverage, flaky) 30 = 75 * 1.5
	if got := s.TechnicalDebt(&it); got != 100 {
		t.Errorf("TechnicalDebt = %v, want 100", got)
	}

	plain := item("b", 3)
	plain.Title = "Show the latest invoice"
	if got := s.TechnicalDebt(&plain); got != 0 {
		t.Errorf("TechnicalDebt(plain) = %v, want 0 (\"latest\" is not \"test\")", got)
	}
}

func TestRiskMitigation(t *testing.T) {
	cfg := config.Default().Scoring
	it := item("a", 3, "bug", "security", "perf", "outage")
	if got := RiskMitigation(&it, cfg); got != 100 {
		t.Errorf("RiskMitigation = %v, want 100", got)
	}
	it.Labels = []string{"Security"}
	if got := RiskMitigation(&it, cfg); got != 30 {
		t.Errorf("RiskMitigation = %v, want 30", got)
	}
}

func TestVelocityFit(t *testing.T) {
	cases := map[int]float64{0: 40, 1: 50, 2: 50, 3: 70, 4: 70, 5: 100, 13: 100, 14: 70, 21: 70, 22: 30, -1: 40}
	for in, want := range cases {
		if got := VelocityFit(in); got != want {
			t.Errorf("VelocityFit(%d) = %v, want %v", in, got, want)
		}
	}
}

func TestDependencyScore(t *testing.T) {
	blocked := item("a", 3)
	blocked.Relations = []tracker.Relation{{Type: tracker.RelationBlocks, TargetID: "b"}}
	blocker := item("b", 3)
	related := item("c", 3)
	related.Relations = []tracker.Relation{{Type: tracker.RelationRelated, TargetID: "d"}}
	loose := item("e", 3)

	idx := BlockingIndex([]tracker.WorkItem{blocked, blocker, related, loose})
	for _, c := range []struct {
		it   tracker.WorkItem
		want float64
	}{
		{blocked, 0},
		{blocker, 100},
		{related, 50},
		{loose, 80},
	} {
		if got := DependencyScore(&c.it, idx); got != c.want {
			t.Errorf("DependencyScore(%s) = %v, want %v", c.it.ID, got, c.want)
		}
	}
}

func TestTeamAlignment(t *testing.T) {
	cfg := config.Default().Scoring
	it := item("a", 3)
	if got := TeamAlignment(&it, cfg); got != 50 {
		t.Errorf("TeamAlignment = %v, want 50", got)
	}
	it.Assignee = "alice"
	it.Description = "Do it.\n\n## Acceptance Criteria\n- [ ] works"
	if got := TeamAlignment(&it, cfg); got != 100 {
		t.Errorf("TeamAlignment = %v, want 100", got)
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier(config.Default().Scoring)
	cases := []struct {
		title  string
		labels []string
		want   Category
	}{
		{"Anything", []string{"feature", "bug"}, Bug},
		{"Anything", []string{"refactor", "enhancement"}, TechDebt},
		{"Fix crash on login", []string{"enhancement"}, Feature},
		{"Fix crash on login", nil, Bug},
		{"Clean up config loading", nil, TechDebt},
		{"Add dark mode", nil, Feature},
	}
	for _, tc := range cases {
		it := tracker.WorkItem{Title: tc.title, Labels: tc.labels}
		if got := c.Classify(&it); got != tc.want {
			t.Errorf("Classify(%q, %v) = %s, want %s", tc.title, tc.labels, got, tc.want)
		}
	}
}

func TestEligible(t *testing.T) {
	s := NewScorer(config.Default())
	thin := item("thin", 3)
	thin.Description = "too short"
	closed := item("closed", 3)
	closed.State = tracker.StateCompleted
	unest := item("unest", 3)
	unest.Estimate = nil

	ok, excluded := s.Eligible([]tracker.WorkItem{item("ok", 3), thin, closed, unest, item("zero", 0)})
	if len(ok) != 1 || ok[0].ID != "ok" {
		t.Fatalf("eligible = %+v, want only ok", ok)
	}
	want := map[string]string{
		"thin":   ExcludedThinDescription,
		"closed": ExcludedClosed,
		"unest":  ExcludedUnestimated,
		"zero":   ExcludedZeroEstimate,
	}
	if len(excluded) != len(want) {
		t.Fatalf("excluded = %+v", excluded)
	}
	for _, e := range excluded {
		if want[e.ItemID] != e.Reason {
			t.Errorf("%s excluded as %q, want %q", e.ItemID, e.Reason, want[e.ItemID])
		}
	}
}

func TestScoreBoundsAndDeterminism(t *testing.T) {
	cfg := config.Default()
	var backlog []tracker.WorkItem
	for i, labels := range [][]string{
		{"bug", "security", "customer", "revenue", "tech-debt", "refactor"},
		{},
		{"feature"},
		{"perf"},
	} {
		it := item(strings.Repeat("x", i+1), i*7+1, labels...)
		it.Priority = tracker.Priority(i % 5)
		backlog = append(backlog, it)
	}
	snap := &tracker.Snapshot{Backlog: backlog}

	first, err := NewScorer(cfg).Score(context.Background(), snap)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	for _, si := range first.Items {
		if si.Score < 0 || si.Score > 100 {
			t.Errorf("%s score %v out of bounds", si.Item.ID, si.Score)
		}
	}

	cfg.Scoring.Concurrency = 1
	second, err := NewScorer(cfg).Score(context.Background(), snap)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if len(first.Items) != len(second.Items) {
		t.Fatalf("item counts differ: %d vs %d", len(first.Items), len(second.Items))
	}
	for i := range first.Items {
		if first.Items[i].Item.ID != second.Items[i].Item.ID || first.Items[i].Score != second.Items[i].Score {
			t.Errorf("position %d differs: %s/%v vs %s/%v", i,
				first.Items[i].Item.ID, first.Items[i].Score, second.Items[i].Item.ID, second.Items[i].Score)
		}
	}
}

func TestScoreSortsDescendingAndKeepsTieOrder(t *testing.T) {
	urgent := item("urgent", 8, "bug")
	urgent.Priority = tracker.PriorityUrgent
	snap := &tracker.Snapshot{Backlog: []tracker.WorkItem{
		item("tie-1", 5), item("tie-2", 5), urgent, item("tie-3", 5),
	}}

	res, err := NewScorer(config.Default()).Score(context.Background(), snap)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	var ids []string
	for _, si := range res.Items {
		ids = append(ids, si.Item.ID)
	}
	if got := strings.Join(ids, ","); got != "urgent,tie-1,tie-2,tie-3" {
		t.Errorf("order = %s", got)
	}
	if res.Items[0].Category != Bug {
		t.Errorf("category = %s, want bug", res.Items[0].Category)
	}
}

func TestScoreWeightedSum(t *testing.T) {
	it := item("a", 5)
	s := NewScorer(config.Default())
	si := s.ScoreItem(it, map[string]bool{})

	// bv 7.5*.35 + td 0 + risk 0 + vf 100*.10 + dep 80*.10 + team 50*.05
	want := 2.625 + 10 + 8 + 2.5
	if math.Abs(si.Score-want) > 0.006 {
		t.Errorf("Score = %v, want about %v", si.Score, want)
	}
}

func TestScoreEmptyBacklogWarns(t *testing.T) {
	res, err := NewScorer(config.Default()).Score(context.Background(), &tracker.Snapshot{})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if len(res.Items) != 0 || len(res.Warnings) != 1 {
		t.Errorf("expected no items and one warning, got %+v", res)
	}
}

func TestScoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap := &tracker.Snapshot{Backlog: []tracker.WorkItem{item("a", 3)}}
	if _, err := NewScorer(config.Default()).Score(ctx, snap); err == nil {
		t.Error("expected error for canceled context")
	}
}
