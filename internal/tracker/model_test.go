package tracker

import (
	"testing"
	"time"
)

func intp(n int) *int { return &n }

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestCycleStats(t *testing.T) {
	c := Cycle{Items: []WorkItem{
		{ID: "1", State: StateCompleted, Estimate: intp(3)},
		{ID: "2", State: StateCompleted, Estimate: intp(5)},
		{ID: "3", State: StateStarted, Estimate: intp(2)},
		{ID: "4", State: StateBacklog},
		{ID: "5", State: StateBlocked, Estimate: intp(1)},
		{ID: "6", State: StateCanceled, Estimate: intp(8)},
	}}

	s := c.Stats()
	if s.Total != 6 || s.Completed != 2 || s.Started != 1 || s.Unstarted != 1 || s.Blocked != 1 || s.Canceled != 1 {
		t.Errorf("Stats() = %+v", s)
	}
	if got := c.CompletedPoints(); got != 8 {
		t.Errorf("CompletedPoints() = %d, want 8", got)
	}
}

func TestPriority(t *testing.T) {
	if !PriorityUrgent.AtLeast(PriorityHigh) {
		t.Error("urgent should be at least high")
	}
	if PriorityMedium.AtLeast(PriorityHigh) {
		t.Error("medium should not be at least high")
	}
	if PriorityNone.AtLeast(PriorityHigh) {
		t.Error("none should never qualify")
	}
	if PriorityHigh.String() != "high" || Priority(9).String() != "none" {
		t.Errorf("unexpected priority names")
	}
}

func TestWorkItemHelpers(t *testing.T) {
	w := WorkItem{ID: "abc", Labels: []string{"Bug", "customer"}}
	if w.Estimated() || w.Points() != 0 {
		t.Error("unestimated item should report 0 points")
	}
	w.Estimate = intp(0)
	if w.Estimated() {
		t.Error("zero estimate should not count as estimated")
	}
	if !w.HasLabel("bug") {
		t.Error("HasLabel should be case-insensitive")
	}
	if got := w.CountLabels([]string{"bug", "customer", "revenue"}); got != 2 {
		t.Errorf("CountLabels() = %d, want 2", got)
	}
	if w.Display() != "abc" {
		t.Errorf("Display() = %q", w.Display())
	}
	w.Identifier = "ENG-12"
	if w.Display() != "ENG-12" {
		t.Errorf("Display() = %q", w.Display())
	}
}

func TestRosterActiveCount(t *testing.T) {
	r := Roster{Members: []Member{{ID: "a", Active: true}, {ID: "b"}, {ID: "c", Active: true}}}
	if r.ActiveCount() != 2 {
		t.Errorf("ActiveCount() = %d, want 2", r.ActiveCount())
	}
}

func TestRecentClosedOrdersByEndDate(t *testing.T) {
	s := Snapshot{ClosedCycles: []Cycle{
		{ID: "c3", EndsAt: day(21)},
		{ID: "c1", EndsAt: day(7)},
		{ID: "c4", EndsAt: day(28)},
		{ID: "c2", EndsAt: day(14)},
	}}

	got := s.RecentClosed(3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"c2", "c3", "c4"} {
		if got[i].ID != want {
			t.Errorf("RecentClosed()[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
	// original order untouched
	if s.ClosedCycles[0].ID != "c3" {
		t.Error("RecentClosed mutated the snapshot")
	}
}

func TestOpenItems(t *testing.T) {
	s := Snapshot{
		ActiveCycle: &Cycle{Items: []WorkItem{
			{ID: "a1", State: StateStarted},
			{ID: "a2", State: StateCompleted},
		}},
		Backlog: []WorkItem{
			{ID: "b1", State: StateBacklog},
			{ID: "b2", State: StateCanceled},
		},
	}
	got := s.OpenItems()
	if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "b1" {
		t.Errorf("OpenItems() = %+v", got)
	}
}

func TestDigestIsStable(t *testing.T) {
	build := func() *Snapshot {
		return &Snapshot{
			AsOf:    day(3),
			Backlog: []WorkItem{{ID: "1", Title: "x", Estimate: intp(3)}},
			Roster:  Roster{Members: []Member{{ID: "a", Active: true}}},
		}
	}
	d1, err := build().Digest()
	if err != nil {
		t.Fatal(err)
	}
	d2, _ := build().Digest()
	if d1 != d2 {
		t.Errorf("digest differs for identical snapshots: %s vs %s", d1, d2)
	}

	other := build()
	other.Backlog[0].Title = "y"
	d3, _ := other.Digest()
	if d3 == d1 {
		t.Error("digest should change when the snapshot changes")
	}
}
