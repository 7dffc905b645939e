package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/metrics"
	"github.com/lucasnoah/cycleplan/internal/pipeline"
	"github.com/lucasnoah/cycleplan/internal/readiness"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func testArtifact(runID string, ts time.Time, decision readiness.Decision) *pipeline.Artifact {
	return &pipeline.Artifact{
		RunID:          runID,
		Timestamp:      ts,
		Config:         "platform",
		SnapshotDigest: "abc123",
		Capacity:       metrics.Capacity{PointCapacity: 50, Target: 42.5},
		ScoredSelection: []pipeline.SelectedItem{
			{ID: "a", Estimate: 8},
			{ID: "b", Estimate: 5},
		},
		Readiness: pipeline.Readiness{
			Score:    66.67,
			Decision: decision,
			Checks: []readiness.Check{
				{Group: readiness.GroupPipeline, Name: "ci", Passed: true},
				{Group: readiness.GroupTeam, Name: "availability", Passed: false, Detail: "bob is out"},
				{Group: readiness.GroupQualityGates, Name: "lint", Passed: true, Source: "command"},
			},
		},
		Warnings: []diag.Warning{diag.New(diag.GateFailure, "readiness", "1 check failed")},
	}
}

func TestMigrate(t *testing.T) {
	d, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tables := []string{"schema_version", "planning_runs", "stage_events", "check_runs"}
	for _, table := range tables {
		var name string
		err := d.conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	var version int
	if err := d.conn.QueryRow("SELECT version FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("query schema_version: %v", err)
	}
	if version != 1 {
		t.Errorf("expected schema version 1, got %d", version)
	}

	// idempotent
	if err := d.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestReset(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := d.RecordRun(ctx, testArtifact("run-1", time.Now().UTC(), readiness.DecisionGo)); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := d.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	runs, err := d.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected empty runs after reset, got %d", len(runs))
	}
}

func TestRecordRun_GetRun(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if err := d.RecordRun(ctx, testArtifact("run-1", ts, readiness.DecisionNoGo)); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	r, err := d.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if r == nil {
		t.Fatal("expected run, got nil")
	}
	if r.Timestamp != "2026-03-02T09:00:00Z" {
		t.Errorf("Timestamp = %q", r.Timestamp)
	}
	if r.Items != 2 || r.PlannedPoints != 13 {
		t.Errorf("items/points = %d/%d, want 2/13", r.Items, r.PlannedPoints)
	}
	if r.Target != 42.5 || r.ReadinessScore != 66.67 {
		t.Errorf("target/score = %v/%v", r.Target, r.ReadinessScore)
	}
	if r.Decision != "NO-GO" || r.Warnings != 1 {
		t.Errorf("decision/warnings = %s/%d", r.Decision, r.Warnings)
	}
	if r.SnapshotDigest != "abc123" {
		t.Errorf("SnapshotDigest = %q", r.SnapshotDigest)
	}

	data, err := d.GetArtifact(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if !strings.Contains(data, `"runId": "run-1"`) {
		t.Errorf("stored artifact missing runId: %s", data)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	d := testDB(t)
	r, err := d.GetRun(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if r != nil {
		t.Errorf("expected nil, got %+v", r)
	}
	data, err := d.GetArtifact(context.Background(), "nope")
	if err != nil || data != "" {
		t.Errorf("GetArtifact() = %q, %v", data, err)
	}
}

func TestRecordRun_ReplacesChecks(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	a := testArtifact("run-1", time.Now().UTC(), readiness.DecisionNoGo)

	if err := d.RecordRun(ctx, a); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	a.Readiness.Checks = a.Readiness.Checks[:1]
	a.Readiness.Decision = readiness.DecisionGo
	if err := d.RecordRun(ctx, a); err != nil {
		t.Fatalf("second RecordRun: %v", err)
	}

	checks, err := d.GetCheckRuns(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetCheckRuns: %v", err)
	}
	if len(checks) != 1 || checks[0].Name != "ci" {
		t.Errorf("expected only the ci check, got %+v", checks)
	}
	runs, _ := d.ListRuns(ctx, 0)
	if len(runs) != 1 || runs[0].Decision != "GO" {
		t.Errorf("expected one GO run, got %+v", runs)
	}
}

func TestGetCheckRuns(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	d.RecordRun(ctx, testArtifact("run-1", time.Now().UTC(), readiness.DecisionNoGo))

	checks, err := d.GetCheckRuns(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetCheckRuns: %v", err)
	}
	if len(checks) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(checks))
	}
	if checks[1].Group != "team" || checks[1].Passed || checks[1].Detail != "bob is out" {
		t.Errorf("unexpected team check: %+v", checks[1])
	}
	if checks[2].Source != "command" {
		t.Errorf("Source = %q, want command", checks[2].Source)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	d.RecordRun(ctx, testArtifact("old", base, readiness.DecisionGo))
	d.RecordRun(ctx, testArtifact("new", base.Add(14*24*time.Hour), readiness.DecisionGo))
	d.RecordRun(ctx, testArtifact("mid", base.Add(7*24*time.Hour), readiness.DecisionNoGo))

	runs, err := d.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 || runs[0].RunID != "new" || runs[2].RunID != "old" {
		t.Errorf("unexpected order: %+v", runs)
	}

	limited, err := d.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns(2): %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs, got %d", len(limited))
	}
}

func TestRecordStage_GetStageEvents(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	events := []StageEvent{
		{RunID: "run-1", Stage: "metrics", Event: EventStarted},
		{RunID: "run-1", Stage: "metrics", Event: EventFinished, DurationMs: 12, Warnings: 2},
		{RunID: "run-2", Stage: "metrics", Event: EventStarted},
		{RunID: "run-1", Stage: "scoring", Event: EventFailed, Detail: "context canceled"},
	}
	for _, ev := range events {
		if err := d.RecordStage(ctx, ev); err != nil {
			t.Fatalf("RecordStage: %v", err)
		}
	}

	got, err := d.GetStageEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetStageEvents: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events for run-1, got %d", len(got))
	}
	if got[1].DurationMs != 12 || got[1].Warnings != 2 {
		t.Errorf("finished event = %+v", got[1])
	}
	if got[2].Event != EventFailed || got[2].Detail != "context canceled" {
		t.Errorf("failed event = %+v", got[2])
	}
}

func TestRecordStage_RejectsUnknownEvent(t *testing.T) {
	d := testDB(t)
	err := d.RecordStage(context.Background(), StageEvent{RunID: "r", Stage: "metrics", Event: "paused"})
	if err == nil {
		t.Error("expected CHECK constraint error for unknown event")
	}
}

func TestDeleteRun(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	d.RecordRun(ctx, testArtifact("run-1", time.Now().UTC(), readiness.DecisionGo))
	d.RecordStage(ctx, StageEvent{RunID: "run-1", Stage: "metrics", Event: EventStarted})

	if err := d.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if r, _ := d.GetRun(ctx, "run-1"); r != nil {
		t.Error("expected run to be deleted")
	}
	if checks, _ := d.GetCheckRuns(ctx, "run-1"); len(checks) != 0 {
		t.Errorf("expected checks to cascade, got %d", len(checks))
	}
	if events, _ := d.GetStageEvents(ctx, "run-1"); len(events) != 0 {
		t.Errorf("expected stage events removed, got %d", len(events))
	}
	if err := d.DeleteRun(ctx, "run-1"); err == nil {
		t.Error("expected error deleting a missing run")
	}
}
