package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lucasnoah/cycleplan/internal/pipeline"
)

// Stage event names.
const (
	EventStarted  = "started"
	EventFinished = "finished"
	EventFailed   = "failed"
)

// StageEvent represents a row in the stage_events table.
type StageEvent struct {
	ID         int
	RunID      string
	Stage      string
	Event      string
	DurationMs int64
	Warnings   int
	Detail     string
	Timestamp  string
}

// PlanningRun represents a row in the planning_runs table.
type PlanningRun struct {
	RunID          string
	Config         string
	SnapshotDigest string
	Timestamp      string
	Items          int
	PlannedPoints  int
	PointCapacity  float64
	Target         float64
	ReadinessScore float64
	Decision       string
	Warnings       int
}

// CheckRun represents a row in the check_runs table.
type CheckRun struct {
	ID        int
	RunID     string
	Group     string
	Name      string
	Passed    bool
	Detail    string
	Source    string
	Timestamp string
}

// RunRow flattens an artifact into its planning_runs row.
func RunRow(a *pipeline.Artifact) PlanningRun {
	return PlanningRun{
		RunID:          a.RunID,
		Config:         a.Config,
		SnapshotDigest: a.SnapshotDigest,
		Timestamp:      a.Timestamp.UTC().Format(time.RFC3339),
		Items:          len(a.ScoredSelection),
		PlannedPoints:  a.PlannedPoints(),
		PointCapacity:  a.Capacity.PointCapacity,
		Target:         a.Capacity.Target,
		ReadinessScore: a.Readiness.Score,
		Decision:       string(a.Readiness.Decision),
		Warnings:       len(a.Warnings),
	}
}

// RecordStage inserts a stage event.
func (d *DB) RecordStage(ctx context.Context, ev StageEvent) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO stage_events (run_id, stage, event, duration_ms, warnings, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.Stage, ev.Event, ev.DurationMs, ev.Warnings, ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("record stage event: %w", err)
	}
	return nil
}

// RecordRun stores a finished run and its readiness checks. Re-recording
// the same run ID replaces the previous row and checks.
func (d *DB) RecordRun(ctx context.Context, a *pipeline.Artifact) error {
	data, err := pipeline.EncodeJSON(a)
	if err != nil {
		return err
	}
	row := RunRow(a)

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM check_runs WHERE run_id = ?`, row.RunID); err != nil {
		return fmt.Errorf("clear check runs: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO planning_runs
		 (run_id, config, snapshot_digest, timestamp, items, planned_points, point_capacity, target, readiness_score, decision, warnings, artifact)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.RunID, row.Config, row.SnapshotDigest, row.Timestamp, row.Items, row.PlannedPoints,
		row.PointCapacity, row.Target, row.ReadinessScore, row.Decision, row.Warnings, string(data),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	for _, c := range a.Readiness.Checks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO check_runs (run_id, check_group, check_name, passed, detail, source, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.RunID, string(c.Group), c.Name, c.Passed, c.Detail, c.Source, row.Timestamp,
		); err != nil {
			return fmt.Errorf("record check %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

const runColumns = `run_id, config, snapshot_digest, timestamp, items, planned_points, point_capacity, target, readiness_score, decision, warnings`

func scanRun(sc interface{ Scan(...any) error }) (PlanningRun, error) {
	var r PlanningRun
	var digest sql.NullString
	err := sc.Scan(&r.RunID, &r.Config, &digest, &r.Timestamp, &r.Items, &r.PlannedPoints,
		&r.PointCapacity, &r.Target, &r.ReadinessScore, &r.Decision, &r.Warnings)
	if digest.Valid {
		r.SnapshotDigest = digest.String
	}
	return r, err
}

// ListRuns returns recorded runs, newest first. limit <= 0 returns all.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]PlanningRun, error) {
	q := `SELECT ` + runColumns + ` FROM planning_runs ORDER BY timestamp DESC, run_id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := d.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []PlanningRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a recorded run, or nil if it does not exist.
func (d *DB) GetRun(ctx context.Context, runID string) (*PlanningRun, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM planning_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// GetArtifact returns the stored artifact JSON of a run, or "" if the run
// does not exist.
func (d *DB) GetArtifact(ctx context.Context, runID string) (string, error) {
	var data sql.NullString
	err := d.conn.QueryRowContext(ctx, `SELECT artifact FROM planning_runs WHERE run_id = ?`, runID).Scan(&data)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get artifact: %w", err)
	}
	return data.String, nil
}

// GetStageEvents returns a run's stage events in insertion order.
func (d *DB) GetStageEvents(ctx context.Context, runID string) ([]StageEvent, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, run_id, stage, event, duration_ms, warnings, detail, timestamp
		 FROM stage_events WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get stage events: %w", err)
	}
	defer rows.Close()

	var events []StageEvent
	for rows.Next() {
		var e StageEvent
		var duration sql.NullInt64
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.Stage, &e.Event, &duration, &e.Warnings, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan stage event: %w", err)
		}
		if duration.Valid {
			e.DurationMs = duration.Int64
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetCheckRuns returns a run's readiness checks in insertion order.
func (d *DB) GetCheckRuns(ctx context.Context, runID string) ([]CheckRun, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, run_id, check_group, check_name, passed, detail, source, timestamp
		 FROM check_runs WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get check runs: %w", err)
	}
	defer rows.Close()

	var runs []CheckRun
	for rows.Next() {
		var c CheckRun
		var detail, source sql.NullString
		if err := rows.Scan(&c.ID, &c.RunID, &c.Group, &c.Name, &c.Passed, &detail, &source, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}
		if detail.Valid {
			c.Detail = detail.String
		}
		if source.Valid {
			c.Source = source.String
		}
		runs = append(runs, c)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run, its checks and its stage events.
func (d *DB) DeleteRun(ctx context.Context, runID string) error {
	res, err := d.conn.ExecContext(ctx, `DELETE FROM planning_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %q not found", runID)
	}
	if _, err := d.conn.ExecContext(ctx, `DELETE FROM stage_events WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete stage events: %w", err)
	}
	return nil
}
