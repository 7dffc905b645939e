package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lucasnoah/cycleplan/internal/pipeline"
)

// Postgres records runs to a shared PostgreSQL database. It mirrors the
// SQLite recorder for teams that keep planning history centrally.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS planning_runs (
    run_id          TEXT PRIMARY KEY,
    config          TEXT NOT NULL,
    snapshot_digest TEXT,
    timestamp       TIMESTAMPTZ NOT NULL,
    items           INTEGER NOT NULL,
    planned_points  INTEGER NOT NULL,
    point_capacity  DOUBLE PRECISION NOT NULL,
    target          DOUBLE PRECISION NOT NULL,
    readiness_score DOUBLE PRECISION NOT NULL,
    decision        TEXT NOT NULL,
    warnings        INTEGER NOT NULL DEFAULT 0,
    artifact        JSONB,
    recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stage_events (
    id          BIGSERIAL PRIMARY KEY,
    run_id      TEXT NOT NULL,
    stage       TEXT NOT NULL,
    event       TEXT NOT NULL,
    duration_ms BIGINT,
    warnings    INTEGER NOT NULL DEFAULT 0,
    detail      TEXT,
    timestamp   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS check_runs (
    id          BIGSERIAL PRIMARY KEY,
    run_id      TEXT NOT NULL REFERENCES planning_runs(run_id) ON DELETE CASCADE,
    check_group TEXT NOT NULL,
    check_name  TEXT NOT NULL,
    passed      BOOLEAN NOT NULL,
    detail      TEXT,
    source      TEXT,
    timestamp   TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

// RecordStage inserts a stage event.
func (p *Postgres) RecordStage(ctx context.Context, ev StageEvent) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO stage_events (run_id, stage, event, duration_ms, warnings, detail) VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.RunID, ev.Stage, ev.Event, ev.DurationMs, ev.Warnings, ev.Detail)
	if err != nil {
		return fmt.Errorf("record stage event: %w", err)
	}
	return nil
}

// RecordRun upserts a finished run and replaces its readiness checks.
func (p *Postgres) RecordRun(ctx context.Context, a *pipeline.Artifact) error {
	data, err := pipeline.EncodeJSON(a)
	if err != nil {
		return err
	}
	row := RunRow(a)

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO planning_runs
		 (run_id, config, snapshot_digest, timestamp, items, planned_points, point_capacity, target, readiness_score, decision, warnings, artifact)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (run_id) DO UPDATE SET
		   config = EXCLUDED.config, snapshot_digest = EXCLUDED.snapshot_digest, timestamp = EXCLUDED.timestamp,
		   items = EXCLUDED.items, planned_points = EXCLUDED.planned_points, point_capacity = EXCLUDED.point_capacity,
		   target = EXCLUDED.target, readiness_score = EXCLUDED.readiness_score, decision = EXCLUDED.decision,
		   warnings = EXCLUDED.warnings, artifact = EXCLUDED.artifact, recorded_at = now()`,
		row.RunID, row.Config, row.SnapshotDigest, a.Timestamp, row.Items, row.PlannedPoints,
		row.PointCapacity, row.Target, row.ReadinessScore, row.Decision, row.Warnings, data)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM check_runs WHERE run_id = $1`, row.RunID); err != nil {
		return fmt.Errorf("clear check runs: %w", err)
	}
	batch := &pgx.Batch{}
	for _, c := range a.Readiness.Checks {
		batch.Queue(
			`INSERT INTO check_runs (run_id, check_group, check_name, passed, detail, source, timestamp) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			row.RunID, string(c.Group), c.Name, c.Passed, c.Detail, c.Source, a.Timestamp)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("record checks: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// GetRun returns a recorded run, or nil if it does not exist.
func (p *Postgres) GetRun(ctx context.Context, runID string) (*PlanningRun, error) {
	var r PlanningRun
	var digest *string
	err := p.pool.QueryRow(ctx,
		`SELECT run_id, config, snapshot_digest, to_char(timestamp AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
		        items, planned_points, point_capacity, target, readiness_score, decision, warnings
		 FROM planning_runs WHERE run_id = $1`, runID,
	).Scan(&r.RunID, &r.Config, &digest, &r.Timestamp, &r.Items, &r.PlannedPoints,
		&r.PointCapacity, &r.Target, &r.ReadinessScore, &r.Decision, &r.Warnings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	if digest != nil {
		r.SnapshotDigest = *digest
	}
	return &r, nil
}
