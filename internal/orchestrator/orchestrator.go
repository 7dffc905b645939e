package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/cycleplan/internal/align"
	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/db"
	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/logging"
	"github.com/lucasnoah/cycleplan/internal/pipeline"
	"github.com/lucasnoah/cycleplan/internal/readiness"
	"github.com/lucasnoah/cycleplan/internal/stage"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

const stageName = "orchestrator"

// Recorder receives stage events and finished runs for audit.
type Recorder interface {
	RecordStage(ctx context.Context, ev db.StageEvent) error
	RecordRun(ctx context.Context, a *pipeline.Artifact) error
}

// Input is everything a planning run reads. The snapshot is frozen; the
// searcher, analyzer and providers are the run's only other collaborators.
type Input struct {
	Snapshot  *tracker.Snapshot
	Warnings  []diag.Warning // raised while gathering the snapshot
	Searcher  align.Searcher
	Analyzer  align.Analyzer
	Providers []readiness.Provider
}

// Orchestrator runs the planning stages strictly in order.
type Orchestrator struct {
	cfg      *config.Config
	store    *pipeline.Store // optional
	recorder Recorder        // optional
	log      *slog.Logger
	progress io.Writer // live progress output; nil = silent
	now      func() time.Time
}

// NewOrchestrator creates an Orchestrator. store and recorder may be nil.
func NewOrchestrator(cfg *config.Config, store *pipeline.Store, recorder Recorder, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{cfg: cfg, store: store, recorder: recorder, log: log, now: time.Now}
}

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (o *Orchestrator) SetProgress(w io.Writer) {
	o.progress = w
}

// logf prints a progress line if a progress writer is configured.
func (o *Orchestrator) logf(format string, args ...any) {
	if o.progress != nil {
		fmt.Fprintf(o.progress, "  → "+format+"\n", args...)
	}
}

// RunID derives the deterministic run ID from the snapshot and the config.
func RunID(snap *tracker.Snapshot, cfg *config.Config) (string, error) {
	snapDigest, err := snap.Digest()
	if err != nil {
		return "", err
	}
	cfgData, err := config.Marshal(cfg)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(snapDigest))
	h.Write(cfgData)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(hex.EncodeToString(h.Sum(nil)))).String(), nil
}

// run carries per-run state through the stage helpers.
type run struct {
	id       string
	warnings []diag.Warning
}

// Run executes metrics, scoring, selection, composition, alignment and
// readiness, then assembles the artifact. Recoverable conditions become
// warnings; the only error is context cancellation or an unusable input.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*pipeline.Artifact, error) {
	if in.Snapshot == nil {
		return nil, fmt.Errorf("run plan: no snapshot")
	}
	snap := in.Snapshot

	id, err := RunID(snap, o.cfg)
	if err != nil {
		return nil, fmt.Errorf("derive run id: %w", err)
	}
	digest, _ := snap.Digest()

	r := &run{id: id, warnings: append([]diag.Warning{}, in.Warnings...)}
	log := o.log.With("run", id)
	log.Info("planning run started", "config", o.cfg.Name, "backlog", len(snap.Backlog), "as_of", snap.AsOf)
	o.logf("run %s: %d backlog items as of %s", id, len(snap.Backlog), snap.AsOf.Format(time.RFC3339))

	m, err := runStage(ctx, o, r, stage.NewMetrics(o.cfg), snap)
	if err != nil {
		return nil, err
	}
	o.logf("metrics: %s", m.Summary())

	scored, err := runStage(ctx, o, r, stage.NewScoring(o.cfg), snap)
	if err != nil {
		return nil, err
	}
	o.logf("scoring: %d scored, %d excluded", len(scored.Items), len(scored.Excluded))

	selected, err := runStage(ctx, o, r, stage.NewSelection(o.cfg), stage.SelectionInput{
		Ranked:   scored.Items,
		Capacity: m.Capacity,
	})
	if err != nil {
		return nil, err
	}
	o.logf("selection: %s", selected.Summary())

	balanced, err := runStage(ctx, o, r, stage.NewComposition(o.cfg), selected.Plan)
	if err != nil {
		return nil, err
	}
	plan := balanced.Plan
	o.logf("composition: bug %.0f%% tech_debt %.0f%% feature %.0f%% (%d swaps)",
		balanced.Composition.Bug*100, balanced.Composition.TechDebt*100, balanced.Composition.Feature*100,
		len(balanced.Composition.Swaps))

	aligned, err := runStage(ctx, o, r, stage.NewAlignment(o.cfg, in.Searcher, in.Analyzer), plan)
	if err != nil {
		return nil, err
	}
	o.logf("alignment: %d immediate, %d standard, %d background, %d review",
		len(aligned.WorkQueues.Immediate), len(aligned.WorkQueues.Standard),
		len(aligned.WorkQueues.Background), len(aligned.WorkQueues.Review))

	pc := readiness.Context{
		HighRiskItems:      highRiskItems(aligned.Details),
		ConstraintWarnings: diag.Count(r.warnings, diag.ConstraintViolation),
		VelocityConfidence: string(m.Velocity.Confidence),
	}
	ready, err := runStage(ctx, o, r, stage.NewReadiness(o.cfg, in.Providers), pc)
	if err != nil {
		return nil, err
	}
	o.logf("readiness: %.2f%% → %s", ready.Score, ready.Decision)

	a := &pipeline.Artifact{
		RunID:            id,
		Timestamp:        snap.AsOf.UTC(),
		Config:           o.cfg.Name,
		SnapshotDigest:   digest,
		CycleHealth:      m.CycleHealth,
		Velocity:         m.Velocity,
		Backlog:          m.Backlog,
		Dependencies:     m.Dependencies,
		Capacity:         m.Capacity,
		AtRisk:           m.AtRisk,
		Carryover:        m.Carryover,
		ScoredSelection:  pipeline.SelectedItems(plan),
		Excluded:         scored.Excluded,
		Decisions:        plan.Decisions,
		Composition:      balanced.Composition,
		Assignments:      aligned.Assignments,
		WorkQueues:       aligned.WorkQueues,
		TestRequirements: aligned.TestRequirements,
		Alignment:        aligned.Details,
		Readiness:        pipeline.ReadinessFrom(ready.Result),
		Tiers:            plan.Tiers,
		Warnings:         r.warnings,
	}
	o.persist(ctx, log, a)

	log.Info("planning run finished", "items", len(a.ScoredSelection), "points", a.PlannedPoints(),
		"decision", a.Readiness.Decision, "warnings", len(a.Warnings))
	return a, nil
}

// persist writes the artifact to the store and the recorder. Failures are
// logged and appended to the returned artifact's warnings.
func (o *Orchestrator) persist(ctx context.Context, log *slog.Logger, a *pipeline.Artifact) {
	var failed []diag.Warning
	if o.store != nil {
		if err := o.store.SaveArtifact(a); err != nil {
			log.Warn("saving artifact failed", "error", err)
			failed = append(failed, diag.New(diag.DataUnavailable, stageName, "artifact not persisted: %v", err))
		}
	}
	if o.recorder != nil {
		if err := o.recorder.RecordRun(ctx, a); err != nil {
			log.Warn("recording run failed", "error", err)
			failed = append(failed, diag.New(diag.DataUnavailable, stageName, "run not recorded: %v", err))
		}
	}
	a.Warnings = append(a.Warnings, failed...)
}

// runStage runs one stage, logs and records its start and finish, persists
// its output and collects its warnings.
func runStage[In any, Out stage.Warner](ctx context.Context, o *Orchestrator, r *run, s stage.Stage[In, Out], in In) (Out, error) {
	name := s.Name()
	log := o.log.With("run", r.id, "stage", name)
	start := o.now()

	if err := ctx.Err(); err != nil {
		var zero Out
		return zero, fmt.Errorf("%s: %w", name, err)
	}

	log.Debug("stage started")
	o.record(ctx, log, db.StageEvent{RunID: r.id, Stage: name, Event: db.EventStarted})

	out, err := s.Run(ctx, in)
	elapsed := o.now().Sub(start)
	if err != nil {
		log.Error("stage failed", "error", err, "duration", elapsed)
		o.record(context.WithoutCancel(ctx), log, db.StageEvent{
			RunID: r.id, Stage: name, Event: db.EventFailed, DurationMs: elapsed.Milliseconds(), Detail: err.Error(),
		})
		return out, fmt.Errorf("%s: %w", name, err)
	}

	ws := out.StageWarnings()
	r.warnings = append(r.warnings, ws...)
	for _, w := range ws {
		log.Warn(w.Message, "kind", w.Kind)
	}
	log.Info("stage finished", "duration", elapsed, "warnings", len(ws))
	o.record(ctx, log, db.StageEvent{
		RunID: r.id, Stage: name, Event: db.EventFinished, DurationMs: elapsed.Milliseconds(), Warnings: len(ws),
	})

	if o.store != nil {
		if err := o.store.SaveStage(r.id, name, out); err != nil {
			log.Warn("saving stage output failed", "error", err)
			r.warnings = append(r.warnings, diag.New(diag.DataUnavailable, stageName, "%s output not persisted: %v", name, err))
		}
	}
	return out, nil
}

// record forwards a stage event to the recorder. Recording is best effort.
func (o *Orchestrator) record(ctx context.Context, log *slog.Logger, ev db.StageEvent) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordStage(ctx, ev); err != nil {
		log.Warn("recording stage event failed", "event", ev.Event, "error", err)
	}
}

func highRiskItems(details []align.Detail) []string {
	var ids []string
	for _, d := range details {
		if d.Risk == align.RiskHigh {
			ids = append(ids, d.ItemID)
		}
	}
	return ids
}
