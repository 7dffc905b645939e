package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/lucasnoah/cycleplan/internal/align"
	"github.com/lucasnoah/cycleplan/internal/checks"
	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/db"
	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/github"
	"github.com/lucasnoah/cycleplan/internal/orchestrator"
	"github.com/lucasnoah/cycleplan/internal/pipeline"
	"github.com/lucasnoah/cycleplan/internal/readiness"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// newSource picks the tracker source. A snapshot path always wins over the
// configured source so a run can be replayed offline.
func newSource(cfg *config.Config, snapshotPath string) (tracker.Source, error) {
	if snapshotPath != "" {
		return tracker.NewFileSource(snapshotPath)
	}
	switch cfg.Tracker.Source {
	case "github":
		if cfg.Tracker.Repo == "" {
			return nil, fmt.Errorf("tracker.repo is required for the github source")
		}
		client := github.NewClient(&github.ExecRunner{}, cfg.Tracker.Repo)
		return tracker.NewGitHubSource(client, cfg.Tracker.CycleLengthDays, cfg.Tracker.BacklogLimit, cfg.Tracker.Members), nil
	default:
		if cfg.Tracker.Snapshot == "" {
			return nil, fmt.Errorf("tracker.snapshot is required for the file source")
		}
		return tracker.NewFileSource(cfg.Tracker.Snapshot)
	}
}

// gather freezes the tracker state into a snapshot.
func gather(ctx context.Context, cfg *config.Config, snapshotPath string) (*tracker.Snapshot, []diag.Warning, error) {
	src, err := newSource(cfg, snapshotPath)
	if err != nil {
		return nil, nil, err
	}
	snap, warnings := tracker.Gather(ctx, src, tracker.GatherOpts{
		Timeout:      cfg.Tracker.Timeout(),
		ClosedCycles: cfg.Tracker.ClosedCycles,
		Now:          func() time.Time { return time.Now().UTC() },
	})
	return snap, warnings, nil
}

// newSearcher builds the code searcher over cfg.Align.Root.
func newSearcher(cfg *config.Config) (align.Searcher, error) {
	filter, err := align.NewPathFilter(cfg.Align.Include, cfg.Align.Exclude)
	if err != nil {
		return nil, err
	}
	if cfg.Align.Search == "git" {
		return align.NewGitGrepSearcher(&github.ExecRunner{}, cfg.Align.Root, filter), nil
	}
	return align.NewFileSearcher(afero.NewOsFs(), cfg.Align.Root, filter), nil
}

// newAnalyzer loads the static-analysis report if one is configured. A
// missing report is not an error: complexity and coverage become unknown.
func newAnalyzer(cfg *config.Config, log *slog.Logger) align.Analyzer {
	if cfg.Align.AnalysisReport == "" {
		return nil
	}
	a, err := align.LoadReport(afero.NewOsFs(), cfg.Align.AnalysisReport)
	if err != nil {
		log.Warn("analysis report unavailable", "path", cfg.Align.AnalysisReport, "error", err)
		return nil
	}
	return a
}

func newProviders(cfg *config.Config, branch string) ([]readiness.Provider, error) {
	opts := readiness.ProviderOpts{
		Runner: checks.NewRunner(&checks.ExecRunner{}),
		Dir:    cfg.Align.Root,
		Branch: branch,
	}
	if cfg.Readiness.GitHubCI && cfg.Tracker.Repo != "" {
		opts.GitHub = github.NewClient(&github.ExecRunner{}, cfg.Tracker.Repo)
	}
	return readiness.BuildProviders(cfg.Readiness, opts)
}

// teeRecorder fans audit events out to several recorders.
type teeRecorder []orchestrator.Recorder

func (t teeRecorder) RecordStage(ctx context.Context, ev db.StageEvent) error {
	var errs []error
	for _, r := range t {
		errs = append(errs, r.RecordStage(ctx, ev))
	}
	return errors.Join(errs...)
}

func (t teeRecorder) RecordRun(ctx context.Context, a *pipeline.Artifact) error {
	var errs []error
	for _, r := range t {
		errs = append(errs, r.RecordRun(ctx, a))
	}
	return errors.Join(errs...)
}

// newRecorder opens the SQLite history database and, when a DSN is
// configured, the Postgres mirror. The returned cleanup closes both.
func newRecorder(ctx context.Context, cfg *config.Config) (orchestrator.Recorder, func(), error) {
	d, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Persistence.PostgresDSN == "" {
		return d, func() { d.Close() }, nil
	}

	pg, err := db.OpenPostgres(ctx, cfg.Persistence.PostgresDSN)
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		d.Close()
		return nil, nil, err
	}
	return teeRecorder{d, pg}, func() {
		pg.Close()
		d.Close()
	}, nil
}
