// Package stage adapts the planning packages to a single typed stage
// contract so the orchestrator can run, log and record them uniformly.
package stage

import (
	"context"
	"fmt"

	"github.com/lucasnoah/cycleplan/internal/align"
	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/metrics"
	"github.com/lucasnoah/cycleplan/internal/readiness"
	"github.com/lucasnoah/cycleplan/internal/scoring"
	"github.com/lucasnoah/cycleplan/internal/selection"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// Stage is one step of a planning run. Run must not mutate its input.
type Stage[In, Out any] interface {
	Name() string
	Run(ctx context.Context, in In) (Out, error)
}

// Warner is implemented by stage outputs that carry recoverable warnings.
type Warner interface {
	StageWarnings() []diag.Warning
}

// Func turns a function into a Stage.
type Func[In, Out any] struct {
	StageName string
	Fn        func(ctx context.Context, in In) (Out, error)
}

func (f Func[In, Out]) Name() string { return f.StageName }

func (f Func[In, Out]) Run(ctx context.Context, in In) (Out, error) {
	return f.Fn(ctx, in)
}

// Metrics computes health, velocity, backlog, dependency and capacity metrics.
type Metrics struct {
	collector *metrics.Collector
}

// NewMetrics creates the metrics stage.
func NewMetrics(cfg *config.Config) *Metrics {
	return &Metrics{collector: metrics.NewCollector(cfg)}
}

func (s *Metrics) Name() string { return metrics.StageName }

func (s *Metrics) Run(ctx context.Context, snap *tracker.Snapshot) (*MetricsOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &MetricsOutput{Report: s.collector.Collect(snap)}, nil
}

// MetricsOutput wraps the metrics report.
type MetricsOutput struct {
	*metrics.Report
}

func (o *MetricsOutput) StageWarnings() []diag.Warning { return o.Warnings }

// Scoring filters and ranks the backlog.
type Scoring struct {
	scorer *scoring.Scorer
}

// NewScoring creates the scoring stage.
func NewScoring(cfg *config.Config) *Scoring {
	return &Scoring{scorer: scoring.NewScorer(cfg)}
}

func (s *Scoring) Name() string { return scoring.StageName }

func (s *Scoring) Run(ctx context.Context, snap *tracker.Snapshot) (*ScoringOutput, error) {
	res, err := s.scorer.Score(ctx, snap)
	if err != nil {
		return nil, err
	}
	return &ScoringOutput{Result: res}, nil
}

// ScoringOutput wraps the ranked backlog.
type ScoringOutput struct {
	*scoring.Result
}

func (o *ScoringOutput) StageWarnings() []diag.Warning { return o.Warnings }

// SelectionInput is the ranked backlog plus the capacity to fill.
type SelectionInput struct {
	Ranked   []scoring.ScoredItem
	Capacity metrics.Capacity
}

// Selection fills the cycle greedily up to capacity.
type Selection struct {
	selector *selection.Selector
}

// NewSelection creates the selection stage.
func NewSelection(cfg *config.Config) *Selection {
	return &Selection{selector: selection.NewSelector(cfg)}
}

func (s *Selection) Name() string { return selection.SelectStageName }

func (s *Selection) Run(ctx context.Context, in SelectionInput) (*PlanOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &PlanOutput{Plan: s.selector.Select(in.Ranked, in.Capacity)}, nil
}

// PlanOutput wraps a selection plan.
type PlanOutput struct {
	*selection.Plan
}

func (o *PlanOutput) StageWarnings() []diag.Warning { return o.Warnings }

// Composition rebalances the plan towards the category targets.
type Composition struct {
	balancer *selection.Balancer
}

// NewComposition creates the composition stage.
func NewComposition(cfg *config.Config) *Composition {
	return &Composition{balancer: selection.NewBalancer(cfg)}
}

func (s *Composition) Name() string { return selection.BalanceStageName }

func (s *Composition) Run(ctx context.Context, plan *selection.Plan) (*BalancedOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	balanced, comp := s.balancer.Balance(plan)

	// only the warnings this stage added
	added := balanced.Warnings[len(plan.Warnings):]
	return &BalancedOutput{Plan: balanced, Composition: comp, added: append([]diag.Warning{}, added...)}, nil
}

// BalancedOutput is the rebalanced plan and its composition report.
type BalancedOutput struct {
	Plan        *selection.Plan       `json:"plan"`
	Composition selection.Composition `json:"composition"`

	added []diag.Warning
}

func (o *BalancedOutput) StageWarnings() []diag.Warning { return o.added }

// Alignment maps planned items to code areas, queues and roles.
type Alignment struct {
	aligner *align.Aligner
}

// NewAlignment creates the alignment stage.
func NewAlignment(cfg *config.Config, searcher align.Searcher, analyzer align.Analyzer) *Alignment {
	return &Alignment{aligner: align.NewAligner(cfg, searcher, analyzer)}
}

func (s *Alignment) Name() string { return align.StageName }

func (s *Alignment) Run(ctx context.Context, plan *selection.Plan) (*AlignmentOutput, error) {
	res, err := s.aligner.Align(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &AlignmentOutput{Result: res}, nil
}

// AlignmentOutput wraps the alignment result.
type AlignmentOutput struct {
	*align.Result
}

func (o *AlignmentOutput) StageWarnings() []diag.Warning { return o.Warnings }

// Readiness collects checks from every provider once and evaluates the gate.
type Readiness struct {
	gate      *readiness.Gate
	providers []readiness.Provider
}

// NewReadiness creates the readiness stage.
func NewReadiness(cfg *config.Config, providers []readiness.Provider) *Readiness {
	return &Readiness{gate: readiness.NewGate(cfg), providers: providers}
}

func (s *Readiness) Name() string { return readiness.StageName }

func (s *Readiness) Run(ctx context.Context, pc readiness.Context) (*ReadinessOutput, error) {
	checks, warnings, err := s.gate.Collect(ctx, s.providers)
	if err != nil {
		return nil, fmt.Errorf("collecting readiness checks: %w", err)
	}
	res := s.gate.Evaluate(checks, pc)
	res.Warnings = append(append([]diag.Warning{}, warnings...), res.Warnings...)
	return &ReadinessOutput{Result: res}, nil
}

// ReadinessOutput wraps the gate result.
type ReadinessOutput struct {
	*readiness.Result
}

func (o *ReadinessOutput) StageWarnings() []diag.Warning { return o.Warnings }
