package metrics

import (
	"fmt"
	"math"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// StageName identifies this stage in warnings and events.
const StageName = "metrics"

// Report is the output of the metrics stage.
type Report struct {
	CycleHealth  CycleHealth      `json:"cycleHealth"`
	Velocity     Velocity         `json:"velocity"`
	Backlog      BacklogReadiness `json:"backlog"`
	Dependencies DependencyRisk   `json:"dependencies"`
	Capacity     Capacity         `json:"capacity"`
	AtRisk       []AtRiskItem     `json:"atRisk"`
	Carryover    Carryover        `json:"carryover"`
	Warnings     []diag.Warning   `json:"warnings"`
}

// Collector computes team and backlog health metrics from a snapshot.
type Collector struct {
	cfg *config.Config
}

// NewCollector creates a Collector.
func NewCollector(cfg *config.Config) *Collector {
	return &Collector{cfg: cfg}
}

// Collect computes every metric. Missing inputs never fail the stage; they
// degrade to documented defaults and add warnings to the report.
func (c *Collector) Collect(snap *tracker.Snapshot) *Report {
	cfg := c.cfg
	r := &Report{Warnings: []diag.Warning{}}

	r.CycleHealth = cycleHealth(snap.ActiveCycle, snap.AsOf, cfg.Health.AtRiskRatio)
	if snap.ActiveCycle == nil {
		r.Warnings = append(r.Warnings, diag.New(diag.DataUnavailable, StageName, "no active cycle; health reported as %s", NoActiveCycle))
	}

	v, err := velocity(snap.RecentClosed(cfg.Velocity.Samples), cfg.Velocity.HighConfidenceCV, cfg.Velocity.MediumConfidenceCV)
	if err != nil {
		r.Warnings = append(r.Warnings, diag.FromError(StageName, err))
	}
	r.Velocity = v

	r.Backlog = backlogReadiness(snap.Backlog, cfg.Backlog.ReadyDescriptionMin)

	all := make([]tracker.WorkItem, 0, len(snap.Backlog))
	if snap.ActiveCycle != nil {
		all = append(all, snap.ActiveCycle.Items...)
	}
	all = append(all, snap.Backlog...)
	r.Dependencies = dependencyRisk(all, snap.OpenItems(), cfg.Dependencies)

	r.AtRisk = atRiskItems(snap.ActiveCycle, snap.AsOf, cfg.Capacity)
	r.Carryover = carryover(snap.ActiveCycle, snap.AsOf, r.Velocity.Average, cfg.Capacity)

	capacity, fellBack := teamCapacity(snap.Roster.ActiveCount(), r.Velocity.Average, r.Carryover.Points, cfg.Capacity)
	if fellBack {
		r.Warnings = append(r.Warnings, diag.New(diag.DataUnavailable, StageName,
			"no active team members; capacity taken from %s (%.1f points)", capacity.Source, capacity.PointCapacity))
	}
	r.Capacity = capacity

	return r
}

// Summary returns a one-line description of the report.
func (r *Report) Summary() string {
	return fmt.Sprintf("health=%s velocity=%.1f (%s) capacity=%.1f target=%.1f readiness=%.0f%% dependency_risk=%s",
		r.CycleHealth.Status, r.Velocity.Average, r.Velocity.Confidence,
		r.Capacity.PointCapacity, r.Capacity.Target, r.Backlog.Score, r.Dependencies.Risk)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
