package pipeline

import (
	"time"

	"github.com/lucasnoah/cycleplan/internal/align"
	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/metrics"
	"github.com/lucasnoah/cycleplan/internal/readiness"
	"github.com/lucasnoah/cycleplan/internal/scoring"
	"github.com/lucasnoah/cycleplan/internal/selection"
)

// Artifact is the complete output of one planning run. Maps are keyed by
// item ID and encode in sorted key order, so identical inputs produce
// byte-identical JSON.
type Artifact struct {
	RunID            string                            `json:"runId"`
	Timestamp        time.Time                         `json:"timestamp"`
	Config           string                            `json:"config"`
	SnapshotDigest   string                            `json:"snapshotDigest"`
	CycleHealth      metrics.CycleHealth               `json:"cycleHealth"`
	Velocity         metrics.Velocity                  `json:"velocity"`
	Backlog          metrics.BacklogReadiness          `json:"backlog"`
	Dependencies     metrics.DependencyRisk            `json:"dependencies"`
	Capacity         metrics.Capacity                  `json:"capacity"`
	AtRisk           []metrics.AtRiskItem              `json:"atRisk"`
	Carryover        metrics.Carryover                 `json:"carryover"`
	ScoredSelection  []SelectedItem                    `json:"scoredSelection"`
	Excluded         []scoring.Exclusion               `json:"excluded"`
	Decisions        []selection.Decision              `json:"decisions"`
	Composition      selection.Composition             `json:"composition"`
	Assignments      map[string]align.Assignment       `json:"assignments"`
	WorkQueues       align.WorkQueues                  `json:"workQueues"`
	TestRequirements map[string]align.TestRequirements `json:"testRequirements"`
	Alignment        []align.Detail                    `json:"alignment"`
	Readiness        Readiness                         `json:"readiness"`
	Tiers            selection.Tiers                   `json:"tiers"`
	Warnings         []diag.Warning                    `json:"warnings"`
}

// SelectedItem is one planned item with its score breakdown.
type SelectedItem struct {
	ID         string           `json:"id"`
	Identifier string           `json:"identifier,omitempty"`
	Title      string           `json:"title"`
	Estimate   int              `json:"estimate"`
	Priority   string           `json:"priority"`
	Category   scoring.Category `json:"category"`
	Score      float64          `json:"score"`
	Factors    scoring.Factors  `json:"factors"`
	Tier       selection.Tier   `json:"tier"`
}

// Readiness is the gate outcome as carried in the artifact.
type Readiness struct {
	Score       float64             `json:"score"`
	Decision    readiness.Decision  `json:"decision"`
	Threshold   float64             `json:"threshold"`
	Checks      []readiness.Check   `json:"checks"`
	Risks       []readiness.Risk    `json:"risks"`
	Mitigations map[string][]string `json:"mitigations"`
	Advisories  []string            `json:"advisories"`
}

// ReadinessFrom copies the artifact-facing fields of a gate result.
func ReadinessFrom(r *readiness.Result) Readiness {
	return Readiness{
		Score:       r.Score,
		Decision:    r.Decision,
		Threshold:   r.Threshold,
		Checks:      r.Checks,
		Risks:       r.Risks,
		Mitigations: r.Mitigations,
		Advisories:  r.Advisories,
	}
}

// SelectedItems flattens a plan into artifact rows in plan order.
func SelectedItems(plan *selection.Plan) []SelectedItem {
	out := make([]SelectedItem, 0, len(plan.Items))
	for _, si := range plan.Items {
		out = append(out, SelectedItem{
			ID:         si.Item.ID,
			Identifier: si.Item.Identifier,
			Title:      si.Item.Title,
			Estimate:   si.Points(),
			Priority:   si.Item.Priority.String(),
			Category:   si.Category,
			Score:      si.Score,
			Factors:    si.Factors,
			Tier:       plan.Tiers.Of(si.Item.ID),
		})
	}
	return out
}

// PlannedPoints sums the estimates of the selected items.
func (a *Artifact) PlannedPoints() int {
	total := 0
	for _, it := range a.ScoredSelection {
		total += it.Estimate
	}
	return total
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	RunID         string             `json:"runId"`
	Timestamp     time.Time          `json:"timestamp"`
	Config        string             `json:"config"`
	Items         int                `json:"items"`
	PlannedPoints int                `json:"plannedPoints"`
	Target        float64            `json:"target"`
	Score         float64            `json:"readinessScore"`
	Decision      readiness.Decision `json:"decision"`
	Warnings      int                `json:"warnings"`
}

// Summary returns the listing view of the artifact.
func (a *Artifact) Summary() RunSummary {
	return RunSummary{
		RunID:         a.RunID,
		Timestamp:     a.Timestamp,
		Config:        a.Config,
		Items:         len(a.ScoredSelection),
		PlannedPoints: a.PlannedPoints(),
		Target:        a.Capacity.Target,
		Score:         a.Readiness.Score,
		Decision:      a.Readiness.Decision,
		Warnings:      len(a.Warnings),
	}
}
