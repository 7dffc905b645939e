// Package selection turns a ranked backlog into a capacity-bounded cycle plan
// and rebalances its category mix.
package selection

import (
	"fmt"
	"sort"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/metrics"
	"github.com/lucasnoah/cycleplan/internal/scoring"
)

// Stage names.
const (
	SelectStageName  = "selection"
	BalanceStageName = "composition"
)

// Decision reasons.
const (
	ReasonAccepted        = "accepted"
	ReasonFill            = "fill"
	ReasonExceedsCapacity = "exceeds_capacity"
	ReasonQuotaTechDebt   = "quota_tech_debt"
	ReasonQuotaBug        = "quota_bug"
	ReasonTargetReached   = "target_reached"
	ReasonSwappedIn       = "swapped_in"
	ReasonSwappedOut      = "swapped_out"
)

// Decision records what the selector did with one candidate.
type Decision struct {
	ItemID   string           `json:"itemId"`
	Points   int              `json:"points"`
	Category scoring.Category `json:"category"`
	Accepted bool             `json:"accepted"`
	Reason   string           `json:"reason"`
}

// Plan is the outcome of selection. Items keep descending score order.
type Plan struct {
	PointCapacity float64              `json:"pointCapacity"`
	Target        float64              `json:"target"`
	StopAt        float64              `json:"stopAt"`
	Used          int                  `json:"used"`
	Items         []scoring.ScoredItem `json:"items"`
	Decisions     []Decision           `json:"decisions"`
	Tiers         Tiers                `json:"tiers"`
	Warnings      []diag.Warning       `json:"warnings"`

	// Pool is the full ranked candidate list the plan was drawn from.
	Pool []scoring.ScoredItem `json:"-"`
}

// IDs returns the selected item IDs in plan order.
func (p *Plan) IDs() []string {
	ids := make([]string, 0, len(p.Items))
	for i := range p.Items {
		ids = append(ids, p.Items[i].Item.ID)
	}
	return ids
}

// Selector runs the quota-constrained greedy pass.
type Selector struct {
	cfg *config.Config
}

// NewSelector creates a Selector.
func NewSelector(cfg *config.Config) *Selector {
	return &Selector{cfg: cfg}
}

// Select walks ranked in order and accepts items until the stop threshold is
// reached or the list is exhausted. The sum of accepted estimates never
// exceeds capacity.Target.
func (s *Selector) Select(ranked []scoring.ScoredItem, capacity metrics.Capacity) *Plan {
	sc := s.cfg.Selection
	target := capacity.Target
	plan := &Plan{
		PointCapacity: capacity.PointCapacity,
		Target:        target,
		StopAt:        round2(sc.StopRatio * target),
		Decisions:     make([]Decision, 0, len(ranked)),
		Warnings:      []diag.Warning{},
		Pool:          ranked,
	}

	accepted := make([]bool, len(ranked))
	counts := make(map[scoring.Category]int)
	selected := 0
	used := 0
	stopAt := sc.StopRatio * target

	for i := range ranked {
		it := &ranked[i]
		d := Decision{ItemID: it.Item.ID, Points: it.Points(), Category: it.Category}

		switch {
		case float64(used) >= stopAt && selected > 0:
			d.Reason = ReasonTargetReached
		case float64(used+d.Points) > target:
			d.Reason = ReasonExceedsCapacity
		case it.Category == scoring.TechDebt && overQuota(counts[scoring.TechDebt], selected, sc.TechDebtQuota):
			d.Reason = ReasonQuotaTechDebt
		case it.Category == scoring.Bug && overQuota(counts[scoring.Bug], selected, sc.BugQuota):
			d.Reason = ReasonQuotaBug
		default:
			d.Accepted = true
			d.Reason = ReasonAccepted
			accepted[i] = true
			counts[it.Category]++
			selected++
			used += d.Points
		}
		plan.Decisions = append(plan.Decisions, d)
	}

	if sc.Fill && float64(used) < stopAt {
		for i := range plan.Decisions {
			d := &plan.Decisions[i]
			if d.Reason != ReasonQuotaTechDebt && d.Reason != ReasonQuotaBug {
				continue
			}
			if float64(used+d.Points) > stopAt {
				continue
			}
			d.Accepted = true
			d.Reason = ReasonFill
			accepted[i] = true
			used += d.Points
		}
	}

	for i := range ranked {
		if accepted[i] {
			plan.Items = append(plan.Items, ranked[i])
		}
	}
	plan.Used = used
	plan.Tiers = AssignTiers(plan.Items, target, sc.MustHaveRatio, sc.ShouldHaveRatio)

	if target <= 0 {
		plan.Warnings = append(plan.Warnings, diag.New(diag.ConstraintViolation, SelectStageName,
			"capacity_target_not_met: target capacity is zero, nothing can be selected"))
	} else if float64(used) < stopAt {
		plan.Warnings = append(plan.Warnings, diag.New(diag.ConstraintViolation, SelectStageName,
			"capacity_target_not_met: selected %d of %.2f points (stop threshold %.2f)", used, target, plan.StopAt))
	}
	return plan
}

// overQuota reports whether a category already holds more than quota of the
// selections made so far. With no selections the share is zero.
func overQuota(count, selected int, quota float64) bool {
	if selected == 0 {
		return false
	}
	return float64(count)/float64(selected) > quota
}

// Summary returns a one-line description of the plan.
func (p *Plan) Summary() string {
	return fmt.Sprintf("%d items, %d/%.2f points", len(p.Items), p.Used, p.Target)
}

// sortByRank restores pool order on a subset of pool items.
func sortByRank(items []scoring.ScoredItem, pool []scoring.ScoredItem) {
	rank := make(map[string]int, len(pool))
	for i := range pool {
		rank[pool[i].Item.ID] = i
	}
	sort.SliceStable(items, func(i, j int) bool {
		return rank[items[i].Item.ID] < rank[items[j].Item.ID]
	})
}
