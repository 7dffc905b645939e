package selection

import (
	"math"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/scoring"
)

// Swap records one accepted exchange between the plan and the pool.
type Swap struct {
	Out       string  `json:"out"`
	In        string  `json:"in"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Deviation float64 `json:"deviation"`
}

// Violation is a category whose point share is outside tolerance.
type Violation struct {
	Category scoring.Category `json:"category"`
	Ratio    float64          `json:"ratio"`
	Target   float64          `json:"target"`
}

// Composition describes the category mix of the final plan.
type Composition struct {
	Bug        float64                      `json:"bug"`
	TechDebt   float64                      `json:"tech_debt"`
	Feature    float64                      `json:"feature"`
	Points     map[scoring.Category]int     `json:"points"`
	Targets    map[scoring.Category]float64 `json:"targets"`
	Tolerance  float64                      `json:"tolerance"`
	Deviation  float64                      `json:"deviation"`
	Balanced   bool                         `json:"balanced"`
	Swaps      []Swap                       `json:"swaps"`
	Violations []Violation                  `json:"violations"`
}

// Ratio returns the point share of cat.
func (c *Composition) Ratio(cat scoring.Category) float64 {
	switch cat {
	case scoring.Bug:
		return c.Bug
	case scoring.TechDebt:
		return c.TechDebt
	default:
		return c.Feature
	}
}

// Balancer nudges a plan's category mix toward the configured targets with a
// bounded local search.
type Balancer struct {
	cfg *config.Config
}

// NewBalancer creates a Balancer.
func NewBalancer(cfg *config.Config) *Balancer {
	return &Balancer{cfg: cfg}
}

func (b *Balancer) targets() map[scoring.Category]float64 {
	c := b.cfg.Composition
	return map[scoring.Category]float64{
		scoring.Bug:      c.Bug,
		scoring.TechDebt: c.TechDebt,
		scoring.Feature:  c.Feature,
	}
}

// Balance returns a new plan whose category mix is no further from target
// than the input's, along with the resulting composition. The input plan is
// not modified. Swaps only ever trade an item for one of the same or lower
// cost, so the capacity bound still holds.
func (b *Balancer) Balance(plan *Plan) (*Plan, Composition) {
	cc := b.cfg.Composition
	targets := b.targets()

	out := *plan
	out.Items = append([]scoring.ScoredItem(nil), plan.Items...)
	out.Decisions = append([]Decision(nil), plan.Decisions...)
	out.Warnings = append([]diag.Warning{}, plan.Warnings...)

	var swaps []Swap
	for len(swaps) < cc.MaxSwaps {
		ratios := ratiosOf(out.Items)
		if len(violations(ratios, targets, cc.Tolerance)) == 0 {
			break
		}
		sw, ok := b.bestSwap(&out, ratios, targets)
		if !ok {
			break
		}
		swaps = append(swaps, sw)
	}

	sortByRank(out.Items, out.Pool)
	out.Used = pointsOf(out.Items)
	out.Tiers = AssignTiers(out.Items, out.Target, b.cfg.Selection.MustHaveRatio, b.cfg.Selection.ShouldHaveRatio)

	ratios := ratiosOf(out.Items)
	comp := Composition{
		Bug:        round4(ratios[scoring.Bug]),
		TechDebt:   round4(ratios[scoring.TechDebt]),
		Feature:    round4(ratios[scoring.Feature]),
		Points:     categoryPoints(out.Items),
		Targets:    targets,
		Tolerance:  cc.Tolerance,
		Deviation:  round4(deviation(ratios, targets)),
		Swaps:      swaps,
		Violations: violations(ratios, targets, cc.Tolerance),
	}
	if comp.Swaps == nil {
		comp.Swaps = []Swap{}
	}
	comp.Balanced = len(comp.Violations) == 0
	for _, v := range comp.Violations {
		out.Warnings = append(out.Warnings, diag.New(diag.ConstraintViolation, BalanceStageName,
			"%s share %.2f is outside target %.2f ±%.2f", v.Category, v.Ratio, v.Target, cc.Tolerance))
	}
	return &out, comp
}

// bestSwap tries the most over-target category's selected items from lowest
// score up against the most under-target category's unselected items from
// highest score down, and applies the first exchange that reduces total
// deviation by more than the configured minimum gain.
func (b *Balancer) bestSwap(plan *Plan, ratios, targets map[scoring.Category]float64) (Swap, bool) {
	over, under := extremes(ratios, targets)
	if over == under {
		return Swap{}, false
	}
	before := deviation(ratios, targets)

	selected := make(map[string]bool, len(plan.Items))
	for i := range plan.Items {
		selected[plan.Items[i].Item.ID] = true
	}

	for oi := len(plan.Items) - 1; oi >= 0; oi-- {
		outItem := plan.Items[oi]
		if outItem.Category != over {
			continue
		}
		for pi := range plan.Pool {
			inItem := plan.Pool[pi]
			if inItem.Category != under || selected[inItem.Item.ID] || inItem.Points() > outItem.Points() {
				continue
			}
			if float64(plan.Used-outItem.Points()+inItem.Points()) > plan.Target {
				continue
			}
			trial := append(append([]scoring.ScoredItem{}, plan.Items[:oi]...), plan.Items[oi+1:]...)
			trial = append(trial, inItem)
			sortByRank(trial, plan.Pool)
			after := deviation(ratiosOf(trial), targets)
			if before-after <= b.cfg.Composition.MinGain {
				continue
			}
			plan.Items = trial
			plan.Used = pointsOf(trial)
			plan.Decisions = markSwap(plan.Decisions, outItem.Item.ID, inItem.Item.ID)
			return Swap{
				Out:       outItem.Item.ID,
				In:        inItem.Item.ID,
				From:      string(over),
				To:        string(under),
				Deviation: round4(after),
			}, true
		}
	}
	return Swap{}, false
}

func markSwap(ds []Decision, outID, inID string) []Decision {
	for i := range ds {
		switch ds[i].ItemID {
		case outID:
			ds[i].Accepted = false
			ds[i].Reason = ReasonSwappedOut
		case inID:
			ds[i].Accepted = true
			ds[i].Reason = ReasonSwappedIn
		}
	}
	return ds
}

// extremes returns the categories furthest above and below target. Ties go
// to the earlier category in reporting order.
func extremes(ratios, targets map[scoring.Category]float64) (over, under scoring.Category) {
	maxDiff, minDiff := math.Inf(-1), math.Inf(1)
	for _, c := range scoring.Categories {
		d := ratios[c] - targets[c]
		if d > maxDiff {
			maxDiff, over = d, c
		}
		if d < minDiff {
			minDiff, under = d, c
		}
	}
	return over, under
}

func violations(ratios, targets map[scoring.Category]float64, tolerance float64) []Violation {
	vs := []Violation{}
	for _, c := range scoring.Categories {
		if math.Abs(ratios[c]-targets[c]) > tolerance+1e-9 {
			vs = append(vs, Violation{Category: c, Ratio: round4(ratios[c]), Target: targets[c]})
		}
	}
	return vs
}

func deviation(ratios, targets map[scoring.Category]float64) float64 {
	var d float64
	for _, c := range scoring.Categories {
		d += math.Abs(ratios[c] - targets[c])
	}
	return d
}

func ratiosOf(items []scoring.ScoredItem) map[scoring.Category]float64 {
	pts := categoryPoints(items)
	total := pointsOf(items)
	ratios := make(map[scoring.Category]float64, len(scoring.Categories))
	for _, c := range scoring.Categories {
		if total > 0 {
			ratios[c] = float64(pts[c]) / float64(total)
		}
	}
	return ratios
}

func categoryPoints(items []scoring.ScoredItem) map[scoring.Category]int {
	pts := map[scoring.Category]int{scoring.Bug: 0, scoring.TechDebt: 0, scoring.Feature: 0}
	for i := range items {
		pts[items[i].Category] += items[i].Points()
	}
	return pts
}

func pointsOf(items []scoring.ScoredItem) int {
	total := 0
	for i := range items {
		total += items[i].Points()
	}
	return total
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
