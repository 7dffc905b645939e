package scoring

import (
	"math"
	"strings"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// Factors is the per-item breakdown of the six weighted sub-scores, each on a
// 0–100 scale.
type Factors struct {
	BusinessValue  float64 `json:"businessValue"`
	TechnicalDebt  float64 `json:"technicalDebt"`
	RiskMitigation float64 `json:"riskMitigation"`
	VelocityFit    float64 `json:"velocityFit"`
	Dependencies   float64 `json:"dependencies"`
	TeamAlignment  float64 `json:"teamAlignment"`
}

// Weighted combines factors with w and rounds to two decimals. The result is
// clamped to [0,100].
func (f Factors) Weighted(w config.Weights) float64 {
	sum := f.BusinessValue*w.BusinessValue +
		f.TechnicalDebt*w.TechnicalDebt +
		f.RiskMitigation*w.RiskMitigation +
		f.VelocityFit*w.VelocityFit +
		f.Dependencies*w.Dependencies +
		f.TeamAlignment*w.TeamAlignment
	return math.Round(clamp(sum)*100) / 100
}

func priorityBase(p tracker.Priority) float64 {
	switch p {
	case tracker.PriorityUrgent:
		return 40
	case tracker.PriorityHigh:
		return 30
	case tracker.PriorityMedium:
		return 20
	case tracker.PriorityLow:
		return 10
	default:
		return 5
	}
}

// BusinessValue scores priority, customer and revenue labels, project and
// parent association and engagement.
func BusinessValue(item *tracker.WorkItem, cfg config.ScoringConfig) float64 {
	v := priorityBase(item.Priority)
	if item.HasLabel(cfg.CustomerLabels...) {
		v += 15
	}
	if item.HasLabel(cfg.RevenueLabels...) {
		v += 15
	}
	if item.Project != "" {
		v += 10
	}
	if item.Parent != "" {
		v += 10
	}
	if item.Comments > 0 {
		v += 5
	}
	if item.Subscribers > 0 {
		v += 5
	}
	return clamp(v * cfg.ValueScale)
}

// TechnicalDebt scores debt labels (25 each), debt keywords and testing
// indicators in the title and description (10 each).
func (s *Scorer) TechnicalDebt(item *tracker.WorkItem) float64 {
	text := item.Title + "\n" + item.Description
	v := float64(item.CountLabels(s.cfg.Scoring.DebtLabels)) * 25
	v += float64(s.debtWords.Hits(text)) * 10
	v += float64(s.testWords.Hits(text)) * 10
	return clamp(v * s.cfg.Scoring.ValueScale)
}

// RiskMitigation scores bug, security, performance and incident labels.
func RiskMitigation(item *tracker.WorkItem, cfg config.ScoringConfig) float64 {
	var v float64
	if item.HasLabel(cfg.BugLabels...) {
		v += 40
	}
	if item.HasLabel(cfg.SecurityLabels...) {
		v += 30
	}
	if item.HasLabel(cfg.PerformanceLabels...) {
		v += 20
	}
	if item.HasLabel(cfg.IncidentLabels...) {
		v += 10
	}
	return clamp(v)
}

// VelocityFit rewards right-sized estimates.
func VelocityFit(estimate int) float64 {
	switch {
	case estimate >= 5 && estimate <= 13:
		return 100
	case estimate >= 3 && estimate <= 21:
		return 70
	case estimate >= 1 && estimate <= 2:
		return 50
	case estimate > 21:
		return 30
	default:
		return 40
	}
}

// DependencyScore is 0 for blocked items, 100 for items that block others,
// 80 for items without relations and 50 otherwise. blocking holds the IDs of
// items that some other item is blocked by.
func DependencyScore(item *tracker.WorkItem, blocking map[string]bool) float64 {
	for _, r := range item.Relations {
		if r.Type == tracker.RelationBlocks {
			return 0
		}
	}
	if blocking[item.ID] {
		return 100
	}
	if len(item.Relations) == 0 {
		return 80
	}
	return 50
}

// TeamAlignment rewards assigned items and items with acceptance criteria.
func TeamAlignment(item *tracker.WorkItem, cfg config.ScoringConfig) float64 {
	v := 50.0
	if item.Assignee != "" {
		v += 25
	}
	desc := strings.ToLower(item.Description)
	for _, m := range cfg.AcceptanceMarkers {
		if m != "" && strings.Contains(desc, strings.ToLower(m)) {
			v += 25
			break
		}
	}
	return v
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
