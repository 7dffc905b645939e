package metrics

import (
	"time"

	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// Health is the cycle health classification.
type Health string

const (
	Healthy       Health = "healthy"
	AtRisk        Health = "at_risk"
	Unhealthy     Health = "unhealthy"
	NoActiveCycle Health = "no_active_cycle"
)

// CycleHealth describes the progress of the active cycle.
type CycleHealth struct {
	Status           Health             `json:"status"`
	CycleID          string             `json:"cycleId,omitempty"`
	CycleNumber      int                `json:"cycleNumber,omitempty"`
	Progress         float64            `json:"progress"`
	ExpectedProgress float64            `json:"expectedProgress"`
	DaysElapsed      float64            `json:"daysElapsed"`
	TotalDays        float64            `json:"totalDays"`
	DaysRemaining    float64            `json:"daysRemaining"`
	Stats            tracker.CycleStats `json:"stats"`
}

// ClassifyHealth compares actual against expected progress. A cycle is
// healthy when it is on or ahead of schedule and at risk while it is within
// atRiskRatio of the schedule.
func ClassifyHealth(progress, expected, atRiskRatio float64) Health {
	switch {
	case progress >= expected:
		return Healthy
	case progress >= atRiskRatio*expected:
		return AtRisk
	default:
		return Unhealthy
	}
}

// Progress returns completed/total and elapsed/totalDays, each 0 when the
// denominator is 0. Expected progress is clamped to [0,1].
func Progress(completed, total int, daysElapsed, totalDays float64) (progress, expected float64) {
	if total > 0 {
		progress = float64(completed) / float64(total)
	}
	if totalDays > 0 {
		expected = clamp(daysElapsed/totalDays, 0, 1)
	}
	return progress, expected
}

func cycleHealth(c *tracker.Cycle, asOf time.Time, atRiskRatio float64) CycleHealth {
	if c == nil {
		return CycleHealth{Status: NoActiveCycle}
	}

	stats := c.Stats()
	total := days(c.EndsAt.Sub(c.StartsAt))
	elapsed := clamp(days(asOf.Sub(c.StartsAt)), 0, total)
	progress, expected := Progress(stats.Completed, stats.Total, elapsed, total)

	return CycleHealth{
		Status:           ClassifyHealth(progress, expected, atRiskRatio),
		CycleID:          c.ID,
		CycleNumber:      c.Number,
		Progress:         round2(progress),
		ExpectedProgress: round2(expected),
		DaysElapsed:      round2(elapsed),
		TotalDays:        round2(total),
		DaysRemaining:    round2(total - elapsed),
		Stats:            stats,
	}
}

func days(d time.Duration) float64 {
	return d.Hours() / 24
}
