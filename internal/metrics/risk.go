package metrics

import (
	"math"
	"time"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// At-risk reasons.
const (
	ReasonNotStarted = "not_started_near_end"
	ReasonStale      = "in_progress_too_long"
)

// AtRiskItem is an active-cycle item unlikely to finish on time.
type AtRiskItem struct {
	ItemID         string  `json:"itemId"`
	Title          string  `json:"title"`
	Reason         string  `json:"reason"`
	DaysRemaining  float64 `json:"daysRemaining"`
	DaysInProgress float64 `json:"daysInProgress,omitempty"`
}

// CarryoverItem is an unfinished item expected to spill into the next cycle.
type CarryoverItem struct {
	ItemID    string  `json:"itemId"`
	Remaining float64 `json:"remaining"`
}

// Carryover estimates the points the active cycle will not finish.
type Carryover struct {
	DailyVelocity float64         `json:"dailyVelocity"`
	DaysRemaining float64         `json:"daysRemaining"`
	Points        float64         `json:"points"`
	Items         []CarryoverItem `json:"items"`
}

// atRiskItems flags unstarted work with fewer than AtRiskDaysRemaining days
// left and started work older than StaleStartedDays.
func atRiskItems(c *tracker.Cycle, asOf time.Time, cfg config.CapacityConfig) []AtRiskItem {
	out := []AtRiskItem{}
	if c == nil {
		return out
	}
	remaining := math.Max(0, days(c.EndsAt.Sub(asOf)))

	for _, it := range c.Items {
		switch it.State {
		case tracker.StateBacklog, tracker.StateUnstarted:
			if remaining < float64(cfg.AtRiskDaysRemaining) {
				out = append(out, AtRiskItem{
					ItemID:        it.ID,
					Title:         it.Title,
					Reason:        ReasonNotStarted,
					DaysRemaining: round2(remaining),
				})
			}
		case tracker.StateStarted:
			if it.StartedAt == nil {
				continue
			}
			inProgress := days(asOf.Sub(*it.StartedAt))
			if inProgress > float64(cfg.StaleStartedDays) {
				out = append(out, AtRiskItem{
					ItemID:         it.ID,
					Title:          it.Title,
					Reason:         ReasonStale,
					DaysRemaining:  round2(remaining),
					DaysInProgress: round2(inProgress),
				})
			}
		}
	}
	return out
}

// carryover compares each open item's remaining estimate with what the team
// can still deliver in the cycle at its average daily velocity. Started items
// count at StartedCarryRatio of their estimate.
func carryover(c *tracker.Cycle, asOf time.Time, avgVelocity float64, cfg config.CapacityConfig) Carryover {
	out := Carryover{Items: []CarryoverItem{}}
	if c == nil {
		return out
	}
	if cfg.SprintBusinessDays > 0 {
		out.DailyVelocity = round2(avgVelocity / float64(cfg.SprintBusinessDays))
	}
	out.DaysRemaining = round2(math.Max(0, days(c.EndsAt.Sub(asOf))))
	deliverable := out.DailyVelocity * out.DaysRemaining

	var total float64
	for _, it := range c.Items {
		if !it.State.Open() || !it.Estimated() {
			continue
		}
		remaining := float64(it.Points())
		if it.State == tracker.StateStarted {
			remaining *= cfg.StartedCarryRatio
		}
		if remaining > deliverable {
			out.Items = append(out.Items, CarryoverItem{ItemID: it.ID, Remaining: round2(remaining)})
			total += remaining
		}
	}
	out.Points = round2(total)
	return out
}
