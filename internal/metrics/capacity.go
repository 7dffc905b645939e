package metrics

import (
	"math"

	"github.com/lucasnoah/cycleplan/internal/config"
)

// Capacity source labels.
const (
	CapacityFromRoster   = "roster"
	CapacityFromOverride = "override"
	CapacityFromVelocity = "velocity"
	CapacityFromFallback = "fallback"
)

// Capacity is the team's point capacity for the next cycle and the selection
// target derived from it.
type Capacity struct {
	ActiveMembers int     `json:"activeMembers"`
	PointCapacity float64 `json:"pointCapacity"`
	Source        string  `json:"source"`
	BufferFactor  float64 `json:"bufferFactor"`
	Carryover     float64 `json:"carryover"`
	Target        float64 `json:"target"`
}

// PointCapacity applies the capacity formula:
// members × businessDays × hoursPerDay × focusFactor / hoursPerPoint.
func PointCapacity(members int, c config.CapacityConfig) float64 {
	if members <= 0 || c.HoursPerPoint <= 0 {
		return 0
	}
	return float64(members) * float64(c.SprintBusinessDays) * c.FocusedHoursPerDay * c.FocusFactor / c.HoursPerPoint
}

// TargetCapacity returns capacity × buffer, less carryover, never negative.
func TargetCapacity(capacity, buffer, carryover float64) float64 {
	return math.Max(0, capacity*buffer-carryover)
}

func teamCapacity(activeMembers int, avgVelocity, carryover float64, c config.CapacityConfig) (Capacity, bool) {
	capacity := Capacity{ActiveMembers: activeMembers, BufferFactor: c.BufferFactor}
	fellBack := false

	switch {
	case c.OverridePoints > 0:
		capacity.PointCapacity = c.OverridePoints
		capacity.Source = CapacityFromOverride
	case activeMembers > 0:
		capacity.PointCapacity = PointCapacity(activeMembers, c)
		capacity.Source = CapacityFromRoster
	case avgVelocity > 0:
		capacity.PointCapacity = avgVelocity
		capacity.Source = CapacityFromVelocity
		fellBack = true
	default:
		capacity.PointCapacity = c.FallbackPoints
		capacity.Source = CapacityFromFallback
		fellBack = true
	}

	if c.SubtractCarryover {
		capacity.Carryover = round2(carryover)
	}
	capacity.PointCapacity = round2(capacity.PointCapacity)
	capacity.Target = floor2(TargetCapacity(capacity.PointCapacity, c.BufferFactor, capacity.Carryover))
	return capacity, fellBack
}

// floor2 truncates to 2 decimals so the reported target never exceeds
// capacity × buffer. The epsilon absorbs products like 42 × 0.85 that land
// just below their decimal value.
func floor2(v float64) float64 {
	return math.Floor(v*100+1e-9) / 100
}
