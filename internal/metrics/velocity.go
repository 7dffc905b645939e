package metrics

import (
	"fmt"
	"math"

	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// Trend is the direction of velocity across the sampled cycles.
type Trend string

const (
	Increasing Trend = "increasing"
	Decreasing Trend = "decreasing"
	Stable     Trend = "stable"
)

// Confidence expresses how stable the velocity samples are.
type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

// Velocity summarizes completed points over recent closed cycles.
type Velocity struct {
	Average    float64    `json:"average"`
	Samples    []int      `json:"samples"`
	CycleIDs   []string   `json:"cycleIds"`
	StdDev     float64    `json:"stdDev"`
	CV         float64    `json:"coefficientOfVariation"`
	Trend      Trend      `json:"trend"`
	Confidence Confidence `json:"confidence"`
}

// ClassifyConfidence maps a coefficient of variation to a confidence level.
// Both thresholds are strict upper bounds.
func ClassifyConfidence(cv, highBelow, mediumBelow float64) Confidence {
	switch {
	case cv < highBelow:
		return High
	case cv < mediumBelow:
		return Medium
	default:
		return Low
	}
}

// TrendOf compares the newest sample with the oldest.
func TrendOf(samples []int) Trend {
	if len(samples) < 2 {
		return Stable
	}
	first, last := samples[0], samples[len(samples)-1]
	switch {
	case last > first:
		return Increasing
	case last < first:
		return Decreasing
	default:
		return Stable
	}
}

// MeanStdDev returns the mean and population standard deviation.
func MeanStdDev(samples []int) (mean, stddev float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	for _, s := range samples {
		mean += float64(s)
	}
	mean /= float64(len(samples))
	var sq float64
	for _, s := range samples {
		d := float64(s) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(samples)))
}

// velocity samples closed cycles oldest to newest. Fewer than two cycles is
// reported as insufficient data with a zero average and low confidence.
func velocity(closed []tracker.Cycle, highCV, mediumCV float64) (Velocity, error) {
	v := Velocity{Samples: []int{}, CycleIDs: []string{}, Trend: Stable, Confidence: Low}
	for i := range closed {
		v.Samples = append(v.Samples, closed[i].CompletedPoints())
		v.CycleIDs = append(v.CycleIDs, closed[i].ID)
	}

	if len(closed) < 2 {
		return v, fmt.Errorf("velocity needs at least 2 closed cycles, have %d: %w", len(closed), diag.ErrInsufficientData)
	}

	mean, stddev := MeanStdDev(v.Samples)
	v.Average = round2(mean)
	v.StdDev = round2(stddev)
	v.Trend = TrendOf(v.Samples)
	if mean > 0 {
		cv := stddev / mean
		v.CV = round4(cv)
		v.Confidence = ClassifyConfidence(cv, highCV, mediumCV)
	}
	return v, nil
}
