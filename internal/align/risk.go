package align

import (
	"math"

	"github.com/lucasnoah/cycleplan/internal/scoring"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// Risk is the implementation risk of a work item.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// ComplexityScore buckets average complexity into 1..3. Unknown scores 2.
func ComplexityScore(m FileSetMetrics) int {
	switch {
	case !m.ComplexityKnown:
		return 2
	case m.Complexity < 5:
		return 1
	case m.Complexity < 10:
		return 2
	default:
		return 3
	}
}

// CoverageScore buckets line coverage into 1..3. Unknown scores 2.
func CoverageScore(m FileSetMetrics) int {
	switch {
	case !m.CoverageKnown:
		return 2
	case m.LineCoverage >= 80:
		return 1
	case m.LineCoverage >= 50:
		return 2
	default:
		return 3
	}
}

// RiskOf combines the two bucket scores.
func RiskOf(complexityScore, coverageScore int) Risk {
	switch sum := complexityScore + coverageScore; {
	case sum >= 5:
		return RiskHigh
	case sum >= 3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Queue is a work queue.
type Queue string

const (
	QueueImmediate  Queue = "immediate"
	QueueStandard   Queue = "standard"
	QueueBackground Queue = "background"
	QueueReview     Queue = "review"
)

// ClassifyQueue applies the queue rules in order: urgent bugs go to
// immediate, low-risk tech debt to background, well-covered file sets to
// review, and everything else to standard.
func ClassifyQueue(cat scoring.Category, priority tracker.Priority, risk Risk, m FileSetMetrics, reviewCoverage float64) Queue {
	switch {
	case cat == scoring.Bug && priority.AtLeast(tracker.PriorityHigh):
		return QueueImmediate
	case cat == scoring.TechDebt && risk == RiskLow:
		return QueueBackground
	case m.CoverageKnown && m.LineCoverage > reviewCoverage:
		return QueueReview
	default:
		return QueueStandard
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
