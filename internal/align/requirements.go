package align

import (
	"math"
	"strings"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/github"
	"github.com/lucasnoah/cycleplan/internal/scoring"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// Test types.
const (
	TestUnit        = "unit"
	TestIntegration = "integration"
	TestE2E         = "e2e"
	TestRegression  = "regression"
)

// CoverageTargets are the minimum coverage percentages for an item.
type CoverageTargets struct {
	Line     float64 `json:"line"`
	Branch   float64 `json:"branch"`
	Function float64 `json:"function"`
}

// TestRequirements describes the testing expected for one item.
type TestRequirements struct {
	Coverage           CoverageTargets `json:"coverage"`
	Types              []string        `json:"types"`
	Counts             map[string]int  `json:"counts"`
	AcceptanceCriteria []string        `json:"acceptanceCriteria"`
	GeneratedCriteria  bool            `json:"generatedCriteria"`
}

// Requirements derives test requirements from an item's category and
// estimate. Test types and fallback criteria come from the category tables in
// cfg.
func Requirements(item *tracker.WorkItem, cat scoring.Category, cfg config.AlignConfig) TestRequirements {
	est := item.Points()
	req := TestRequirements{
		Coverage: CoverageTargets{
			Line:     cfg.LineCoverage,
			Branch:   cfg.BranchCoverage,
			Function: cfg.FunctionCoverage,
		},
		Types:  append([]string(nil), cfg.TestTypes[string(cat)]...),
		Counts: map[string]int{},
	}
	if cat == scoring.Bug {
		req.Coverage.Line = cfg.BugLineCoverage
	}
	if len(req.Types) == 0 {
		req.Types = []string{TestUnit}
	}

	for _, typ := range req.Types {
		switch typ {
		case TestUnit:
			req.Counts[typ] = cfg.UnitTestsPerPoint * est
		case TestIntegration:
			req.Counts[typ] = int(math.Ceil(float64(est) / 3))
		case TestE2E:
			req.Counts[typ] = 1
		case TestRegression:
			req.Counts[typ] = max(1, int(math.Ceil(float64(est)/2)))
		}
	}

	req.AcceptanceCriteria = criteriaFrom(item.Description)
	if len(req.AcceptanceCriteria) == 0 {
		req.AcceptanceCriteria = append([]string(nil), cfg.GeneratedCriteria[string(cat)]...)
		req.GeneratedCriteria = true
	}
	return req
}

func criteriaFrom(description string) []string {
	ac := github.ExtractAcceptanceCriteria(description)
	var out []string
	for _, line := range strings.Split(ac, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- [ ] ")
		line = strings.TrimPrefix(line, "- [x] ")
		line = strings.TrimPrefix(line, "- [X] ")
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
