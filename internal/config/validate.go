package config

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedSources is the set of valid tracker sources.
var recognizedSources = map[string]bool{
	"file":   true,
	"github": true,
}

// recognizedSearch is the set of valid code-search backends.
var recognizedSearch = map[string]bool{
	"fs":  true,
	"git": true,
}

// recognizedParsers is the set of valid parser names for readiness command checks.
var recognizedParsers = map[string]bool{
	"generic": true,
	"gotest":  true,
}

// recognizedCategories keys the per-category align tables.
var recognizedCategories = map[string]bool{
	"bug":       true,
	"tech_debt": true,
	"feature":   true,
}

// recognizedTestTypes is the set of valid align.test_types entries.
var recognizedTestTypes = map[string]bool{
	"unit":        true,
	"integration": true,
	"e2e":         true,
	"regression":  true,
}

const sumTolerance = 0.001

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !recognizedSources[cfg.Tracker.Source] {
		add("tracker.source", "unrecognized source %q", cfg.Tracker.Source)
	}
	if cfg.Tracker.Source == "github" && cfg.Tracker.Repo == "" {
		add("tracker.repo", "is required for the github source")
	}
	if cfg.Tracker.FetchTimeout != "" {
		if _, err := time.ParseDuration(cfg.Tracker.FetchTimeout); err != nil {
			add("tracker.fetch_timeout", "invalid duration %q", cfg.Tracker.FetchTimeout)
		}
	}

	c := cfg.Capacity
	if c.SprintBusinessDays <= 0 {
		add("capacity.sprint_business_days", "must be positive")
	}
	if c.FocusedHoursPerDay <= 0 {
		add("capacity.focused_hours_per_day", "must be positive")
	}
	if c.HoursPerPoint <= 0 {
		add("capacity.hours_per_point", "must be positive")
	}
	validateFraction(&errs, "capacity.focus_factor", c.FocusFactor, false)
	validateFraction(&errs, "capacity.buffer_factor", c.BufferFactor, false)
	validateFraction(&errs, "capacity.started_carry_ratio", c.StartedCarryRatio, true)
	if c.OverridePoints < 0 {
		add("capacity.override_points", "must not be negative")
	}
	if c.FallbackPoints < 0 {
		add("capacity.fallback_points", "must not be negative")
	}

	validateFraction(&errs, "health.at_risk_ratio", cfg.Health.AtRiskRatio, true)

	v := cfg.Velocity
	if v.HighConfidenceCV <= 0 || v.MediumConfidenceCV <= 0 {
		add("velocity", "confidence thresholds must be positive")
	} else if v.HighConfidenceCV >= v.MediumConfidenceCV {
		add("velocity.high_confidence_cv", "must be below medium_confidence_cv (%.2f)", v.MediumConfidenceCV)
	}

	d := cfg.Dependencies
	if d.MediumThreshold >= d.HighThreshold {
		add("dependencies.medium_threshold", "must be below high_threshold (%d)", d.HighThreshold)
	}

	w := cfg.Scoring.Weights
	for name, val := range map[string]float64{
		"business_value":  w.BusinessValue,
		"technical_debt":  w.TechnicalDebt,
		"risk_mitigation": w.RiskMitigation,
		"velocity_fit":    w.VelocityFit,
		"dependencies":    w.Dependencies,
		"team_alignment":  w.TeamAlignment,
	} {
		if val < 0 {
			add("scoring.weights."+name, "must not be negative")
		}
	}
	if math.Abs(w.Sum()-1.0) > sumTolerance {
		add("scoring.weights", "must sum to 1.0 (got %.3f)", w.Sum())
	}
	if cfg.Scoring.ValueScale <= 0 {
		add("scoring.value_scale", "must be positive")
	}

	s := cfg.Selection
	validateFraction(&errs, "selection.stop_ratio", s.StopRatio, false)
	validateFraction(&errs, "selection.tech_debt_quota", s.TechDebtQuota, true)
	validateFraction(&errs, "selection.bug_quota", s.BugQuota, true)
	validateFraction(&errs, "selection.must_have_ratio", s.MustHaveRatio, true)
	validateFraction(&errs, "selection.should_have_ratio", s.ShouldHaveRatio, true)
	if s.MustHaveRatio > s.ShouldHaveRatio {
		add("selection.must_have_ratio", "must not exceed should_have_ratio (%.2f)", s.ShouldHaveRatio)
	}

	comp := cfg.Composition
	validateFraction(&errs, "composition.bug", comp.Bug, true)
	validateFraction(&errs, "composition.tech_debt", comp.TechDebt, true)
	validateFraction(&errs, "composition.feature", comp.Feature, true)
	validateFraction(&errs, "composition.tolerance", comp.Tolerance, true)
	if sum := comp.Bug + comp.TechDebt + comp.Feature; math.Abs(sum-1.0) > sumTolerance {
		add("composition", "category targets must sum to 1.0 (got %.3f)", sum)
	}

	a := cfg.Align
	if !recognizedSearch[a.Search] {
		add("align.search", "unrecognized search backend %q", a.Search)
	}
	if a.UnitTestsPerPoint < 0 {
		add("align.unit_tests_per_point", "must not be negative")
	}
	for name, val := range map[string]float64{
		"review_coverage":   a.ReviewCoverage,
		"line_coverage":     a.LineCoverage,
		"bug_line_coverage": a.BugLineCoverage,
		"branch_coverage":   a.BranchCoverage,
		"function_coverage": a.FunctionCoverage,
	} {
		if val < 0 || val > 100 {
			add("align."+name, "must be a percentage between 0 and 100")
		}
	}
	for name, table := range map[string]map[string][]string{
		"category_keywords":  a.CategoryKeywords,
		"test_types":         a.TestTypes,
		"generated_criteria": a.GeneratedCriteria,
	} {
		for _, cat := range sortedKeys(table) {
			if !recognizedCategories[cat] {
				add("align."+name, "unrecognized category %q", cat)
			}
		}
	}
	for _, cat := range sortedKeys(a.TestTypes) {
		for _, typ := range a.TestTypes[cat] {
			if !recognizedTestTypes[typ] {
				add("align.test_types."+cat, "unrecognized test type %q", typ)
			}
		}
	}

	r := cfg.Readiness
	if r.Threshold < 0 || r.Threshold > 100 {
		add("readiness.threshold", "must be a percentage between 0 and 100")
	}
	for _, group := range []struct {
		name   string
		checks []CheckSpec
	}{
		{"pipeline", r.Pipeline},
		{"environments", r.Environments},
		{"quality_gates", r.QualityGates},
		{"team", r.Team},
	} {
		for i, chk := range group.checks {
			prefix := fmt.Sprintf("readiness.%s[%d]", group.name, i)
			if chk.Name == "" {
				add(prefix+".name", "is required")
			}
			if chk.Command == "" && chk.Confirmed == nil {
				add(prefix, "needs either a command or a confirmed value")
			}
			if chk.Parser != "" && !recognizedParsers[chk.Parser] {
				add(prefix+".parser", "unrecognized parser %q", chk.Parser)
			}
			if chk.Timeout != "" {
				if _, err := time.ParseDuration(chk.Timeout); err != nil {
					add(prefix+".timeout", "invalid duration %q", chk.Timeout)
				}
			}
		}
	}

	return errs
}

// validateFraction checks that v is within (0,1], or [0,1] when zero is allowed.
func validateFraction(errs *[]ValidationError, field string, v float64, allowZero bool) {
	if v > 1 || v < 0 || (!allowZero && v == 0) {
		bound := "(0,1]"
		if allowZero {
			bound = "[0,1]"
		}
		*errs = append(*errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be within %s (got %g)", bound, v),
		})
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
