package config

import "time"

// Config is the top-level planner configuration parsed from planner YAML.
// Every tunable used by the planning stages lives here and is passed to the
// stage constructors explicitly.
type Config struct {
	Name         string            `yaml:"name"`
	Tracker      TrackerConfig     `yaml:"tracker"`
	Capacity     CapacityConfig    `yaml:"capacity"`
	Health       HealthConfig      `yaml:"health"`
	Velocity     VelocityConfig    `yaml:"velocity"`
	Backlog      BacklogConfig     `yaml:"backlog"`
	Dependencies DependencyConfig  `yaml:"dependencies"`
	Scoring      ScoringConfig     `yaml:"scoring"`
	Selection    SelectionConfig   `yaml:"selection"`
	Composition  CompositionConfig `yaml:"composition"`
	Align        AlignConfig       `yaml:"align"`
	Readiness    ReadinessConfig   `yaml:"readiness"`
	Persistence  PersistenceConfig `yaml:"persistence"`
	Logging      LoggingConfig     `yaml:"logging"`
}

// TrackerConfig selects and tunes the issue-tracker source.
type TrackerConfig struct {
	Source          string   `yaml:"source"` // file | github
	Snapshot        string   `yaml:"snapshot"`
	Repo            string   `yaml:"repo"`
	FetchTimeout    string   `yaml:"fetch_timeout"`
	CycleLengthDays int      `yaml:"cycle_length_days"`
	ClosedCycles    int      `yaml:"closed_cycles"`
	BacklogLimit    int      `yaml:"backlog_limit"`
	Members         []string `yaml:"members"`
}

// CapacityConfig holds the team capacity formula inputs.
type CapacityConfig struct {
	SprintBusinessDays  int     `yaml:"sprint_business_days"`
	FocusedHoursPerDay  float64 `yaml:"focused_hours_per_day"`
	FocusFactor         float64 `yaml:"focus_factor"`
	HoursPerPoint       float64 `yaml:"hours_per_point"`
	BufferFactor        float64 `yaml:"buffer_factor"`
	OverridePoints      float64 `yaml:"override_points"`
	FallbackPoints      float64 `yaml:"fallback_points"`
	SubtractCarryover   bool    `yaml:"subtract_carryover"`
	AtRiskDaysRemaining int     `yaml:"at_risk_days_remaining"`
	StaleStartedDays    int     `yaml:"stale_started_days"`
	StartedCarryRatio   float64 `yaml:"started_carry_ratio"`
}

// HealthConfig tunes the cycle health classification.
type HealthConfig struct {
	AtRiskRatio float64 `yaml:"at_risk_ratio"`
}

// VelocityConfig tunes velocity sampling and confidence buckets.
type VelocityConfig struct {
	Samples            int     `yaml:"samples"`
	HighConfidenceCV   float64 `yaml:"high_confidence_cv"`
	MediumConfidenceCV float64 `yaml:"medium_confidence_cv"`
}

// BacklogConfig holds description thresholds for readiness and scoring.
type BacklogConfig struct {
	ReadyDescriptionMin int `yaml:"ready_description_min"`
	ScoreDescriptionMin int `yaml:"score_description_min"`
}

// DependencyConfig holds dependency risk weights and buckets.
type DependencyConfig struct {
	BlockerWeight         int `yaml:"blocker_weight"`
	CriticalBlockerWeight int `yaml:"critical_blocker_weight"`
	RelationWeight        int `yaml:"relation_weight"`
	MediumThreshold       int `yaml:"medium_threshold"`
	HighThreshold         int `yaml:"high_threshold"`
	CriticalPriorityMax   int `yaml:"critical_priority_max"`
}

// ScoringConfig holds factor weights, vocabularies and the worker limit.
type ScoringConfig struct {
	Concurrency       int      `yaml:"concurrency"`
	Weights           Weights  `yaml:"weights"`
	ValueScale        float64  `yaml:"value_scale"`
	CustomerLabels    []string `yaml:"customer_labels"`
	RevenueLabels     []string `yaml:"revenue_labels"`
	DebtLabels        []string `yaml:"debt_labels"`
	DebtKeywords      []string `yaml:"debt_keywords"`
	TestingKeywords   []string `yaml:"testing_keywords"`
	BugLabels         []string `yaml:"bug_labels"`
	SecurityLabels    []string `yaml:"security_labels"`
	PerformanceLabels []string `yaml:"performance_labels"`
	IncidentLabels    []string `yaml:"incident_labels"`
	FeatureLabels     []string `yaml:"feature_labels"`
	BugTitleHints     []string `yaml:"bug_title_hints"`
	DebtTitleHints    []string `yaml:"debt_title_hints"`
	AcceptanceMarkers []string `yaml:"acceptance_markers"`
}

// Weights are the six factor weights; they must sum to 1.0.
type Weights struct {
	BusinessValue  float64 `yaml:"business_value"`
	TechnicalDebt  float64 `yaml:"technical_debt"`
	RiskMitigation float64 `yaml:"risk_mitigation"`
	VelocityFit    float64 `yaml:"velocity_fit"`
	Dependencies   float64 `yaml:"dependencies"`
	TeamAlignment  float64 `yaml:"team_alignment"`
}

// Sum returns the total of all six weights.
func (w Weights) Sum() float64 {
	return w.BusinessValue + w.TechnicalDebt + w.RiskMitigation + w.VelocityFit + w.Dependencies + w.TeamAlignment
}

// SelectionConfig tunes the greedy capacity selector.
type SelectionConfig struct {
	StopRatio       float64 `yaml:"stop_ratio"`
	TechDebtQuota   float64 `yaml:"tech_debt_quota"`
	BugQuota        float64 `yaml:"bug_quota"`
	Fill            bool    `yaml:"fill"`
	MustHaveRatio   float64 `yaml:"must_have_ratio"`
	ShouldHaveRatio float64 `yaml:"should_have_ratio"`
}

// CompositionConfig holds category point-ratio targets.
type CompositionConfig struct {
	Bug       float64 `yaml:"bug"`
	TechDebt  float64 `yaml:"tech_debt"`
	Feature   float64 `yaml:"feature"`
	Tolerance float64 `yaml:"tolerance"`
	MaxSwaps  int     `yaml:"max_swaps"`
	MinGain   float64 `yaml:"min_gain"`
}

// AlignConfig tunes code-area discovery, risk and test requirements.
type AlignConfig struct {
	Concurrency       int      `yaml:"concurrency"`
	Root              string   `yaml:"root"`
	Search            string   `yaml:"search"` // fs | git
	Include           []string `yaml:"include"`
	Exclude           []string `yaml:"exclude"`
	TopFiles          int      `yaml:"top_files"`
	QueueFiles        int      `yaml:"queue_files"`
	MaxKeywords       int      `yaml:"max_keywords"`
	Vocabulary        []string `yaml:"vocabulary"`
	AnalysisReport    string   `yaml:"analysis_report"`
	ReviewCoverage    float64  `yaml:"review_coverage"`
	LineCoverage      float64  `yaml:"line_coverage"`
	BugLineCoverage   float64  `yaml:"bug_line_coverage"`
	BranchCoverage    float64  `yaml:"branch_coverage"`
	FunctionCoverage  float64  `yaml:"function_coverage"`
	UnitTestsPerPoint int      `yaml:"unit_tests_per_point"`

	// Keyed by category: bug, tech_debt, feature.
	CategoryKeywords  map[string][]string `yaml:"category_keywords"`
	TestTypes         map[string][]string `yaml:"test_types"`
	GeneratedCriteria map[string][]string `yaml:"generated_criteria"`
}

// ReadinessConfig configures the go/no-go gate and its check providers.
type ReadinessConfig struct {
	Threshold    float64             `yaml:"threshold"`
	GitHubCI     bool                `yaml:"github_ci"`
	ChecksFile   string              `yaml:"checks_file"`
	Pipeline     []CheckSpec         `yaml:"pipeline"`
	Environments []CheckSpec         `yaml:"environments"`
	QualityGates []CheckSpec         `yaml:"quality_gates"`
	Team         []CheckSpec         `yaml:"team"`
	Mitigations  map[string][]string `yaml:"mitigations"`
}

// CheckSpec is a single readiness check: either a static confirmation or a
// shell command whose exit code decides the result.
type CheckSpec struct {
	Name      string `yaml:"name"`
	Command   string `yaml:"command"`
	Parser    string `yaml:"parser"`
	Timeout   string `yaml:"timeout"`
	Confirmed *bool  `yaml:"confirmed"`
}

// PersistenceConfig configures the optional audit adapters.
type PersistenceConfig struct {
	Dir         string `yaml:"dir"`
	DB          string `yaml:"db"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Timeout returns the tracker fetch timeout, falling back to 30s when
// the configured value is empty or unparsable.
func (t TrackerConfig) Timeout() time.Duration {
	if t.FetchTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(t.FetchTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
