package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default returns a fully populated configuration with the stock planner
// tunables.
func Default() *Config {
	return &Config{
		Name: "default",
		Tracker: TrackerConfig{
			Source:          "file",
			Snapshot:        "snapshot.json",
			FetchTimeout:    "30s",
			CycleLengthDays: 14,
			ClosedCycles:    3,
			BacklogLimit:    200,
		},
		Capacity: CapacityConfig{
			SprintBusinessDays:  10,
			FocusedHoursPerDay:  6,
			FocusFactor:         0.7,
			HoursPerPoint:       3,
			BufferFactor:        0.85,
			FallbackPoints:      20,
			AtRiskDaysRemaining: 3,
			StaleStartedDays:    5,
			StartedCarryRatio:   0.5,
		},
		Health: HealthConfig{AtRiskRatio: 0.8},
		Velocity: VelocityConfig{
			Samples:            3,
			HighConfidenceCV:   0.2,
			MediumConfidenceCV: 0.4,
		},
		Backlog: BacklogConfig{
			ReadyDescriptionMin: 50,
			ScoreDescriptionMin: 20,
		},
		Dependencies: DependencyConfig{
			BlockerWeight:         10,
			CriticalBlockerWeight: 20,
			RelationWeight:        2,
			MediumThreshold:       20,
			HighThreshold:         50,
			CriticalPriorityMax:   2,
		},
		Scoring: ScoringConfig{
			Concurrency: 8,
			Weights: Weights{
				BusinessValue:  0.35,
				TechnicalDebt:  0.25,
				RiskMitigation: 0.15,
				VelocityFit:    0.10,
				Dependencies:   0.10,
				TeamAlignment:  0.05,
			},
			ValueScale:        1.5,
			CustomerLabels:    []string{"customer", "customer-request", "customer-facing"},
			RevenueLabels:     []string{"revenue", "sales", "billing"},
			DebtLabels:        []string{"tech-debt", "tech_debt", "technical-debt", "refactor", "debt"},
			DebtKeywords:      []string{"legacy", "cleanup", "migrate", "upgrade", "deprecate"},
			TestingKeywords:   []string{"test", "coverage", "flaky"},
			BugLabels:         []string{"bug", "defect", "regression"},
			SecurityLabels:    []string{"security", "vulnerability"},
			PerformanceLabels: []string{"performance", "perf"},
			IncidentLabels:    []string{"incident", "outage"},
			FeatureLabels:     []string{"feature", "enhancement"},
			BugTitleHints:     []string{"bug", "fix", "error", "crash", "broken", "fails"},
			DebtTitleHints:    []string{"refactor", "cleanup", "clean up", "tech debt", "upgrade", "migrate", "deprecate", "legacy"},
			AcceptanceMarkers: []string{"acceptance criteria", "- [ ]", "- [x]", "definition of done", "expected behavior"},
		},
		Selection: SelectionConfig{
			StopRatio:       0.9,
			TechDebtQuota:   0.4,
			BugQuota:        0.3,
			MustHaveRatio:   0.7,
			ShouldHaveRatio: 0.9,
		},
		Composition: CompositionConfig{
			Bug:       0.2,
			TechDebt:  0.3,
			Feature:   0.5,
			Tolerance: 0.10,
			MaxSwaps:  10,
			MinGain:   0.005,
		},
		Align: AlignConfig{
			Concurrency: 4,
			Root:        ".",
			Search:      "fs",
			Include:     []string{"**.go", "**.py", "**.ts", "**.js", "**.java", "**.rb", "**.rs"},
			Exclude:     []string{"vendor/**", "node_modules/**", ".git/**", "**_test.go"},
			TopFiles:    5,
			QueueFiles:  3,
			MaxKeywords: 8,
			Vocabulary: []string{
				"api", "auth", "billing", "cache", "cli", "config", "database", "email",
				"export", "import", "login", "logging", "metrics", "migration", "notification",
				"parser", "payment", "permission", "queue", "report", "scheduler", "search",
				"session", "storage", "sync", "upload", "user", "webhook", "worker",
				"refactor", "optimize", "validate", "parse", "render", "retry", "timeout",
			},
			ReviewCoverage:    90,
			LineCoverage:      85,
			BugLineCoverage:   95,
			BranchCoverage:    80,
			FunctionCoverage:  90,
			UnitTestsPerPoint: 3,
			CategoryKeywords: map[string][]string{
				"bug":       {"error", "exception", "fix"},
				"tech_debt": {"refactor", "cleanup", "improve"},
				"feature":   {"new", "add", "implement"},
			},
			TestTypes: map[string][]string{
				"bug":       {"unit", "regression", "integration"},
				"tech_debt": {"unit", "integration"},
				"feature":   {"unit", "integration", "e2e"},
			},
			GeneratedCriteria: map[string][]string{
				"bug": {
					"Root cause is identified and documented on the issue",
					"A regression test reproduces the original failure",
					"The fix passes the regression test and the existing suite",
				},
				"tech_debt": {
					"Behavior is unchanged, verified by the existing test suite",
					"Affected code meets the linting and complexity baseline",
					"Removed or deprecated paths are documented",
				},
				"feature": {
					"The new behavior is covered by unit and integration tests",
					"An end-to-end test exercises the main user flow",
					"User-facing documentation is updated",
				},
			},
		},
		Readiness: ReadinessConfig{
			Threshold: 75,
			Mitigations: map[string][]string{
				"pipeline":     {"Fix failing CI jobs before kickoff", "Merge or stash pending changes on the main branch"},
				"environments": {"Verify environment configuration and credentials", "Re-run environment validation after fixes"},
				"qualityGates": {"Resolve failing quality gates or agree on a waiver", "Schedule remediation work in the first days of the cycle"},
				"team":         {"Confirm availability with every team member", "Reduce the plan to the confirmed capacity"},
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads and parses a planner configuration from the given YAML file path.
// File values overlay Default(); zero values for required tunables are then
// restored from the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// LoadDefault searches for a planner config in standard locations and loads the
// first one found. Search order: ./planner.yaml, ~/.cycleplan/config.yaml
func LoadDefault() (*Config, error) {
	candidates := []string{"planner.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".cycleplan", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no planner config found (searched: %v)", candidates)
}

// Marshal renders the config as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// applyDefaults restores defaults for operational knobs left at zero. Business
// tunables (weights, ratios) are left alone so Validate can report them.
func applyDefaults(cfg *Config) {
	d := Default()

	if cfg.Tracker.Source == "" {
		cfg.Tracker.Source = d.Tracker.Source
	}
	if cfg.Tracker.CycleLengthDays <= 0 {
		cfg.Tracker.CycleLengthDays = d.Tracker.CycleLengthDays
	}
	if cfg.Tracker.ClosedCycles <= 0 {
		cfg.Tracker.ClosedCycles = d.Tracker.ClosedCycles
	}
	if cfg.Velocity.Samples <= 0 {
		cfg.Velocity.Samples = d.Velocity.Samples
	}
	if cfg.Scoring.Concurrency <= 0 {
		cfg.Scoring.Concurrency = d.Scoring.Concurrency
	}
	if cfg.Align.Concurrency <= 0 {
		cfg.Align.Concurrency = d.Align.Concurrency
	}
	if cfg.Align.Search == "" {
		cfg.Align.Search = d.Align.Search
	}
	if cfg.Align.Root == "" {
		cfg.Align.Root = d.Align.Root
	}
	if cfg.Align.TopFiles <= 0 {
		cfg.Align.TopFiles = d.Align.TopFiles
	}
	if cfg.Align.QueueFiles <= 0 {
		cfg.Align.QueueFiles = d.Align.QueueFiles
	}
	if cfg.Align.MaxKeywords <= 0 {
		cfg.Align.MaxKeywords = d.Align.MaxKeywords
	}
	if cfg.Align.CategoryKeywords == nil {
		cfg.Align.CategoryKeywords = d.Align.CategoryKeywords
	}
	if cfg.Align.TestTypes == nil {
		cfg.Align.TestTypes = d.Align.TestTypes
	}
	if cfg.Align.GeneratedCriteria == nil {
		cfg.Align.GeneratedCriteria = d.Align.GeneratedCriteria
	}
	if cfg.Composition.MaxSwaps < 0 {
		cfg.Composition.MaxSwaps = 0
	}
	if cfg.Readiness.Mitigations == nil {
		cfg.Readiness.Mitigations = d.Readiness.Mitigations
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
}
