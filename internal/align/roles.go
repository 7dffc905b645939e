package align

import "github.com/lucasnoah/cycleplan/internal/scoring"

// Roles.
const (
	RoleImplementer       = "implementer"
	RoleTester            = "tester"
	RoleValidator         = "validator"
	RoleAuditor           = "auditor"
	RoleLinter            = "linter"
	RoleIncidentResponder = "incident_responder"
	RoleReviewer          = "reviewer"
	RoleSecurityReviewer  = "security_reviewer"
)

var categorySequence = map[scoring.Category][]string{
	scoring.Bug:      {RoleTester, RoleImplementer, RoleValidator},
	scoring.TechDebt: {RoleAuditor, RoleImplementer, RoleLinter, RoleValidator},
	scoring.Feature:  {RoleImplementer, RoleTester, RoleValidator},
}

var categoryStrategy = map[scoring.Category]string{
	scoring.Bug:      "reproduce_first",
	scoring.TechDebt: "incremental_refactor",
	scoring.Feature:  "test_driven",
}

var queueStrategy = map[Queue]string{
	QueueImmediate:  "expedite",
	QueueBackground: "background",
	QueueReview:     "peer_review",
}

// Assignment is the role plan for one item.
type Assignment struct {
	Primary    string   `json:"primary"`
	Supporting []string `json:"supporting"`
	Sequence   []string `json:"sequence"`
	Strategy   []string `json:"strategy"`
}

// AssignRoles builds the role sequence for an item from its category, queue
// and risk.
func AssignRoles(cat scoring.Category, queue Queue, risk Risk) Assignment {
	base, ok := categorySequence[cat]
	if !ok {
		base = categorySequence[scoring.Feature]
	}

	var seq []string
	if queue == QueueImmediate {
		seq = append(seq, RoleIncidentResponder)
	}
	seq = append(seq, base...)
	if queue == QueueReview {
		seq = append(seq, RoleReviewer)
	}
	if risk == RiskHigh {
		seq = append(seq, RoleSecurityReviewer)
	}
	seq = dedupe(seq)

	supporting := []string{}
	for _, r := range seq {
		if r != RoleImplementer {
			supporting = append(supporting, r)
		}
	}

	strategy := []string{categoryStrategy[cat]}
	if s, ok := queueStrategy[queue]; ok {
		strategy = append(strategy, s)
	}
	if risk == RiskHigh {
		strategy = append(strategy, "risk_review")
	}

	return Assignment{
		Primary:    RoleImplementer,
		Supporting: supporting,
		Sequence:   seq,
		Strategy:   dedupe(strategy),
	}
}

// dedupe returns a new slice with duplicates removed, preserving order.
// Always returns a non-nil slice for consistent JSON serialization.
func dedupe(items []string) []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, item := range items {
		if item != "" && !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
