// Package readiness aggregates pre-cycle checks into a GO / NO-GO decision.
package readiness

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/diag"
)

// StageName identifies this stage in warnings and events.
const StageName = "readiness"

// Group is a category of readiness checks.
type Group string

const (
	GroupPipeline     Group = "pipeline"
	GroupEnvironments Group = "environments"
	GroupQualityGates Group = "qualityGates"
	GroupTeam         Group = "team"
)

// Groups lists every group in reporting order.
var Groups = []Group{GroupPipeline, GroupEnvironments, GroupQualityGates, GroupTeam}

var groupTitles = map[Group]string{
	GroupPipeline:     "CI pipeline or version control is not in a releasable state",
	GroupEnvironments: "Environment or configuration validation failed",
	GroupQualityGates: "Quality gates are failing",
	GroupTeam:         "Team readiness is not confirmed",
}

// Decision is the gate outcome.
type Decision string

const (
	DecisionGo   Decision = "GO"
	DecisionNoGo Decision = "NO-GO"
)

// Check is a single pass/fail readiness input.
type Check struct {
	Group  Group  `json:"group" yaml:"group"`
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Provider supplies the checks of one group.
type Provider interface {
	Name() string
	Group() Group
	Collect(ctx context.Context) ([]Check, error)
}

// Risk is raised for every group with at least one failed check.
type Risk struct {
	Group       Group    `json:"group"`
	Description string   `json:"description"`
	Failed      []string `json:"failed"`
}

// GroupSummary counts a group's checks.
type GroupSummary struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

// Context carries plan facts the gate turns into advisories. Advisories never
// change the decision.
type Context struct {
	HighRiskItems      []string
	ConstraintWarnings int
	VelocityConfidence string
}

// Result is the output of the readiness stage.
type Result struct {
	Score       float64                `json:"score"`
	Decision    Decision               `json:"decision"`
	Threshold   float64                `json:"threshold"`
	Passed      int                    `json:"passed"`
	Total       int                    `json:"total"`
	Groups      map[Group]GroupSummary `json:"groups"`
	Checks      []Check                `json:"checks"`
	Risks       []Risk                 `json:"risks"`
	Mitigations map[string][]string    `json:"mitigations"`
	Advisories  []string               `json:"advisories"`
	Warnings    []diag.Warning         `json:"warnings"`
}

// Gate evaluates readiness checks.
type Gate struct {
	cfg *config.Config
}

// NewGate creates a Gate.
func NewGate(cfg *config.Config) *Gate {
	return &Gate{cfg: cfg}
}

// Collect asks every provider for its checks exactly once, in order. A
// provider that fails contributes a single failed "unavailable" check to its
// group plus a warning. Only cancellation of ctx is returned as an error.
func (g *Gate) Collect(ctx context.Context, providers []Provider) ([]Check, []diag.Warning, error) {
	checks := []Check{}
	warnings := []diag.Warning{}
	for _, p := range providers {
		cs, err := p.Collect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, fmt.Errorf("collect readiness checks: %w", ctx.Err())
			}
			checks = append(checks, Check{
				Group:  p.Group(),
				Name:   p.Name() + " unavailable",
				Detail: err.Error(),
				Source: p.Name(),
			})
			warnings = append(warnings, diag.New(diag.DataUnavailable, StageName,
				"%s checks unavailable: %v", p.Name(), err))
			continue
		}
		checks = append(checks, cs...)
	}
	return checks, warnings, nil
}

// Evaluate scores checks and decides GO or NO-GO. It is a pure function of
// its inputs. With no checks at all the score is 0.
func (g *Gate) Evaluate(checks []Check, pc Context) *Result {
	rc := g.cfg.Readiness
	res := &Result{
		Threshold:   rc.Threshold,
		Groups:      make(map[Group]GroupSummary, len(Groups)),
		Checks:      append([]Check{}, checks...),
		Risks:       []Risk{},
		Mitigations: map[string][]string{},
		Advisories:  []string{},
		Warnings:    []diag.Warning{},
	}
	for _, grp := range Groups {
		res.Groups[grp] = GroupSummary{}
	}

	failed := make(map[Group][]string)
	for _, c := range checks {
		s := res.Groups[c.Group]
		s.Total++
		res.Total++
		if c.Passed {
			s.Passed++
			res.Passed++
		} else {
			failed[c.Group] = append(failed[c.Group], c.Name)
		}
		res.Groups[c.Group] = s
	}

	if res.Total > 0 {
		res.Score = math.Round(float64(res.Passed)/float64(res.Total)*10000) / 100
	}
	res.Decision = DecisionNoGo
	if res.Total > 0 && res.Score >= rc.Threshold {
		res.Decision = DecisionGo
	}

	for _, grp := range orderedGroups(failed) {
		title, ok := groupTitles[grp]
		if !ok {
			title = fmt.Sprintf("%s checks failed", grp)
		}
		res.Risks = append(res.Risks, Risk{Group: grp, Description: title, Failed: failed[grp]})
		if m, ok := rc.Mitigations[string(grp)]; ok {
			res.Mitigations[string(grp)] = append([]string(nil), m...)
		}
	}

	res.Advisories = advisories(pc)

	if res.Decision == DecisionNoGo {
		msg := fmt.Sprintf("readiness %.2f%% is below the %.0f%% threshold", res.Score, rc.Threshold)
		if res.Total == 0 {
			msg = "no readiness checks were supplied"
		}
		res.Warnings = append(res.Warnings, diag.New(diag.GateFailure, StageName, "%s", msg))
	}
	return res
}

// orderedGroups returns the keys of failed in reporting order, with unknown
// groups sorted after the known ones.
func orderedGroups(failed map[Group][]string) []Group {
	var out []Group
	known := make(map[Group]bool)
	for _, g := range Groups {
		known[g] = true
		if len(failed[g]) > 0 {
			out = append(out, g)
		}
	}
	var extra []Group
	for g := range failed {
		if !known[g] {
			extra = append(extra, g)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

func advisories(pc Context) []string {
	out := []string{}
	if n := len(pc.HighRiskItems); n > 0 {
		out = append(out, fmt.Sprintf("%d high-risk item(s) planned: %s", n, strings.Join(pc.HighRiskItems, ", ")))
	}
	if pc.ConstraintWarnings > 0 {
		out = append(out, fmt.Sprintf("plan carries %d constraint warning(s)", pc.ConstraintWarnings))
	}
	if pc.VelocityConfidence == "low" {
		out = append(out, "velocity confidence is low; treat the capacity estimate with caution")
	}
	return out
}
