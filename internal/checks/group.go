package checks

import (
	"context"
	"fmt"
)

// GroupCheckResult holds the result of a single check within a group run.
type GroupCheckResult struct {
	Check    string `json:"check"`
	Passed   bool   `json:"passed"`
	TimedOut bool   `json:"timed_out,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// GroupResult is the structured output of running every check in a group.
type GroupResult struct {
	Group  string             `json:"group"`
	Passed bool               `json:"passed"`
	Checks []GroupCheckResult `json:"checks"`
}

// Failed returns the names of failed checks in run order.
func (g *GroupResult) Failed() []string {
	var names []string
	for _, c := range g.Checks {
		if !c.Passed {
			names = append(names, c.Check)
		}
	}
	return names
}

// RunGroup executes every check in order, even after a failure, so the
// group reports a result for each. A check whose command cannot be started
// is recorded as failed. Only cancellation of ctx aborts the run.
func (r *Runner) RunGroup(ctx context.Context, dir, group string, checks []CheckConfig) (*GroupResult, []*Result, error) {
	gr := &GroupResult{Group: group, Passed: true, Checks: []GroupCheckResult{}}
	var all []*Result

	for _, chk := range checks {
		result, err := r.Run(ctx, dir, chk)
		if err != nil {
			if ctx.Err() != nil {
				return nil, all, fmt.Errorf("group %s: %w", group, ctx.Err())
			}
			result = &Result{CheckName: chk.Name, ExitCode: -1, Summary: err.Error()}
		}
		all = append(all, result)

		gr.Checks = append(gr.Checks, GroupCheckResult{
			Check:    chk.Name,
			Passed:   result.Passed,
			TimedOut: result.TimedOut,
			Summary:  result.Summary,
		})
		if !result.Passed {
			gr.Passed = false
		}
	}
	return gr, all, nil
}
