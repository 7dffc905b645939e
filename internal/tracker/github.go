package tracker

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/github"
)

// GitHubSource reads planning inputs from a GitHub repository through the gh
// CLI. Milestones are cycles and issues are work items.
type GitHubSource struct {
	client       *github.Client
	cycleLength  time.Duration
	backlogLimit int
	members      []string
}

// NewGitHubSource creates a source for client. Roster membership is not
// available from GitHub and comes from members.
func NewGitHubSource(client *github.Client, cycleLengthDays, backlogLimit int, members []string) *GitHubSource {
	return &GitHubSource{
		client:       client,
		cycleLength:  time.Duration(cycleLengthDays) * 24 * time.Hour,
		backlogLimit: backlogLimit,
		members:      members,
	}
}

func (g *GitHubSource) ActiveCycle(ctx context.Context) (*Cycle, error) {
	milestones, err := g.client.ListMilestones(ctx)
	if err != nil {
		return nil, err
	}

	var open []github.Milestone
	for _, m := range milestones {
		if strings.EqualFold(m.State, "open") && m.DueOn != nil {
			open = append(open, m)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}
	sort.Slice(open, func(i, j int) bool { return open[i].DueOn.Before(*open[j].DueOn) })

	c, err := g.cycle(ctx, open[0])
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (g *GitHubSource) ClosedCycles(ctx context.Context, n int) ([]Cycle, error) {
	milestones, err := g.client.ListMilestones(ctx)
	if err != nil {
		return nil, err
	}

	var closed []github.Milestone
	for _, m := range milestones {
		if strings.EqualFold(m.State, "closed") {
			closed = append(closed, m)
		}
	}
	sort.Slice(closed, func(i, j int) bool { return milestoneEnd(closed[i]).Before(milestoneEnd(closed[j])) })
	if n > 0 && len(closed) > n {
		closed = closed[len(closed)-n:]
	}

	cycles := make([]Cycle, 0, len(closed))
	for _, m := range closed {
		c, err := g.cycle(ctx, m)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, nil
}

func (g *GitHubSource) Backlog(ctx context.Context) ([]WorkItem, error) {
	issues, err := g.client.ListIssues(ctx, github.ListOpts{State: "open", NoMilestone: true, Limit: g.backlogLimit})
	if err != nil {
		return nil, err
	}
	items := make([]WorkItem, 0, len(issues))
	for i := range issues {
		items = append(items, ItemFromIssue(&issues[i]))
	}
	return items, nil
}

func (g *GitHubSource) Roster(_ context.Context) (Roster, error) {
	if len(g.members) == 0 {
		return Roster{}, fmt.Errorf("no team members configured: %w", diag.ErrDataUnavailable)
	}
	r := Roster{}
	for _, m := range g.members {
		r.Members = append(r.Members, Member{ID: m, Active: true})
	}
	return r, nil
}

func (g *GitHubSource) cycle(ctx context.Context, m github.Milestone) (Cycle, error) {
	issues, err := g.client.ListIssues(ctx, github.ListOpts{State: "all", Milestone: m.Title})
	if err != nil {
		return Cycle{}, fmt.Errorf("issues for milestone %q: %w", m.Title, err)
	}

	end := milestoneEnd(m)
	c := Cycle{
		ID:       "milestone-" + strconv.Itoa(m.Number),
		Number:   m.Number,
		Name:     m.Title,
		StartsAt: end.Add(-g.cycleLength),
		EndsAt:   end,
	}
	for i := range issues {
		c.Items = append(c.Items, ItemFromIssue(&issues[i]))
	}
	return c, nil
}

// milestoneEnd is the due date, or the close date for undated milestones.
func milestoneEnd(m github.Milestone) time.Time {
	if m.DueOn != nil {
		return *m.DueOn
	}
	if m.ClosedAt != nil {
		return *m.ClosedAt
	}
	return m.CreatedAt
}

var (
	estimateLabelRe = regexp.MustCompile(`(?i)^(?:points|estimate|sp|size)[:/ =-]?\s*(\d+)$`)
	priorityLabelRe = regexp.MustCompile(`(?i)^(?:priority[:/ -]\s*(urgent|high|medium|low)|p([0-3]))$`)
	relationLineRe  = regexp.MustCompile(`(?im)^\s*(?:[-*]\s*)?(blocked by|depends on|duplicate of|related to)\s*:?\s*#(\d+)`)
)

var startedLabels = []string{"in progress", "in-progress", "started", "doing"}

// ItemFromIssue maps a GitHub issue onto the tracker work item model.
// Estimates and priorities come from labels such as "points:5" and
// "priority:high" (or "P1"); relations come from "Blocked by #12" style lines
// in the body.
func ItemFromIssue(issue *github.Issue) WorkItem {
	item := WorkItem{
		ID:          strconv.Itoa(issue.Number),
		Identifier:  "#" + strconv.Itoa(issue.Number),
		Title:       issue.Title,
		Description: issue.Body,
		Labels:      issue.LabelNames(),
		Comments:    len(issue.Comments),
		CreatedAt:   issue.CreatedAt,
		UpdatedAt:   issue.UpdatedAt,
		CompletedAt: issue.ClosedAt,
	}
	if len(issue.Assignees) > 0 {
		item.Assignee = issue.Assignees[0].Login
	}

	for _, l := range item.Labels {
		if m := estimateLabelRe.FindStringSubmatch(l); m != nil && item.Estimate == nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				item.Estimate = &n
			}
		}
		if m := priorityLabelRe.FindStringSubmatch(l); m != nil && item.Priority == PriorityNone {
			item.Priority = labelPriority(m)
		}
	}

	switch {
	case strings.EqualFold(issue.State, "closed"):
		item.State = StateCompleted
	case item.HasLabel("blocked"):
		item.State = StateBlocked
	case item.HasLabel(startedLabels...):
		item.State = StateStarted
	case issue.Milestone != nil:
		item.State = StateUnstarted
	default:
		item.State = StateBacklog
	}

	for _, m := range relationLineRe.FindAllStringSubmatch(issue.Body, -1) {
		rel := Relation{TargetID: m[2]}
		switch strings.ToLower(m[1]) {
		case "blocked by", "depends on":
			rel.Type = RelationBlocks
		case "duplicate of":
			rel.Type = RelationDuplicate
		default:
			rel.Type = RelationRelated
		}
		item.Relations = append(item.Relations, rel)
	}
	return item
}

func labelPriority(m []string) Priority {
	if m[2] != "" {
		n, _ := strconv.Atoi(m[2])
		return Priority(n + 1)
	}
	switch strings.ToLower(m[1]) {
	case "urgent":
		return PriorityUrgent
	case "high":
		return PriorityHigh
	case "medium":
		return PriorityMedium
	default:
		return PriorityLow
	}
}
