package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CmdRunner provides gh command execution. Interface for testing.
type CmdRunner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// GitRunner provides git command execution. Interface for testing.
type GitRunner interface {
	RunGit(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner runs gh and git commands via exec.
type ExecRunner struct{}

func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("gh %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// RunGit implements GitRunner using exec.CommandContext.
func (r *ExecRunner) RunGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Client provides read-only GitHub operations for a single repository.
type Client struct {
	cmd  CmdRunner
	git  GitRunner
	repo string
}

// NewClient creates a GitHub client for repo ("owner/name"). If cmd also
// implements GitRunner, it will be used for git operations.
func NewClient(cmd CmdRunner, repo string) *Client {
	c := &Client{cmd: cmd, repo: repo}
	if git, ok := cmd.(GitRunner); ok {
		c.git = git
	}
	return c
}

// NewClientWithGit creates a GitHub client with a separate git runner.
func NewClientWithGit(cmd CmdRunner, git GitRunner, repo string) *Client {
	return &Client{cmd: cmd, git: git, repo: repo}
}

// Repo returns the configured repository.
func (c *Client) Repo() string {
	return c.repo
}

// Issue represents a GitHub issue.
type Issue struct {
	Number             int               `json:"number"`
	Title              string            `json:"title"`
	Body               string            `json:"body"`
	State              string            `json:"state"`
	Labels             []Label           `json:"labels"`
	Assignees          []User            `json:"assignees"`
	Milestone          *Milestone        `json:"milestone,omitempty"`
	Comments           []json.RawMessage `json:"comments"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
	ClosedAt           *time.Time        `json:"closedAt,omitempty"`
	AcceptanceCriteria string            `json:"acceptance_criteria,omitempty"`
}

// Label represents a GitHub label.
type Label struct {
	Name string `json:"name"`
}

// User represents a GitHub user reference.
type User struct {
	Login string `json:"login"`
}

// Milestone represents a GitHub milestone. Milestones are the tracker's
// notion of a cycle.
type Milestone struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	State       string     `json:"state"`
	DueOn       *time.Time `json:"due_on,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// LabelNames returns the issue's label names.
func (i *Issue) LabelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	return names
}

// ValidateIssueNumber checks that an issue number is positive.
func ValidateIssueNumber(n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid issue number %d: must be positive", n)
	}
	return nil
}

const issueFields = "number,title,body,state,labels,assignees,milestone,comments,createdAt,updatedAt,closedAt"

// GetIssue fetches a GitHub issue by number.
func (c *Client) GetIssue(ctx context.Context, number int) (*Issue, error) {
	if err := ValidateIssueNumber(number); err != nil {
		return nil, err
	}

	out, err := c.cmd.Run(ctx, "issue", "view", strconv.Itoa(number), "--repo", c.repo, "--json", issueFields)
	if err != nil {
		return nil, fmt.Errorf("get issue %d: %w", number, err)
	}

	var issue Issue
	if err := json.Unmarshal([]byte(out), &issue); err != nil {
		return nil, fmt.Errorf("parse issue JSON: %w", err)
	}

	issue.AcceptanceCriteria = ExtractAcceptanceCriteria(issue.Body)
	return &issue, nil
}

// ListOpts filters an issue listing.
type ListOpts struct {
	State       string // open | closed | all
	Milestone   string
	NoMilestone bool
	Limit       int
}

// ListIssues lists issues matching opts.
func (c *Client) ListIssues(ctx context.Context, opts ListOpts) ([]Issue, error) {
	state := opts.State
	if state == "" {
		state = "open"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 200
	}
	args := []string{"issue", "list", "--repo", c.repo, "--state", state, "--limit", strconv.Itoa(limit), "--json", issueFields}
	if opts.Milestone != "" {
		args = append(args, "--milestone", opts.Milestone)
	}
	if opts.NoMilestone {
		args = append(args, "--search", "no:milestone")
	}

	out, err := c.cmd.Run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	var issues []Issue
	if err := json.Unmarshal([]byte(out), &issues); err != nil {
		return nil, fmt.Errorf("parse issue list JSON: %w", err)
	}
	for i := range issues {
		issues[i].AcceptanceCriteria = ExtractAcceptanceCriteria(issues[i].Body)
	}
	return issues, nil
}

// ListMilestones lists the repository's milestones in every state.
func (c *Client) ListMilestones(ctx context.Context) ([]Milestone, error) {
	out, err := c.cmd.Run(ctx, "api", fmt.Sprintf("repos/%s/milestones?state=all&per_page=100", c.repo))
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}

	var milestones []Milestone
	if err := json.Unmarshal([]byte(out), &milestones); err != nil {
		return nil, fmt.Errorf("parse milestone JSON: %w", err)
	}
	return milestones, nil
}

// WorkflowRun is the summary of a GitHub Actions run.
type WorkflowRun struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	HeadBranch string `json:"headBranch"`
	URL        string `json:"url"`
}

// Passed reports whether the run completed successfully.
func (r *WorkflowRun) Passed() bool {
	return r.Status == "completed" && r.Conclusion == "success"
}

// LatestWorkflowRun returns the most recent run on branch, or nil if there
// are none.
func (c *Client) LatestWorkflowRun(ctx context.Context, branch string) (*WorkflowRun, error) {
	if strings.HasPrefix(branch, "-") {
		return nil, fmt.Errorf("invalid branch name %q: must not start with -", branch)
	}
	out, err := c.cmd.Run(ctx, "run", "list", "--repo", c.repo, "--branch", branch, "--limit", "1", "--json", "name,status,conclusion,headBranch,url")
	if err != nil {
		return nil, fmt.Errorf("list workflow runs: %w", err)
	}

	var runs []WorkflowRun
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		return nil, fmt.Errorf("parse workflow run JSON: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// WorkingTreeClean reports whether the checkout at dir has no uncommitted changes.
func (c *Client) WorkingTreeClean(ctx context.Context, dir string) (bool, error) {
	if c.git == nil {
		return false, fmt.Errorf("git runner not configured")
	}
	out, err := c.git.RunGit(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return strings.TrimSpace(out) == "", nil
}

var acHeaderRe = regexp.MustCompile(`(?mi)^##\s+acceptance\s+criteria`)
var checkboxRe = regexp.MustCompile(`(?m)^\s*[-*]\s+\[[ xX]\]\s+(.+)$`)
var nextHeaderRe = regexp.MustCompile(`(?m)^##\s+`)

// ExtractAcceptanceCriteria parses acceptance criteria from an issue body.
// It looks for "## Acceptance Criteria" header or checkbox lists.
func ExtractAcceptanceCriteria(body string) string {
	loc := acHeaderRe.FindStringIndex(body)
	if loc != nil {
		section := body[loc[1]:]
		nextLoc := nextHeaderRe.FindStringIndex(section)
		if nextLoc != nil {
			section = section[:nextLoc[0]]
		}
		return strings.TrimSpace(section)
	}

	matches := checkboxRe.FindAllStringSubmatch(body, -1)
	if len(matches) > 0 {
		var criteria []string
		for _, m := range matches {
			criteria = append(criteria, "- "+m[1])
		}
		return strings.Join(criteria, "\n")
	}

	return ""
}
