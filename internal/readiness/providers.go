package readiness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lucasnoah/cycleplan/internal/checks"
	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/github"
)

// StaticProvider serves checks decided ahead of time, such as team
// confirmations from config or a checks file.
type StaticProvider struct {
	name   string
	group  Group
	checks []Check
}

// NewStaticProvider creates a StaticProvider.
func NewStaticProvider(name string, group Group, checks []Check) *StaticProvider {
	return &StaticProvider{name: name, group: group, checks: checks}
}

func (p *StaticProvider) Name() string { return p.name }
func (p *StaticProvider) Group() Group { return p.group }

// Collect implements Provider.
func (p *StaticProvider) Collect(context.Context) ([]Check, error) {
	out := make([]Check, len(p.checks))
	for i, c := range p.checks {
		c.Group = p.group
		if c.Source == "" {
			c.Source = p.name
		}
		out[i] = c
	}
	return out, nil
}

// LoadChecksFile reads pre-collected check results from a JSON or YAML file
// keyed by group name and returns one StaticProvider per group in reporting
// order.
func LoadChecksFile(path string) ([]Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checks file: %w", err)
	}
	var raw map[string][]Check
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	default:
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse checks file %s: %w", path, err)
	}

	var providers []Provider
	for _, g := range Groups {
		if cs, ok := raw[string(g)]; ok {
			providers = append(providers, NewStaticProvider("file:"+string(g), g, cs))
		}
	}
	return providers, nil
}

// CommandProvider runs shell-command checks through a checks.Runner.
type CommandProvider struct {
	group  Group
	runner *checks.Runner
	dir    string
	specs  []checks.CheckConfig
}

// NewCommandProvider creates a CommandProvider.
func NewCommandProvider(group Group, runner *checks.Runner, dir string, specs []checks.CheckConfig) *CommandProvider {
	return &CommandProvider{group: group, runner: runner, dir: dir, specs: specs}
}

func (p *CommandProvider) Name() string { return "commands:" + string(p.group) }
func (p *CommandProvider) Group() Group { return p.group }

// Collect implements Provider.
func (p *CommandProvider) Collect(ctx context.Context) ([]Check, error) {
	gr, _, err := p.runner.RunGroup(ctx, p.dir, string(p.group), p.specs)
	if err != nil {
		return nil, err
	}
	out := make([]Check, 0, len(gr.Checks))
	for _, c := range gr.Checks {
		out = append(out, Check{
			Group:  p.group,
			Name:   c.Check,
			Passed: c.Passed,
			Detail: c.Summary,
			Source: "command",
		})
	}
	return out, nil
}

// GitHubCIProvider checks the latest workflow run on a branch and, when a
// checkout directory is set, that the working tree is clean.
type GitHubCIProvider struct {
	client *github.Client
	branch string
	dir    string
}

// NewGitHubCIProvider creates a GitHubCIProvider.
func NewGitHubCIProvider(client *github.Client, branch, dir string) *GitHubCIProvider {
	if branch == "" {
		branch = "main"
	}
	return &GitHubCIProvider{client: client, branch: branch, dir: dir}
}

func (p *GitHubCIProvider) Name() string { return "github-ci" }
func (p *GitHubCIProvider) Group() Group { return GroupPipeline }

// Collect implements Provider.
func (p *GitHubCIProvider) Collect(ctx context.Context) ([]Check, error) {
	run, err := p.client.LatestWorkflowRun(ctx, p.branch)
	if err != nil {
		return nil, err
	}
	ci := Check{Group: GroupPipeline, Name: "ci:" + p.branch, Source: p.Name()}
	switch {
	case run == nil:
		ci.Detail = "no workflow runs found"
	default:
		ci.Passed = run.Passed()
		ci.Detail = fmt.Sprintf("%s: %s/%s", run.Name, run.Status, run.Conclusion)
	}
	out := []Check{ci}

	if p.dir != "" {
		clean, err := p.client.WorkingTreeClean(ctx, p.dir)
		wt := Check{Group: GroupPipeline, Name: "clean working tree", Passed: clean, Source: p.Name()}
		if err != nil {
			wt.Detail = err.Error()
		} else if !clean {
			wt.Detail = "uncommitted changes present"
		}
		out = append(out, wt)
	}
	return out, nil
}

// ProviderOpts wires external collaborators into BuildProviders.
type ProviderOpts struct {
	Runner *checks.Runner
	GitHub *github.Client
	Dir    string
	Branch string
}

// BuildProviders turns the readiness config into providers: confirmations
// become static checks and commands become command checks, per group.
func BuildProviders(rc config.ReadinessConfig, opts ProviderOpts) ([]Provider, error) {
	var providers []Provider
	if rc.GitHubCI && opts.GitHub != nil {
		providers = append(providers, NewGitHubCIProvider(opts.GitHub, opts.Branch, opts.Dir))
	}

	specs := map[Group][]config.CheckSpec{
		GroupPipeline:     rc.Pipeline,
		GroupEnvironments: rc.Environments,
		GroupQualityGates: rc.QualityGates,
		GroupTeam:         rc.Team,
	}
	for _, g := range Groups {
		var static []Check
		var commands []checks.CheckConfig
		for _, s := range specs[g] {
			if s.Command == "" {
				if s.Confirmed != nil {
					static = append(static, Check{Name: s.Name, Passed: *s.Confirmed, Source: "config"})
				}
				continue
			}
			var timeout time.Duration
			if s.Timeout != "" {
				d, err := time.ParseDuration(s.Timeout)
				if err != nil {
					return nil, fmt.Errorf("check %q: invalid timeout %q: %w", s.Name, s.Timeout, err)
				}
				timeout = d
			}
			commands = append(commands, checks.CheckConfig{Name: s.Name, Command: s.Command, Parser: s.Parser, Timeout: timeout})
		}
		if len(static) > 0 {
			providers = append(providers, NewStaticProvider("config:"+string(g), g, static))
		}
		if len(commands) > 0 {
			if opts.Runner == nil {
				return nil, fmt.Errorf("readiness group %s has command checks but no runner", g)
			}
			providers = append(providers, NewCommandProvider(g, opts.Runner, opts.Dir, commands))
		}
	}

	if rc.ChecksFile != "" {
		fromFile, err := LoadChecksFile(rc.ChecksFile)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fromFile...)
	}
	return providers, nil
}
