// Package report renders planning artifacts into markdown documents.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/afero"

	"github.com/lucasnoah/cycleplan/internal/align"
	"github.com/lucasnoah/cycleplan/internal/pipeline"
	"github.com/lucasnoah/cycleplan/internal/scoring"
)

// Kinds lists the report kinds in display order. Each kind renders the
// template named "<kind>.md".
var Kinds = []string{"planning", "worklog", "kickoff"}

// Renderer expands report templates for an artifact.
type Renderer struct {
	loader *Loader
}

// NewRenderer creates a Renderer. Templates in dir on fs override the
// built-in ones; a nil fs uses the OS filesystem.
func NewRenderer(fs afero.Fs, dir string) *Renderer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Renderer{loader: NewLoader(fs, dir)}
}

// Loader exposes the template loader, e.g. to install overrides.
func (r *Renderer) Loader() *Loader {
	return r.loader
}

// Render produces the report of the given kind.
func (r *Renderer) Render(kind string, a *pipeline.Artifact) (string, error) {
	if !validKind(kind) {
		return "", fmt.Errorf("unknown report kind %q (want one of: %s)", kind, strings.Join(Kinds, ", "))
	}
	if a == nil {
		return "", fmt.Errorf("no artifact to render")
	}
	tmpl, err := r.loader.Load(kind + ".md")
	if err != nil {
		return "", err
	}
	out, err := Expand(tmpl, BuildVars(a))
	if err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	return out, nil
}

func validKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// BuildVars derives every template variable from the artifact. List values
// are markdown bullet lists; empty lists render as "" so {{#if}} can test
// them.
func BuildVars(a *pipeline.Artifact) Vars {
	items := make(map[string]pipeline.SelectedItem, len(a.ScoredSelection))
	for _, it := range a.ScoredSelection {
		items[it.ID] = it
	}

	v := Vars{
		"run_id":              a.RunID,
		"as_of":               a.Timestamp.UTC().Format(time.RFC3339),
		"config":              a.Config,
		"item_count":          fmt.Sprintf("%d", len(a.ScoredSelection)),
		"planned_points":      fmt.Sprintf("%d", a.PlannedPoints()),
		"target":              num(a.Capacity.Target),
		"point_capacity":      num(a.Capacity.PointCapacity),
		"capacity_source":     a.Capacity.Source,
		"readiness_score":     fmt.Sprintf("%.2f", a.Readiness.Score),
		"readiness_decision":  string(a.Readiness.Decision),
		"readiness_threshold": num(a.Readiness.Threshold),
		"cycle_health":        string(a.CycleHealth.Status),
		"cycle_progress":      percent(a.CycleHealth.Progress),
		"cycle_expected":      percent(a.CycleHealth.ExpectedProgress),
		"velocity":            num(a.Velocity.Average),
		"velocity_trend":      string(a.Velocity.Trend),
		"velocity_confidence": string(a.Velocity.Confidence),
		"dependency_risk":     fmt.Sprintf("%s (%d critical blockers)", a.Dependencies.Risk, a.Dependencies.CriticalBlockers),
		"backlog_readiness":   fmt.Sprintf("%s%% (%d of %d ready)", num(a.Backlog.Score), a.Backlog.Ready, a.Backlog.Total),
		"composition_targets": compositionTargets(a),
		"capacity_table":      capacityTable(a),
		"balance_table":       balanceTable(a),
		"assignment_table":    assignmentTable(a),
		"must_items":          itemList(a.Tiers.Must, items),
		"should_items":        itemList(a.Tiers.Should, items),
		"could_items":         itemList(a.Tiers.Could, items),
		"immediate":           itemList(align.IDs(a.WorkQueues.Immediate), items),
		"queues":              queueList(a.WorkQueues, items),
		"test_requirements":   testRequirements(a),
		"daily_rows":          dailyRows(a.CycleHealth.TotalDays),
		"risks":               risks(a),
		"at_risk":             atRisk(a),
		"swaps":               swaps(a),
		"advisories":          bullets(a.Readiness.Advisories),
		"excluded":            excluded(a),
		"warnings":            warnings(a),
	}

	first := a.ScoredSelection
	if len(first) > 3 {
		first = first[:3]
	}
	ids := make([]string, 0, len(first))
	for _, it := range first {
		ids = append(ids, it.ID)
	}
	v["first_items"] = itemList(ids, items)
	return v
}

func itemLine(it pipeline.SelectedItem) string {
	label := it.ID
	if it.Identifier != "" {
		label = it.Identifier
	}
	return fmt.Sprintf("- **%s** %s (%d pts, %s, %s, score %s)", label, it.Title, it.Estimate, it.Priority, it.Category, num(it.Score))
}

func itemList(ids []string, items map[string]pipeline.SelectedItem) string {
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		if it, ok := items[id]; ok {
			lines = append(lines, itemLine(it))
		} else {
			lines = append(lines, "- "+id)
		}
	}
	return strings.Join(lines, "\n")
}

func bullets(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "- " + strings.Join(lines, "\n- ")
}

func capacityTable(a *pipeline.Artifact) string {
	c := a.Capacity
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Measure", "Value"})
	tw.AppendRows([]table.Row{
		{"Active members", c.ActiveMembers},
		{"Point capacity", num(c.PointCapacity) + " (" + c.Source + ")"},
		{"Buffer factor", num(c.BufferFactor)},
		{"Expected carryover", num(c.Carryover)},
		{"Target", num(c.Target)},
		{"Planned", a.PlannedPoints()},
	})
	return tw.RenderMarkdown()
}

func balanceTable(a *pipeline.Artifact) string {
	comp := a.Composition
	ratios := map[scoring.Category]float64{
		scoring.Bug:      comp.Bug,
		scoring.TechDebt: comp.TechDebt,
		scoring.Feature:  comp.Feature,
	}
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Category", "Points", "Actual", "Target"})
	for _, cat := range scoring.Categories {
		tw.AppendRow(table.Row{cat, comp.Points[cat], percent(ratios[cat]), percent(comp.Targets[cat])})
	}
	return tw.RenderMarkdown()
}

func compositionTargets(a *pipeline.Artifact) string {
	parts := make([]string, 0, len(scoring.Categories))
	for _, cat := range scoring.Categories {
		parts = append(parts, fmt.Sprintf("%s %s", percent(a.Composition.Targets[cat]), cat))
	}
	return strings.Join(parts, " / ")
}

func assignmentTable(a *pipeline.Artifact) string {
	queueOf := make(map[string]align.Queue, len(a.Alignment))
	riskOf := make(map[string]align.Risk, len(a.Alignment))
	for _, d := range a.Alignment {
		queueOf[d.ItemID] = d.Queue
		riskOf[d.ItemID] = d.Risk
	}
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Item", "Primary", "Supporting", "Queue", "Risk"})
	for _, it := range a.ScoredSelection {
		as := a.Assignments[it.ID]
		tw.AppendRow(table.Row{it.ID, as.Primary, strings.Join(as.Supporting, ", "), queueOf[it.ID], riskOf[it.ID]})
	}
	return tw.RenderMarkdown()
}

func queueList(q align.WorkQueues, items map[string]pipeline.SelectedItem) string {
	var b strings.Builder
	for _, e := range []struct {
		name    string
		entries []align.WorkQueueEntry
	}{
		{"Immediate", q.Immediate},
		{"Standard", q.Standard},
		{"Background", q.Background},
		{"Review", q.Review},
	} {
		fmt.Fprintf(&b, "### %s\n", e.name)
		if len(e.entries) == 0 {
			b.WriteString("_Empty._\n\n")
			continue
		}
		for _, en := range e.entries {
			b.WriteString(queueLine(en, items))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func queueLine(e align.WorkQueueEntry, items map[string]pipeline.SelectedItem) string {
	label := e.ItemID
	if it, ok := items[e.ItemID]; ok && it.Identifier != "" {
		label = it.Identifier
	}
	line := fmt.Sprintf("- **%s** %s (%d pts, %s, %s risk)", label, e.Title, e.Estimate, e.Category, e.Risk)
	if len(e.Files) > 0 {
		line += "\n  - Files: `" + strings.Join(e.Files, "`, `") + "`"
	}
	return line
}

func testRequirements(a *pipeline.Artifact) string {
	var b strings.Builder
	for _, it := range a.ScoredSelection {
		req, ok := a.TestRequirements[it.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "### %s\n", it.ID)
		fmt.Fprintf(&b, "- Coverage: line %s%%, branch %s%%, function %s%%\n",
			num(req.Coverage.Line), num(req.Coverage.Branch), num(req.Coverage.Function))
		types := make([]string, 0, len(req.Types))
		for _, t := range req.Types {
			types = append(types, fmt.Sprintf("%s (%d)", t, req.Counts[t]))
		}
		fmt.Fprintf(&b, "- Tests: %s\n", strings.Join(types, ", "))
		for _, ac := range req.AcceptanceCriteria {
			fmt.Fprintf(&b, "- [ ] %s\n", ac)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "_No items planned._"
	}
	return strings.TrimRight(b.String(), "\n")
}

// dailyRows emits one blank log row per cycle day, defaulting to two weeks.
func dailyRows(totalDays float64) string {
	n := int(totalDays + 0.5)
	if n <= 0 {
		n = 14
	}
	rows := make([]string, 0, n)
	for d := 1; d <= n; d++ {
		rows = append(rows, fmt.Sprintf("| %d | | | | |", d))
	}
	return strings.Join(rows, "\n")
}

func risks(a *pipeline.Artifact) string {
	var b strings.Builder
	for _, r := range a.Readiness.Risks {
		fmt.Fprintf(&b, "- **%s**: %s\n", r.Group, r.Description)
		for _, f := range r.Failed {
			fmt.Fprintf(&b, "  - failed: %s\n", f)
		}
		for _, m := range a.Readiness.Mitigations[string(r.Group)] {
			fmt.Fprintf(&b, "  - mitigation: %s\n", m)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func atRisk(a *pipeline.Artifact) string {
	lines := make([]string, 0, len(a.AtRisk))
	for _, r := range a.AtRisk {
		lines = append(lines, fmt.Sprintf("%s %s: %s", r.ItemID, r.Title, r.Reason))
	}
	return bullets(lines)
}

func swaps(a *pipeline.Artifact) string {
	lines := make([]string, 0, len(a.Composition.Swaps))
	for _, s := range a.Composition.Swaps {
		lines = append(lines, fmt.Sprintf("%s (%s) out, %s (%s) in", s.Out, s.From, s.In, s.To))
	}
	return bullets(lines)
}

func excluded(a *pipeline.Artifact) string {
	ex := append([]scoring.Exclusion(nil), a.Excluded...)
	sort.SliceStable(ex, func(i, j int) bool { return ex[i].ItemID < ex[j].ItemID })
	lines := make([]string, 0, len(ex))
	for _, e := range ex {
		lines = append(lines, e.ItemID+": "+e.Reason)
	}
	return bullets(lines)
}

func warnings(a *pipeline.Artifact) string {
	lines := make([]string, 0, len(a.Warnings))
	for _, w := range a.Warnings {
		lines = append(lines, w.String())
	}
	return bullets(lines)
}

// num formats without trailing zeros: 42.5, 40, 0.85.
func num(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func percent(ratio float64) string {
	return num(ratio*100) + "%"
}
