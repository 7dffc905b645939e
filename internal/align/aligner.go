// Package align maps planned work items onto the codebase: related files,
// implementation risk, work queue, role sequence and test requirements.
package align

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/scoring"
	"github.com/lucasnoah/cycleplan/internal/selection"
)

// StageName identifies this stage in warnings and events.
const StageName = "alignment"

// Detail is the per-item alignment trace.
type Detail struct {
	ItemID          string           `json:"itemId"`
	Category        scoring.Category `json:"category"`
	Keywords        []string         `json:"keywords"`
	Files           []FileHit        `json:"files"`
	Metrics         FileSetMetrics   `json:"metrics"`
	ComplexityScore int              `json:"complexityScore"`
	CoverageScore   int              `json:"coverageScore"`
	Risk            Risk             `json:"risk"`
	Queue           Queue            `json:"queue"`
}

// WorkQueueEntry is the queue view of one planned item.
type WorkQueueEntry struct {
	ItemID   string           `json:"itemId"`
	Title    string           `json:"title"`
	Category scoring.Category `json:"category"`
	Estimate int              `json:"estimate"`
	Risk     Risk             `json:"risk"`
	Files    []string         `json:"files"`
}

// WorkQueues holds the entries of each queue in plan order.
type WorkQueues struct {
	Immediate  []WorkQueueEntry `json:"immediate"`
	Standard   []WorkQueueEntry `json:"standard"`
	Background []WorkQueueEntry `json:"background"`
	Review     []WorkQueueEntry `json:"review"`
}

func (q *WorkQueues) add(queue Queue, e WorkQueueEntry) {
	switch queue {
	case QueueImmediate:
		q.Immediate = append(q.Immediate, e)
	case QueueBackground:
		q.Background = append(q.Background, e)
	case QueueReview:
		q.Review = append(q.Review, e)
	default:
		q.Standard = append(q.Standard, e)
	}
}

// IDs returns the item IDs of entries.
func IDs(entries []WorkQueueEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ItemID)
	}
	return ids
}

// Result is the output of the alignment stage.
type Result struct {
	Assignments      map[string]Assignment       `json:"assignments"`
	WorkQueues       WorkQueues                  `json:"workQueues"`
	TestRequirements map[string]TestRequirements `json:"testRequirements"`
	Details          []Detail                    `json:"details"`
	Warnings         []diag.Warning              `json:"warnings"`
}

// Aligner runs the per-item alignment.
type Aligner struct {
	cfg      *config.Config
	searcher Searcher
	analyzer Analyzer
}

// NewAligner creates an Aligner. A nil analyzer means no analysis data.
func NewAligner(cfg *config.Config, searcher Searcher, analyzer Analyzer) *Aligner {
	if analyzer == nil {
		analyzer = StaticAnalyzer{}
	}
	return &Aligner{cfg: cfg, searcher: searcher, analyzer: analyzer}
}

type itemResult struct {
	detail     Detail
	entry      WorkQueueEntry
	assignment Assignment
	reqs       TestRequirements
	warnings   []diag.Warning
}

// Align processes every planned item. Items are aligned concurrently; the
// output keeps plan order. Search and analysis failures degrade to unknown
// data with a warning. The only error returned is context cancellation.
func (a *Aligner) Align(ctx context.Context, plan *selection.Plan) (*Result, error) {
	results := make([]itemResult, len(plan.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Align.Concurrency)
	for i := range plan.Items {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.alignItem(gctx, &plan.Items[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aligning plan: %w", err)
	}

	res := &Result{
		Assignments:      make(map[string]Assignment, len(results)),
		TestRequirements: make(map[string]TestRequirements, len(results)),
		WorkQueues: WorkQueues{
			Immediate:  []WorkQueueEntry{},
			Standard:   []WorkQueueEntry{},
			Background: []WorkQueueEntry{},
			Review:     []WorkQueueEntry{},
		},
		Details:  make([]Detail, 0, len(results)),
		Warnings: []diag.Warning{},
	}
	for _, r := range results {
		id := r.detail.ItemID
		res.Assignments[id] = r.assignment
		res.TestRequirements[id] = r.reqs
		res.WorkQueues.add(r.detail.Queue, r.entry)
		res.Details = append(res.Details, r.detail)
		res.Warnings = append(res.Warnings, r.warnings...)
	}
	return res, nil
}

func (a *Aligner) alignItem(ctx context.Context, si *scoring.ScoredItem) itemResult {
	ac := a.cfg.Align
	item := &si.Item
	var warnings []diag.Warning

	keywords := Keywords(item.Title, item.Description, si.Category, ac)

	var files []FileHit
	if a.searcher != nil {
		hits, err := a.searcher.Search(ctx, keywords)
		if err != nil {
			warnings = append(warnings, diag.New(diag.DataUnavailable, StageName,
				"code search for %s failed: %v", item.Display(), err))
		}
		files = Rank(hits, ac.TopFiles)
	}
	if files == nil {
		files = []FileHit{}
	}

	fileSet := make([]string, 0, len(files))
	for i, f := range files {
		if i >= ac.QueueFiles {
			break
		}
		fileSet = append(fileSet, f.Path)
	}

	var m FileSetMetrics
	if len(fileSet) > 0 {
		fm, err := a.analyzer.Analyze(ctx, fileSet)
		if err != nil {
			warnings = append(warnings, diag.New(diag.DataUnavailable, StageName,
				"static analysis for %s failed: %v", item.Display(), err))
		}
		m = Aggregate(fileSet, fm)
	}

	cx, cov := ComplexityScore(m), CoverageScore(m)
	risk := RiskOf(cx, cov)
	queue := ClassifyQueue(si.Category, item.Priority, risk, m, ac.ReviewCoverage)

	return itemResult{
		detail: Detail{
			ItemID:          item.ID,
			Category:        si.Category,
			Keywords:        keywords,
			Files:           files,
			Metrics:         m,
			ComplexityScore: cx,
			CoverageScore:   cov,
			Risk:            risk,
			Queue:           queue,
		},
		entry: WorkQueueEntry{
			ItemID:   item.ID,
			Title:    item.Title,
			Category: si.Category,
			Estimate: item.Points(),
			Risk:     risk,
			Files:    fileSet,
		},
		assignment: AssignRoles(si.Category, queue, risk),
		reqs:       Requirements(item, si.Category, ac),
		warnings:   warnings,
	}
}
