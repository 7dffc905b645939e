package scoring

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/diag"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// StageName identifies this stage in warnings and events.
const StageName = "scoring"

// Exclusion reasons.
const (
	ExcludedUnestimated     = "unestimated"
	ExcludedZeroEstimate    = "zero_estimate"
	ExcludedThinDescription = "thin_description"
	ExcludedClosed          = "closed"
)

// ScoredItem is an immutable scored backlog candidate.
type ScoredItem struct {
	Item     tracker.WorkItem `json:"item"`
	Score    float64          `json:"score"`
	Factors  Factors          `json:"factors"`
	Category Category         `json:"category"`
}

// Points returns the item's estimate.
func (s *ScoredItem) Points() int {
	return s.Item.Points()
}

// Exclusion records why a backlog item was not scored.
type Exclusion struct {
	ItemID string `json:"itemId"`
	Reason string `json:"reason"`
}

// Result is the output of the scoring stage. Items are sorted by descending
// score; ties keep backlog order.
type Result struct {
	Items    []ScoredItem   `json:"items"`
	Excluded []Exclusion    `json:"excluded"`
	Warnings []diag.Warning `json:"warnings"`
}

// Scorer assigns weighted multi-factor scores to backlog items.
type Scorer struct {
	cfg        *config.Config
	classifier *Classifier
	debtWords  *keywordSet
	testWords  *keywordSet
}

// NewScorer creates a Scorer.
func NewScorer(cfg *config.Config) *Scorer {
	return &Scorer{
		cfg:        cfg,
		classifier: NewClassifier(cfg.Scoring),
		debtWords:  newKeywordSet(cfg.Scoring.DebtKeywords),
		testWords:  newKeywordSet(cfg.Scoring.TestingKeywords),
	}
}

// Classify returns the category for item.
func (s *Scorer) Classify(item *tracker.WorkItem) Category {
	return s.classifier.Classify(item)
}

// Eligible splits items into scoring candidates and exclusions. A candidate
// is open, has a positive estimate and a description of at least
// ScoreDescriptionMin characters.
func (s *Scorer) Eligible(items []tracker.WorkItem) ([]tracker.WorkItem, []Exclusion) {
	var eligible []tracker.WorkItem
	excluded := []Exclusion{}
	for _, it := range items {
		reason := ""
		switch {
		case !it.State.Open():
			reason = ExcludedClosed
		case it.Estimate == nil:
			reason = ExcludedUnestimated
		case *it.Estimate <= 0:
			reason = ExcludedZeroEstimate
		case utf8.RuneCountInString(it.Description) < s.cfg.Backlog.ScoreDescriptionMin:
			reason = ExcludedThinDescription
		}
		if reason != "" {
			excluded = append(excluded, Exclusion{ItemID: it.ID, Reason: reason})
			continue
		}
		eligible = append(eligible, it)
	}
	return eligible, excluded
}

// ScoreItem computes the factors and weighted score for a single item. It is a
// pure function of the item, the blocking index and the configuration.
func (s *Scorer) ScoreItem(item tracker.WorkItem, blocking map[string]bool) ScoredItem {
	sc := s.cfg.Scoring
	f := Factors{
		BusinessValue:  BusinessValue(&item, sc),
		TechnicalDebt:  s.TechnicalDebt(&item),
		RiskMitigation: RiskMitigation(&item, sc),
		VelocityFit:    VelocityFit(item.Points()),
		Dependencies:   DependencyScore(&item, blocking),
		TeamAlignment:  TeamAlignment(&item, sc),
	}
	return ScoredItem{
		Item:     item,
		Score:    f.Weighted(sc.Weights),
		Factors:  f,
		Category: s.classifier.Classify(&item),
	}
}

// BlockingIndex returns the IDs that some item in items is blocked by.
func BlockingIndex(items []tracker.WorkItem) map[string]bool {
	idx := make(map[string]bool)
	for _, it := range items {
		for _, r := range it.Relations {
			if r.Type == tracker.RelationBlocks {
				idx[r.TargetID] = true
			}
		}
	}
	return idx
}

// Score filters and scores the snapshot's backlog. Items are scored
// concurrently, bounded by the configured limit, and sorted afterwards so the
// order never depends on goroutine scheduling.
func (s *Scorer) Score(ctx context.Context, snap *tracker.Snapshot) (*Result, error) {
	candidates, excluded := s.Eligible(snap.Backlog)
	blocking := BlockingIndex(snap.OpenItems())

	res := &Result{Items: make([]ScoredItem, len(candidates)), Excluded: excluded, Warnings: []diag.Warning{}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Scoring.Concurrency)
	for i := range candidates {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res.Items[i] = s.ScoreItem(candidates[i], blocking)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring backlog: %w", err)
	}

	SortByScore(res.Items)

	if len(res.Items) == 0 {
		res.Warnings = append(res.Warnings, diag.New(diag.DataUnavailable, StageName,
			"no backlog item is eligible for scoring (%d excluded)", len(excluded)))
	}
	return res, nil
}

// SortByScore orders items by descending score, keeping the existing order
// for ties.
func SortByScore(items []ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}
