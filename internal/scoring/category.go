package scoring

import (
	"regexp"
	"strings"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// Category is the composition bucket of a work item.
type Category string

const (
	Bug      Category = "bug"
	TechDebt Category = "tech_debt"
	Feature  Category = "feature"
)

// Categories lists every category in reporting order.
var Categories = []Category{Bug, TechDebt, Feature}

// Classifier assigns categories from labels, falling back to title hints.
type Classifier struct {
	bugLabels     []string
	debtLabels    []string
	featureLabels []string
	bugHints      *keywordSet
	debtHints     *keywordSet
}

// NewClassifier builds a classifier from the scoring vocabularies.
func NewClassifier(cfg config.ScoringConfig) *Classifier {
	return &Classifier{
		bugLabels:     cfg.BugLabels,
		debtLabels:    cfg.DebtLabels,
		featureLabels: cfg.FeatureLabels,
		bugHints:      newKeywordSet(cfg.BugTitleHints),
		debtHints:     newKeywordSet(cfg.DebtTitleHints),
	}
}

// Classify returns the item's category. Labels win over the title; bug wins
// over tech debt, which wins over feature.
func (c *Classifier) Classify(item *tracker.WorkItem) Category {
	switch {
	case item.HasLabel(c.bugLabels...):
		return Bug
	case item.HasLabel(c.debtLabels...):
		return TechDebt
	case item.HasLabel(c.featureLabels...):
		return Feature
	}
	switch {
	case c.bugHints.Hits(item.Title) > 0:
		return Bug
	case c.debtHints.Hits(item.Title) > 0:
		return TechDebt
	default:
		return Feature
	}
}

// keywordSet matches whole-word prefixes case-insensitively, so "migrate"
// matches "migrated" but "test" does not match "latest".
type keywordSet struct {
	patterns []*regexp.Regexp
}

func newKeywordSet(words []string) *keywordSet {
	ks := &keywordSet{}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		ks.patterns = append(ks.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)))
	}
	return ks
}

// Hits counts how many distinct keywords appear in text.
func (k *keywordSet) Hits(text string) int {
	n := 0
	for _, p := range k.patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}
