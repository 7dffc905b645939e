package metrics

import (
	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// Level is a low/medium/high risk bucket.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Blocker is an open item waiting on another item.
type Blocker struct {
	ItemID    string           `json:"itemId"`
	BlockedBy string           `json:"blockedBy"`
	Priority  tracker.Priority `json:"priority"`
	Critical  bool             `json:"critical"`
}

// DependencyRisk summarizes blocking relations and relation chains.
type DependencyRisk struct {
	Blockers         []Blocker  `json:"blockers"`
	CriticalBlockers int        `json:"criticalBlockers"`
	OtherRelations   int        `json:"otherRelations"`
	BlockerScore     int        `json:"blockerScore"`
	DependencyScore  int        `json:"dependencyScore"`
	Total            int        `json:"total"`
	Risk             Level      `json:"risk"`
	Chains           [][]string `json:"chains"`
	MaxChainLength   int        `json:"maxChainLength"`
}

// ClassifyDependencyRisk buckets a total score.
func ClassifyDependencyRisk(total, mediumAt, highAt int) Level {
	switch {
	case total < mediumAt:
		return LevelLow
	case total < highAt:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// dependencyRisk analyses open items. A blocks relation whose target is a
// known completed or canceled item is resolved and ignored.
func dependencyRisk(all, open []tracker.WorkItem, cfg config.DependencyConfig) DependencyRisk {
	known := make(map[string]tracker.State, len(all))
	for _, it := range all {
		known[it.ID] = it.State
	}

	r := DependencyRisk{Blockers: []Blocker{}, Chains: [][]string{}}
	for _, it := range open {
		for _, rel := range it.Relations {
			switch rel.Type {
			case tracker.RelationBlocks:
				if st, ok := known[rel.TargetID]; ok && !st.Open() {
					continue
				}
				b := Blocker{
					ItemID:    it.ID,
					BlockedBy: rel.TargetID,
					Priority:  it.Priority,
					Critical:  it.Priority.AtLeast(tracker.Priority(cfg.CriticalPriorityMax)),
				}
				if b.Critical {
					r.CriticalBlockers++
				}
				r.Blockers = append(r.Blockers, b)
			case tracker.RelationRelated, tracker.RelationDuplicate:
				r.OtherRelations++
			}
		}
	}

	r.BlockerScore = len(r.Blockers)*cfg.BlockerWeight + r.CriticalBlockers*cfg.CriticalBlockerWeight
	r.DependencyScore = r.OtherRelations * cfg.RelationWeight
	r.Total = r.BlockerScore + r.DependencyScore
	r.Risk = ClassifyDependencyRisk(r.Total, cfg.MediumThreshold, cfg.HighThreshold)

	r.Chains = Chains(open)
	for _, c := range r.Chains {
		if len(c) > r.MaxChainLength {
			r.MaxChainLength = len(c)
		}
	}
	return r
}

// Chains finds groups of items connected by related or duplicate edges. Edges
// are treated as undirected; each connected group of two or more items is one
// chain, listed in depth-first order from its first item in input order.
func Chains(items []tracker.WorkItem) [][]string {
	index := make(map[string]bool, len(items))
	for _, it := range items {
		index[it.ID] = true
	}

	adj := make(map[string][]string)
	for _, it := range items {
		for _, rel := range it.Relations {
			if rel.Type == tracker.RelationBlocks || !index[rel.TargetID] || rel.TargetID == it.ID {
				continue
			}
			adj[it.ID] = append(adj[it.ID], rel.TargetID)
			adj[rel.TargetID] = append(adj[rel.TargetID], it.ID)
		}
	}

	visited := make(map[string]bool, len(items))
	chains := [][]string{}
	for _, it := range items {
		if visited[it.ID] {
			continue
		}
		var chain []string
		var walk func(id string)
		walk = func(id string) {
			if visited[id] {
				return
			}
			visited[id] = true
			chain = append(chain, id)
			for _, next := range adj[id] {
				walk(next)
			}
		}
		walk(it.ID)
		if len(chain) >= 2 {
			chains = append(chains, chain)
		}
	}
	return chains
}
