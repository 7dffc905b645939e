package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// State is a work item's lifecycle state.
type State string

const (
	StateBacklog   State = "backlog"
	StateUnstarted State = "unstarted"
	StateStarted   State = "started"
	StateBlocked   State = "blocked"
	StateCompleted State = "completed"
	StateCanceled  State = "canceled"
)

// Open reports whether the state still represents outstanding work.
func (s State) Open() bool {
	return s != StateCompleted && s != StateCanceled
}

// Priority follows the tracker convention: 1 is urgent, 4 is low and 0 means
// no priority was set.
type Priority int

const (
	PriorityNone   Priority = 0
	PriorityUrgent Priority = 1
	PriorityHigh   Priority = 2
	PriorityMedium Priority = 3
	PriorityLow    Priority = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "none"
	}
}

// AtLeast reports whether p is set and at least as important as other.
func (p Priority) AtLeast(other Priority) bool {
	return p != PriorityNone && p <= other
}

// RelationType is the kind of edge between two work items.
type RelationType string

const (
	// RelationBlocks on item A pointing at B means A is blocked by B.
	RelationBlocks    RelationType = "blocks"
	RelationDuplicate RelationType = "duplicate"
	RelationRelated   RelationType = "related"
)

// Relation is a typed edge to another work item.
type Relation struct {
	Type     RelationType `json:"type" yaml:"type"`
	TargetID string       `json:"targetId" yaml:"targetId"`
}

// WorkItem is a single tracker issue. It is read-only to the planner.
type WorkItem struct {
	ID          string     `json:"id" yaml:"id"`
	Identifier  string     `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Estimate    *int       `json:"estimate" yaml:"estimate"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	Labels      []string   `json:"labels" yaml:"labels"`
	State       State      `json:"state" yaml:"state"`
	Relations   []Relation `json:"relations" yaml:"relations"`
	Assignee    string     `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	Project     string     `json:"project,omitempty" yaml:"project,omitempty"`
	Parent      string     `json:"parent,omitempty" yaml:"parent,omitempty"`
	Comments    int        `json:"comments" yaml:"comments"`
	Subscribers int        `json:"subscribers" yaml:"subscribers"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
}

// Points returns the estimate, or 0 when the item is unestimated.
func (w *WorkItem) Points() int {
	if w.Estimate == nil {
		return 0
	}
	return *w.Estimate
}

// Estimated reports whether the item has a positive estimate.
func (w *WorkItem) Estimated() bool {
	return w.Estimate != nil && *w.Estimate > 0
}

// HasLabel reports whether the item carries any of the given labels
// (case-insensitive).
func (w *WorkItem) HasLabel(names ...string) bool {
	for _, l := range w.Labels {
		for _, n := range names {
			if strings.EqualFold(l, n) {
				return true
			}
		}
	}
	return false
}

// CountLabels returns how many of the item's labels appear in names.
func (w *WorkItem) CountLabels(names []string) int {
	n := 0
	for _, l := range w.Labels {
		for _, name := range names {
			if strings.EqualFold(l, name) {
				n++
				break
			}
		}
	}
	return n
}

// Display returns the human identifier when present, else the ID.
func (w *WorkItem) Display() string {
	if w.Identifier != "" {
		return w.Identifier
	}
	return w.ID
}

// Cycle is a fixed-length delivery period and the items it contains.
type Cycle struct {
	ID       string     `json:"id" yaml:"id"`
	Number   int        `json:"number" yaml:"number"`
	Name     string     `json:"name,omitempty" yaml:"name,omitempty"`
	StartsAt time.Time  `json:"startsAt" yaml:"startsAt"`
	EndsAt   time.Time  `json:"endsAt" yaml:"endsAt"`
	Items    []WorkItem `json:"items" yaml:"items"`
}

// CycleStats counts a cycle's items by state.
type CycleStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Started   int `json:"started"`
	Unstarted int `json:"unstarted"`
	Blocked   int `json:"blocked"`
	Canceled  int `json:"canceled"`
}

// Stats returns counts by state. Backlog items count as unstarted.
func (c *Cycle) Stats() CycleStats {
	var s CycleStats
	for _, it := range c.Items {
		s.Total++
		switch it.State {
		case StateCompleted:
			s.Completed++
		case StateStarted:
			s.Started++
		case StateBlocked:
			s.Blocked++
		case StateCanceled:
			s.Canceled++
		default:
			s.Unstarted++
		}
	}
	return s
}

// CompletedPoints sums the estimates of completed items.
func (c *Cycle) CompletedPoints() int {
	total := 0
	for i := range c.Items {
		if c.Items[i].State == StateCompleted {
			total += c.Items[i].Points()
		}
	}
	return total
}

// Member is a team roster entry.
type Member struct {
	ID     string `json:"id" yaml:"id"`
	Active bool   `json:"active" yaml:"active"`
}

// Roster is the team roster.
type Roster struct {
	Members []Member `json:"members" yaml:"members"`
}

// ActiveCount returns the number of active members.
func (r Roster) ActiveCount() int {
	n := 0
	for _, m := range r.Members {
		if m.Active {
			n++
		}
	}
	return n
}

// Snapshot is the frozen tracker input to a planning run.
type Snapshot struct {
	AsOf         time.Time  `json:"asOf" yaml:"asOf"`
	ActiveCycle  *Cycle     `json:"activeCycle,omitempty" yaml:"activeCycle,omitempty"`
	ClosedCycles []Cycle    `json:"closedCycles" yaml:"closedCycles"`
	Backlog      []WorkItem `json:"backlog" yaml:"backlog"`
	Roster       Roster     `json:"roster" yaml:"roster"`
}

// RecentClosed returns up to n closed cycles ordered oldest to newest by end
// date.
func (s *Snapshot) RecentClosed(n int) []Cycle {
	cycles := make([]Cycle, len(s.ClosedCycles))
	copy(cycles, s.ClosedCycles)
	sort.SliceStable(cycles, func(i, j int) bool {
		return cycles[i].EndsAt.Before(cycles[j].EndsAt)
	})
	if n > 0 && len(cycles) > n {
		cycles = cycles[len(cycles)-n:]
	}
	return cycles
}

// OpenItems returns non-completed, non-canceled items from the backlog and the
// active cycle. Active-cycle items come first.
func (s *Snapshot) OpenItems() []WorkItem {
	var items []WorkItem
	if s.ActiveCycle != nil {
		for _, it := range s.ActiveCycle.Items {
			if it.State.Open() {
				items = append(items, it)
			}
		}
	}
	for _, it := range s.Backlog {
		if it.State.Open() {
			items = append(items, it)
		}
	}
	return items
}

// Digest returns a stable hex SHA-256 of the snapshot's JSON encoding.
func (s *Snapshot) Digest() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
