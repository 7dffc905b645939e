package metrics

import (
	"unicode/utf8"

	"github.com/lucasnoah/cycleplan/internal/tracker"
)

// BacklogReadiness measures how much of the backlog is ready to plan.
type BacklogReadiness struct {
	Total           int     `json:"total"`
	Ready           int     `json:"ready"`
	Unestimated     int     `json:"unestimated"`
	ThinDescription int     `json:"thinDescription"`
	Score           float64 `json:"score"`
}

// IsReady reports whether an item has an estimate and a description longer
// than minDescription characters.
func IsReady(item *tracker.WorkItem, minDescription int) bool {
	return item.Estimate != nil && utf8.RuneCountInString(item.Description) > minDescription
}

func backlogReadiness(items []tracker.WorkItem, minDescription int) BacklogReadiness {
	var r BacklogReadiness
	for i := range items {
		it := &items[i]
		if !it.State.Open() {
			continue
		}
		r.Total++
		if it.Estimate == nil {
			r.Unestimated++
		}
		if utf8.RuneCountInString(it.Description) <= minDescription {
			r.ThinDescription++
		}
		if IsReady(it, minDescription) {
			r.Ready++
		}
	}
	if r.Total > 0 {
		r.Score = round2(float64(r.Ready) / float64(r.Total) * 100)
	}
	return r
}
