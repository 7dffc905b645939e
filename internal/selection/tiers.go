package selection

import (
	"math"

	"github.com/lucasnoah/cycleplan/internal/scoring"
)

// Tier is a MoSCoW bucket.
type Tier string

const (
	TierMust   Tier = "must"
	TierShould Tier = "should"
	TierCould  Tier = "could"
)

// Tiers lists selected item IDs per MoSCoW bucket, in plan order.
type Tiers struct {
	Must   []string `json:"must"`
	Should []string `json:"should"`
	Could  []string `json:"could"`
}

// Of returns the tier holding id, or "" if it is not planned.
func (t Tiers) Of(id string) Tier {
	for tier, ids := range map[Tier][]string{TierMust: t.Must, TierShould: t.Should, TierCould: t.Could} {
		for _, x := range ids {
			if x == id {
				return tier
			}
		}
	}
	return ""
}

// AssignTiers walks items in order. Items whose cumulative points stay within
// mustRatio of target are must-haves, within shouldRatio should-haves, and
// the rest could-haves.
func AssignTiers(items []scoring.ScoredItem, target, mustRatio, shouldRatio float64) Tiers {
	t := Tiers{Must: []string{}, Should: []string{}, Could: []string{}}
	mustAt := mustRatio*target + 1e-9
	shouldAt := shouldRatio*target + 1e-9
	cum := 0
	for i := range items {
		cum += items[i].Points()
		id := items[i].Item.ID
		switch {
		case float64(cum) <= mustAt:
			t.Must = append(t.Must, id)
		case float64(cum) <= shouldAt:
			t.Should = append(t.Should, id)
		default:
			t.Could = append(t.Could, id)
		}
	}
	return t
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
