// Package matcher scores one hand against one pattern: it walks the pattern's
// concrete variations, assigns held tiles and jokers to slots, and keeps the
// variation closest to completion.
package matcher

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

// Matcher matches hands against catalog entries. It is stateless and safe for
// concurrent use.
type Matcher struct {
	logger *log.Logger
}

// New creates a matcher. A nil logger uses the process default.
func New(logger *log.Logger) *Matcher {
	return &Matcher{logger: logging.Or(logger).With("component", "matcher")}
}

// MatchPattern expands p and matches it in one call.
func MatchPattern(hand tiles.Hand, p catalog.Pattern, jokers int, seen analysis.Seen) Facts {
	variations, err := catalog.Expand(p, catalog.DefaultMaxVariations)
	return New(logging.Discard()).Match(hand, catalog.Entry{Pattern: p, Variations: variations, Err: err}, jokers, seen)
}

// MatchAll matches every entry, preserving order.
func (m *Matcher) MatchAll(hand tiles.Hand, entries []catalog.Entry, jokers int, seen analysis.Seen) []Facts {
	out := make([]Facts, len(entries))
	for i, e := range entries {
		out[i] = m.Match(hand, e, jokers, seen)
	}
	return out
}

// Match returns the facts for one entry. Malformed pattern data yields
// invalid facts with ratio 0 rather than an error.
func (m *Matcher) Match(hand tiles.Hand, e catalog.Entry, jokers int, seen analysis.Seen) (facts Facts) {
	facts = Facts{PatternID: e.Pattern.ID}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("match panicked", "pattern", e.Pattern.ID, "panic", r)
			facts = invalid(e.Pattern.ID, analysis.Failure{
				Kind:    analysis.FailurePartial,
				Subject: e.Pattern.ID,
				Message: fmt.Sprintf("match failed: %v", r),
			})
		}
	}()

	if e.Err != nil {
		m.logger.Warn("pattern cannot be expanded", "pattern", e.Pattern.ID, "err", e.Err)
		return invalid(e.Pattern.ID, analysis.NewFailure(analysis.FailureInputValidation, e.Pattern.ID, e.Err))
	}
	if jokers < 0 {
		jokers = 0
	}

	natural := hand.NaturalCounts()
	var best *assignment
	considered := 0
	for i := range e.Variations {
		v := &e.Variations[i]
		if len(v.Slots) != tiles.HandSize {
			continue
		}
		considered++
		a := assign(v, natural, jokers)
		if best == nil || a.better(best) {
			best = a
		}
	}

	if best == nil {
		return invalid(e.Pattern.ID, analysis.Failure{
			Kind:    analysis.FailureInputValidation,
			Subject: e.Pattern.ID,
			Message: fmt.Sprintf("no %d-tile variation", tiles.HandSize),
		})
	}

	if seen == nil {
		seen = analysis.Seen{}
	}
	facts.Valid = true
	facts.VariationsConsidered = considered
	facts.BestVariation = best.summary()
	facts.MissingTiles = best.missing(hand, seen)
	return facts
}

func invalid(patternID string, f analysis.Failure) Facts {
	return Facts{
		PatternID:     patternID,
		BestVariation: BestVariation{TileContributions: []TileContribution{}},
		Failure:       &f,
	}
}

// assignment is one variation's slot filling.
type assignment struct {
	variation     *catalog.Variation
	filled        []bool
	jokerFilled   []bool
	naturals      int
	jokersUsed    int
	contributions []TileContribution
}

// assign fills slots with held tiles, joker-forbidden groups first so the
// joker budget goes where only jokers can help, then spends jokers on the
// remaining eligible slots.
func assign(v *catalog.Variation, natural map[string]int, jokers int) *assignment {
	held := make(map[string]int, len(natural))
	for id, n := range natural {
		held[id] = n
	}
	a := &assignment{
		variation:   v,
		filled:      make([]bool, len(v.Slots)),
		jokerFilled: make([]bool, len(v.Slots)),
	}

	for _, eligiblePass := range []bool{false, true} {
		for i, s := range v.Slots {
			if s.JokerEligible != eligiblePass || held[s.TileID] == 0 {
				continue
			}
			held[s.TileID]--
			a.filled[i] = true
			a.naturals++
			a.contributions = append(a.contributions, TileContribution{
				TileID:        s.TileID,
				GroupID:       s.GroupID,
				IsRequired:    true,
				IsCritical:    !s.JokerEligible,
				CanBeReplaced: s.JokerEligible,
			})
		}
	}

	for i, s := range v.Slots {
		if a.jokersUsed >= jokers {
			break
		}
		if s.JokerEligible && !a.filled[i] {
			a.filled[i] = true
			a.jokerFilled[i] = true
			a.jokersUsed++
		}
	}
	return a
}

func (a *assignment) matched() int { return a.naturals + a.jokersUsed }

// better orders by filled slots, then fewer jokers, then variation id.
func (a *assignment) better(o *assignment) bool {
	if a.matched() != o.matched() {
		return a.matched() > o.matched()
	}
	if a.jokersUsed != o.jokersUsed {
		return a.jokersUsed < o.jokersUsed
	}
	return a.variation.ID < o.variation.ID
}

func (a *assignment) summary() BestVariation {
	bv := BestVariation{
		VariationID:       a.variation.ID,
		Tiles:             a.variation.Tiles(),
		CompletionRatio:   float64(a.matched()) / float64(tiles.HandSize),
		MatchedSlots:      a.matched(),
		NaturalSlots:      a.naturals,
		JokersUsed:        a.jokersUsed,
		TileContributions: a.contributions,
	}
	if bv.TileContributions == nil {
		bv.TileContributions = []TileContribution{}
	}
	for i, s := range a.variation.Slots {
		if a.filled[i] {
			continue
		}
		if s.JokerEligible {
			bv.MissingEligible++
		} else {
			bv.MissingCritical++
		}
	}
	return bv
}

func (a *assignment) missing(hand tiles.Hand, seen analysis.Seen) MissingTiles {
	type key struct{ tile, group string }
	counts := make(map[key]*MissingTile)
	var order []key
	for i, s := range a.variation.Slots {
		if a.filled[i] {
			continue
		}
		k := key{s.TileID, s.GroupID}
		mt, ok := counts[k]
		if !ok {
			mt = &MissingTile{TileID: s.TileID, GroupID: s.GroupID, JokerEligible: s.JokerEligible}
			counts[k] = mt
			order = append(order, k)
		}
		mt.Count++
	}

	// Copies of the same tile missing from different groups compete for one supply.
	needByTile := make(map[string]int)
	for _, k := range order {
		needByTile[k.tile] += counts[k].Count
	}

	var out MissingTiles
	sort.SliceStable(order, func(i, j int) bool { return tiles.Less(order[i].tile, order[j].tile) })
	for _, k := range order {
		mt := counts[k]
		mt.Remaining = seen.Remaining(mt.TileID, hand.Count(mt.TileID))
		mt.Availability = ClassifyAvailability(mt.Remaining, needByTile[k.tile])
		out.add(*mt)
	}
	return out
}
