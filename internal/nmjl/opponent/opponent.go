// Package opponent infers what other players are collecting from what they
// have shown the table: exposures, calls and discards.
package opponent

import (
	"fmt"
	"math"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

const (
	probSameTile      = 0.5
	probLikeNumber    = 0.35
	probThirdSuit     = 0.5
	probAdjacent      = 0.3
	probRunGap        = 0.45
	probMatchDragon   = 0.15
	probOtherWind     = 0.3
	probOtherDragon   = 0.25
	probFlower        = 0.3
	probCalledAgain   = 0.4
	discardedDiscount = 0.3
	maxNeed           = 0.95

	// RiskThreshold is the need probability at which a tile counts as a risky discard.
	RiskThreshold = 0.3

	// Tiles discarded this many times are treated as safe.
	safeDiscardCount = 2
)

// Need is a tile an opponent probably wants.
type Need struct {
	TileID      string  `json:"tileId"`
	Probability float64 `json:"probability"`
	Reasoning   string  `json:"reasoning"`
}

// Model is the inferred state of one opponent.
type Model struct {
	PlayerID      string   `json:"playerId"`
	LikelyNeeds   []Need   `json:"likelyNeeds"`
	SafeDiscards  []string `json:"safeDiscards"`
	RiskyDiscards []string `json:"riskyDiscards"`
	PatternClues  []string `json:"patternClues"`
}

// NeedProbability returns how likely the opponent wants tileID, 0 when unknown.
func (m Model) NeedProbability(tileID string) float64 {
	for _, n := range m.LikelyNeeds {
		if n.TileID == tileID {
			return n.Probability
		}
	}
	return 0
}

// Modeler builds an opponent model from the shared game context.
type Modeler interface {
	Model(ctx analysis.GameContext, playerID string) Model
}

// ModelOpponents models every player in ctx other than self.
func ModelOpponents(m Modeler, ctx analysis.GameContext, self string) []Model {
	var out []Model
	for _, id := range ctx.Players() {
		if id == self {
			continue
		}
		out = append(out, m.Model(ctx, id))
	}
	return out
}

// FeedRisk returns the highest need probability any opponent has for tileID,
// and which opponent it is.
func FeedRisk(models []Model, tileID string) (float64, string) {
	best, who := 0.0, ""
	for _, m := range models {
		if p := m.NeedProbability(tileID); p > best {
			best, who = p, m.PlayerID
		}
	}
	return best, who
}

// HeuristicModeler reads exposures as evidence of the hand an opponent is on.
// Probabilities are rough priors, not calibrated estimates.
type HeuristicModeler struct {
	logger *log.Logger
}

// NewHeuristicModeler creates the default modeler.
func NewHeuristicModeler(logger *log.Logger) *HeuristicModeler {
	return &HeuristicModeler{logger: logging.Or(logger).With("component", "opponent")}
}

type evidence struct {
	probs   []float64
	reasons []string
}

type collector map[string]*evidence

func (c collector) add(tileID string, p float64, reason string) {
	e, ok := c[tileID]
	if !ok {
		e = &evidence{}
		c[tileID] = e
	}
	e.probs = append(e.probs, p)
	e.reasons = append(e.reasons, reason)
}

// Model infers playerID's likely needs and safe discards.
func (h *HeuristicModeler) Model(ctx analysis.GameContext, playerID string) Model {
	m := Model{
		PlayerID:      playerID,
		LikelyNeeds:   []Need{},
		SafeDiscards:  []string{},
		RiskyDiscards: []string{},
		PatternClues:  []string{},
	}

	needs := make(collector)
	exposed := make(map[tiles.Suit]map[int]bool)
	for _, exp := range ctx.ExposedTiles[playerID] {
		t, size, ok := exposureTile(exp)
		if !ok {
			h.logger.Debug("skipping unreadable exposure", "player", playerID, "tiles", exp.Tiles)
			continue
		}
		m.PatternClues = append(m.PatternClues, inferFromExposure(needs, t, size)...)
		if t.Suit.IsNumbered() {
			if exposed[t.Suit] == nil {
				exposed[t.Suit] = make(map[int]bool)
			}
			exposed[t.Suit][t.Value] = true
		}
	}
	m.PatternClues = append(m.PatternClues, inferFromSuits(needs, exposed)...)

	for _, a := range ctx.ActionsBy(playerID, analysis.ActionCall) {
		if t, err := tiles.Parse(a.TileID); err == nil && !t.IsJoker() {
			needs.add(t.ID, probCalledAgain, fmt.Sprintf("called %s", t.ID))
		}
	}

	discarded := make(map[string]bool)
	for _, a := range ctx.ActionsBy(playerID, analysis.ActionDiscard) {
		if t, err := tiles.Parse(a.TileID); err == nil {
			discarded[t.ID] = true
		}
	}

	seen := ctx.Seen()
	for id, e := range needs {
		left := seen.Remaining(id, 0)
		if left == 0 {
			continue
		}
		p := combine(e.probs)
		reason := e.reasons[0]
		if t, ok := tiles.Lookup(id); ok && left < t.Supply() {
			p *= float64(left) / float64(t.Supply())
			reason += fmt.Sprintf("; %d of %d left", left, t.Supply())
		}
		if discarded[id] {
			p *= discardedDiscount
			reason += "; discarded earlier"
		}
		m.LikelyNeeds = append(m.LikelyNeeds, Need{TileID: id, Probability: round2(p), Reasoning: reason})
	}
	sort.Slice(m.LikelyNeeds, func(i, j int) bool {
		a, b := m.LikelyNeeds[i], m.LikelyNeeds[j]
		if a.Probability != b.Probability {
			return a.Probability > b.Probability
		}
		return tiles.Less(a.TileID, b.TileID)
	})
	for _, n := range m.LikelyNeeds {
		if n.Probability >= RiskThreshold {
			m.RiskyDiscards = append(m.RiskyDiscards, n.TileID)
		}
	}

	safe := make(map[string]bool)
	for id := range discarded {
		safe[id] = true
	}
	for _, id := range ctx.DiscardPile {
		if t, err := tiles.Parse(id); err == nil && ctx.DiscardCount(t.ID) >= safeDiscardCount {
			safe[t.ID] = true
		}
	}
	for id := range safe {
		if m.NeedProbability(id) < RiskThreshold && id != tiles.Joker {
			m.SafeDiscards = append(m.SafeDiscards, id)
		}
	}
	sort.Slice(m.SafeDiscards, func(i, j int) bool { return tiles.Less(m.SafeDiscards[i], m.SafeDiscards[j]) })
	return m
}

// exposureTile returns the natural tile an exposure is built from and its size.
func exposureTile(exp analysis.Exposure) (tiles.Tile, int, bool) {
	for _, id := range exp.Tiles {
		t, err := tiles.Parse(id)
		if err == nil && !t.IsJoker() {
			return t, len(exp.Tiles), true
		}
	}
	return tiles.Tile{}, 0, false
}

func inferFromExposure(needs collector, t tiles.Tile, size int) []string {
	label := fmt.Sprintf("exposed %d x %s", size, t.ID)
	if size < 3 {
		needs.add(t.ID, probSameTile, label+" may grow")
	}

	switch t.Suit {
	case tiles.SuitWinds:
		for _, w := range tiles.Winds {
			if w != t.ID {
				needs.add(w, probOtherWind, label+": winds hand")
			}
		}
		return []string{label + ": likely a winds hand"}
	case tiles.SuitDragons:
		for _, d := range tiles.Dragons {
			if d != t.ID {
				needs.add(d, probOtherDragon, label+": dragons")
			}
		}
		return []string{label + ": collecting dragons"}
	case tiles.SuitFlowers:
		needs.add(tiles.Flower, probFlower, label+": flowers")
		return []string{label + ": flower hand"}
	}

	if !t.Suit.IsNumbered() {
		return nil
	}
	for _, s := range tiles.NumberedSuits {
		if s != t.Suit {
			needs.add(tiles.Numbered(t.Value, s).ID, probLikeNumber, label+": like numbers")
		}
	}
	for _, v := range []int{t.Value - 1, t.Value + 1} {
		if v >= 1 && v <= 9 {
			needs.add(tiles.Numbered(v, t.Suit).ID, probAdjacent, label+": consecutive run")
		}
	}
	if d, ok := tiles.DragonFor(t.Suit); ok {
		needs.add(d, probMatchDragon, label+": matching dragon")
	}
	return []string{label + ": like numbers or consecutive run"}
}

// inferFromSuits looks across one player's exposures: gaps between exposed
// values in a suit, and the same value exposed in two suits.
func inferFromSuits(needs collector, exposed map[tiles.Suit]map[int]bool) []string {
	var clues []string
	for _, s := range tiles.NumberedSuits {
		for v := 1; v <= 7; v++ {
			if exposed[s][v] && exposed[s][v+2] && !exposed[s][v+1] {
				gap := tiles.Numbered(v+1, s)
				needs.add(gap.ID, probRunGap, fmt.Sprintf("gap in exposed %s run", s))
				clues = append(clues, fmt.Sprintf("run in %s missing %s", s, gap.ID))
			}
		}
	}
	for v := 1; v <= 9; v++ {
		var have []tiles.Suit
		for _, s := range tiles.NumberedSuits {
			if exposed[s][v] {
				have = append(have, s)
			}
		}
		if len(have) != 2 {
			continue
		}
		for _, s := range tiles.NumberedSuits {
			if s != have[0] && s != have[1] {
				third := tiles.Numbered(v, s)
				needs.add(third.ID, probThirdSuit, fmt.Sprintf("%d exposed in two suits", v))
				clues = append(clues, fmt.Sprintf("like %ds in three suits", v))
			}
		}
	}
	return clues
}

// combine treats each piece of evidence as independent.
func combine(probs []float64) float64 {
	miss := 1.0
	for _, p := range probs {
		miss *= 1 - p
	}
	return math.Min(maxNeed, 1-miss)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
