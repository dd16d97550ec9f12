// Package analysis holds the types every engine stage shares: the per-call game
// context, seen-tile bookkeeping and the failure taxonomy results carry instead
// of errors.
package analysis

import (
	"fmt"
	"sort"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

// Phase is the decision phase a recommendation is made for.
type Phase int

const (
	PhaseCharleston Phase = iota + 1
	PhaseGameplay
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseCharleston:
		return "charleston"
	case PhaseGameplay:
		return "gameplay"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if p != PhaseCharleston && p != PhaseGameplay {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "charleston", "exchange":
		*p = PhaseCharleston
	case "gameplay", "play", "live":
		*p = PhaseGameplay
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// Exposure is a set a player has called and laid face up.
type Exposure struct {
	Tiles      []string `json:"tiles"`
	CalledFrom string   `json:"calledFrom,omitempty"`
}

// Action names used in the round log.
const (
	ActionDraw    = "draw"
	ActionDiscard = "discard"
	ActionCall    = "call"
	ActionPass    = "pass"
	ActionMahjong = "mahjong"
)

// PlayerAction is one observed action in the round log.
type PlayerAction struct {
	PlayerID string `json:"playerId"`
	Action   string `json:"action"`
	TileID   string `json:"tileId,omitempty"`
	Turn     int    `json:"turn,omitempty"`
}

// Self is the player id the analyzed hand's own exposures and actions are filed under.
const Self = "self"

// GameContext is the ambient table state supplied by the session layer on each call.
type GameContext struct {
	Phase              Phase                 `json:"phase"`
	DiscardPile        []string              `json:"discardPile,omitempty"`
	ExposedTiles       map[string][]Exposure `json:"exposedTiles,omitempty"`
	WallTilesRemaining int                   `json:"wallTilesRemaining"`
	RoundNumber        int                   `json:"roundNumber"`
	PlayerActions      []PlayerAction        `json:"playerActions,omitempty"`
}

// DefaultContext is a fresh charleston with a full wall.
func DefaultContext() GameContext {
	return GameContext{
		Phase:              PhaseCharleston,
		WallTilesRemaining: tiles.SetSize - 4*13,
		RoundNumber:        1,
	}
}

// Seen counts every natural tile visible on the table: discards plus all exposures.
// Unparseable ids are skipped.
func (c GameContext) Seen() Seen {
	seen := make(Seen)
	add := func(id string) {
		t, err := tiles.Parse(id)
		if err != nil || t.IsJoker() {
			return
		}
		seen[t.ID]++
	}
	for _, id := range c.DiscardPile {
		add(id)
	}
	for _, exposures := range c.ExposedTiles {
		for _, e := range exposures {
			for _, id := range e.Tiles {
				add(id)
			}
		}
	}
	return seen
}

// DiscardCount returns how many copies of id sit in the discard pile.
func (c GameContext) DiscardCount(id string) int {
	n := 0
	for _, d := range c.DiscardPile {
		if t, err := tiles.Parse(d); err == nil && t.ID == id {
			n++
		}
	}
	return n
}

// ActionsBy returns playerID's logged actions of the given kind, oldest first.
func (c GameContext) ActionsBy(playerID, action string) []PlayerAction {
	var out []PlayerAction
	for _, a := range c.PlayerActions {
		if a.PlayerID == playerID && a.Action == action {
			out = append(out, a)
		}
	}
	return out
}

// Players returns every player id mentioned in exposures or actions, sorted.
func (c GameContext) Players() []string {
	set := make(map[string]bool)
	for id := range c.ExposedTiles {
		set[id] = true
	}
	for _, a := range c.PlayerActions {
		if a.PlayerID != "" {
			set[a.PlayerID] = true
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// HasExposures reports whether playerID has exposed any set.
func (c GameContext) HasExposures(playerID string) bool {
	return len(c.ExposedTiles[playerID]) > 0
}

// Seen maps a canonical tile id to the copies visible outside the player's hand.
type Seen map[string]int

// Remaining returns the copies of id still live (in the wall or other hands),
// given how many the player already holds.
func (s Seen) Remaining(id string, held int) int {
	t, ok := tiles.Lookup(id)
	if !ok {
		return 0
	}
	left := t.Supply() - s[id] - held
	if left < 0 {
		return 0
	}
	return left
}
