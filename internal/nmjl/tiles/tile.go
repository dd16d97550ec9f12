// Package tiles defines the American Mahjong tile set, tile id parsing and the
// hand multiset every analysis stage works on.
//
// Tile ids are canonical strings: "1D".."9D", "1B".."9B", "1C".."9C" for the
// numbered suits, "east", "south", "west", "north" for winds, "red", "green",
// "white" for dragons, "flower" and "joker". Flowers are interchangeable on the
// NMJL card, so the printed f1-f4 variants all parse to "flower".
package tiles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownTile is returned when a tile id cannot be parsed.
var ErrUnknownTile = errors.New("unknown tile")

// Canonical ids for the non-numbered tiles.
const (
	East   = "east"
	South  = "south"
	West   = "west"
	North  = "north"
	Red    = "red"
	Green  = "green"
	White  = "white"
	Flower = "flower"
	Joker  = "joker"
)

// Copies of each tile in a standard 152-tile NMJL set.
const (
	CopiesPerTile = 4
	FlowerCopies  = 8
	JokerCopies   = 8
	SetSize       = 152
	HandSize      = 14
)

// Winds and Dragons list the honor tiles in card order.
var (
	Winds   = []string{North, East, West, South}
	Dragons = []string{Red, Green, White}
)

// Tile is an immutable tile identity.
type Tile struct {
	ID    string `json:"id"`
	Suit  Suit   `json:"suit"`
	Value int    `json:"value,omitempty"`
}

// String returns the canonical id.
func (t Tile) String() string { return t.ID }

// IsJoker reports whether the tile is a joker.
func (t Tile) IsJoker() bool { return t.Suit == SuitJokers }

// IsHonor reports whether the tile is a wind or dragon.
func (t Tile) IsHonor() bool { return t.Suit == SuitWinds || t.Suit == SuitDragons }

// Supply returns how many copies of the tile exist in a full set.
func (t Tile) Supply() int {
	switch t.Suit {
	case SuitFlowers:
		return FlowerCopies
	case SuitJokers:
		return JokerCopies
	}
	return CopiesPerTile
}

// Numbered builds a numbered tile. It panics on an out-of-range value; callers
// validate user input through Parse.
func Numbered(value int, suit Suit) Tile {
	if value < 1 || value > 9 || !suit.IsNumbered() {
		panic(fmt.Sprintf("tiles: invalid numbered tile %d/%s", value, suit))
	}
	return Tile{ID: strconv.Itoa(value) + suit.Letter(), Suit: suit, Value: value}
}

var aliases = map[string]string{
	"e": East, "east": East,
	"s": South, "south": South,
	"w": West, "west": West,
	"n": North, "north": North,
	"r": Red, "rd": Red, "red": Red,
	"g": Green, "gd": Green, "green": Green,
	"0": White, "wd": White, "white": White, "soap": White,
	"f": Flower, "flower": Flower, "f1": Flower, "f2": Flower, "f3": Flower, "f4": Flower,
	"f5": Flower, "f6": Flower, "f7": Flower, "f8": Flower,
	"j": Joker, "joker": Joker,
}

// Parse resolves a tile id or one of its common aliases.
func Parse(id string) (Tile, error) {
	raw := strings.TrimSpace(id)
	key := strings.ToLower(raw)
	if canonical, ok := aliases[key]; ok {
		return byID[canonical], nil
	}
	if len(key) == 2 && key[0] >= '1' && key[0] <= '9' {
		value := int(key[0] - '0')
		switch key[1] {
		case 'd':
			return Numbered(value, SuitDots), nil
		case 'b':
			return Numbered(value, SuitBams), nil
		case 'c':
			return Numbered(value, SuitCracks), nil
		}
	}
	return Tile{}, fmt.Errorf("%w: %q", ErrUnknownTile, id)
}

// MustParse is Parse for fixtures and constant tables.
func MustParse(id string) Tile {
	t, err := Parse(id)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	universe []Tile
	byID     = map[string]Tile{}
	ordinal  = map[string]int{}
)

func init() {
	for _, suit := range NumberedSuits {
		for v := 1; v <= 9; v++ {
			universe = append(universe, Numbered(v, suit))
		}
	}
	for _, w := range Winds {
		universe = append(universe, Tile{ID: w, Suit: SuitWinds})
	}
	for _, d := range Dragons {
		universe = append(universe, Tile{ID: d, Suit: SuitDragons})
	}
	universe = append(universe, Tile{ID: Flower, Suit: SuitFlowers}, Tile{ID: Joker, Suit: SuitJokers})

	for i, t := range universe {
		byID[t.ID] = t
		ordinal[t.ID] = i
	}
}

// Universe returns every distinct tile identity in display order.
func Universe() []Tile {
	out := make([]Tile, len(universe))
	copy(out, universe)
	return out
}

// Lookup returns the tile for a canonical id.
func Lookup(id string) (Tile, bool) {
	t, ok := byID[id]
	return t, ok
}

// Less orders canonical ids by display order. Unknown ids sort last, lexically.
func Less(a, b string) bool {
	oa, okA := ordinal[a]
	ob, okB := ordinal[b]
	switch {
	case okA && okB:
		return oa < ob
	case okA:
		return true
	case okB:
		return false
	}
	return a < b
}

// DragonFor returns the dragon that matches a numbered suit on the card:
// green with bams, red with cracks, white (soap) with dots.
func DragonFor(suit Suit) (string, bool) {
	switch suit {
	case SuitDots:
		return White, true
	case SuitBams:
		return Green, true
	case SuitCracks:
		return Red, true
	}
	return "", false
}
