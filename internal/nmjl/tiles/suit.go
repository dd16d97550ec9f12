package tiles

import "fmt"

// Suit is the closed set of tile families in an American Mahjong set.
type Suit int

const (
	SuitDots Suit = iota + 1
	SuitBams
	SuitCracks
	SuitWinds
	SuitDragons
	SuitFlowers
	SuitJokers
)

var suitNames = map[Suit]string{
	SuitDots:    "dots",
	SuitBams:    "bams",
	SuitCracks:  "cracks",
	SuitWinds:   "winds",
	SuitDragons: "dragons",
	SuitFlowers: "flowers",
	SuitJokers:  "jokers",
}

// NumberedSuits lists the three suits that carry 1-9 values, in card order.
var NumberedSuits = []Suit{SuitDots, SuitBams, SuitCracks}

// String returns the lowercase suit name.
func (s Suit) String() string {
	if name, ok := suitNames[s]; ok {
		return name
	}
	return fmt.Sprintf("suit(%d)", int(s))
}

// Letter returns the single-letter id suffix used for numbered tiles.
func (s Suit) Letter() string {
	switch s {
	case SuitDots:
		return "D"
	case SuitBams:
		return "B"
	case SuitCracks:
		return "C"
	}
	return ""
}

// IsNumbered reports whether the suit carries 1-9 values.
func (s Suit) IsNumbered() bool {
	return s == SuitDots || s == SuitBams || s == SuitCracks
}

// IsValid reports whether s is one of the declared suits.
func (s Suit) IsValid() bool {
	_, ok := suitNames[s]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (s Suit) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid suit %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Suit) UnmarshalText(text []byte) error {
	parsed, err := ParseSuit(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSuit parses a suit name. The misspelling "craks" seen on printed cards is accepted.
func ParseSuit(name string) (Suit, error) {
	switch name {
	case "dots", "dot", "D":
		return SuitDots, nil
	case "bams", "bam", "B":
		return SuitBams, nil
	case "cracks", "crack", "craks", "C":
		return SuitCracks, nil
	case "winds", "wind":
		return SuitWinds, nil
	case "dragons", "dragon":
		return SuitDragons, nil
	case "flowers", "flower":
		return SuitFlowers, nil
	case "jokers", "joker":
		return SuitJokers, nil
	}
	return 0, fmt.Errorf("unknown suit %q", name)
}
