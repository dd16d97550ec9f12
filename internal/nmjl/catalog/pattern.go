// Package catalog models the NMJL card: hand patterns, their groups, and the
// expansion of each pattern into concrete 14-tile variations.
package catalog

import (
	"fmt"
	"strings"
)

// Kind is the constraint type of a pattern group.
type Kind int

const (
	KindSingle Kind = iota + 1
	KindPair
	KindPung
	KindKong
	KindQuint
	KindSextet
	KindSequence
)

var kindNames = map[Kind]string{
	KindSingle:   "single",
	KindPair:     "pair",
	KindPung:     "pung",
	KindKong:     "kong",
	KindQuint:    "quint",
	KindSextet:   "sextet",
	KindSequence: "sequence",
}

// String returns the card term for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Size returns the tile count of a set of identical tiles. Sequences return 0;
// their size comes from their values.
func (k Kind) Size() int {
	switch k {
	case KindSingle:
		return 1
	case KindPair:
		return 2
	case KindPung:
		return 3
	case KindKong:
		return 4
	case KindQuint:
		return 5
	case KindSextet:
		return 6
	}
	return 0
}

// AllowsJokers reports whether NMJL rules let jokers stand in for this kind.
// Singles, pairs and mixed sequences never take jokers.
func (k Kind) AllowsJokers() bool {
	return k.Size() >= 3
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("invalid group kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses a constraint type name.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "single":
		return KindSingle, nil
	case "pair":
		return KindPair, nil
	case "pung":
		return KindPung, nil
	case "kong":
		return KindKong, nil
	case "quint":
		return KindQuint, nil
	case "sextet":
		return KindSextet, nil
	case "sequence", "run":
		return KindSequence, nil
	}
	return 0, fmt.Errorf("unknown constraint type %q", name)
}

// Suit roles assigned to numbered groups.
const (
	RoleNone   = "none"
	RoleAny    = "any"
	RoleSecond = "second"
	RoleThird  = "third"
	sameAs     = "same_as:"
)

// Group is one set within a pattern.
type Group struct {
	ID            string `json:"id"`
	Kind          Kind   `json:"kind"`
	SuitRole      string `json:"suitRole"`
	Values        string `json:"values"`
	JokersAllowed bool   `json:"jokersAllowed"`
	MustMatch     string `json:"mustMatch,omitempty"`
	DisplayColor  string `json:"displayColor,omitempty"`
}

// JokerEligible reports whether a joker can fill this group's slots.
func (g Group) JokerEligible() bool {
	return g.JokersAllowed && g.Kind.AllowsJokers()
}

// SameAs returns the referenced group id for a same_as role.
func (g Group) SameAs() (string, bool) {
	if strings.HasPrefix(g.SuitRole, sameAs) {
		return strings.TrimPrefix(g.SuitRole, sameAs), true
	}
	return "", false
}

// baseRole reports whether the role draws its own suit.
func (g Group) baseRole() bool {
	switch g.SuitRole {
	case "", RoleNone:
		return false
	}
	_, ref := g.SameAs()
	return !ref
}

// Pattern is one line of the card.
type Pattern struct {
	ID            string  `json:"id"`
	Number        int     `json:"number,omitempty"`
	Year          int     `json:"year,omitempty"`
	Section       string  `json:"section"`
	Line          int     `json:"line"`
	Display       string  `json:"display"`
	Description   string  `json:"description,omitempty"`
	Groups        []Group `json:"groups"`
	Points        int     `json:"points"`
	Difficulty    string  `json:"difficulty"`
	ConcealedOnly bool    `json:"concealedOnly"`
}

// Difficulty labels in ascending order.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
	DifficultyExpert = "expert"
)

// DifficultyRank maps a label to 0 (easy) .. 3 (expert). Unknown labels rank as medium.
func DifficultyRank(label string) int {
	switch strings.ToLower(label) {
	case DifficultyEasy:
		return 0
	case DifficultyMedium, "":
		return 1
	case DifficultyHard:
		return 2
	case DifficultyExpert:
		return 3
	}
	return 1
}

// Group returns the group with the given id.
func (p Pattern) Group(id string) (Group, bool) {
	for _, g := range p.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// Label renders "Section #Line" for messages.
func (p Pattern) Label() string {
	return fmt.Sprintf("%s #%d", p.Section, p.Line)
}
