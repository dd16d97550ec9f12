package matcher

import (
	"fmt"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
)

// AvailabilityTier grades how obtainable a missing tile is.
type AvailabilityTier int

const (
	AvailabilityEasy AvailabilityTier = iota + 1
	AvailabilityModerate
	AvailabilityDifficult
	AvailabilityImpossible
)

// String returns the tier name.
func (a AvailabilityTier) String() string {
	switch a {
	case AvailabilityEasy:
		return "easy"
	case AvailabilityModerate:
		return "moderate"
	case AvailabilityDifficult:
		return "difficult"
	case AvailabilityImpossible:
		return "impossible"
	}
	return fmt.Sprintf("availability(%d)", int(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a AvailabilityTier) MarshalText() ([]byte, error) {
	if a < AvailabilityEasy || a > AvailabilityImpossible {
		return nil, fmt.Errorf("invalid availability tier %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AvailabilityTier) UnmarshalText(text []byte) error {
	for t := AvailabilityEasy; t <= AvailabilityImpossible; t++ {
		if t.String() == string(text) {
			*a = t
			return nil
		}
	}
	return fmt.Errorf("unknown availability tier %q", text)
}

// ClassifyAvailability grades a missing tile from the copies still live and
// the copies needed.
func ClassifyAvailability(remaining, needed int) AvailabilityTier {
	switch {
	case remaining <= 0:
		return AvailabilityImpossible
	case remaining < needed || remaining == 1:
		return AvailabilityDifficult
	case remaining == 2:
		return AvailabilityModerate
	}
	return AvailabilityEasy
}

// TileContribution records one held tile assigned to a pattern slot.
type TileContribution struct {
	TileID        string `json:"tileId"`
	GroupID       string `json:"groupId"`
	IsRequired    bool   `json:"isRequired"`
	IsCritical    bool   `json:"isCritical"`
	CanBeReplaced bool   `json:"canBeReplaced"`
}

// MissingTile is a tile the best variation still needs.
type MissingTile struct {
	TileID        string           `json:"tileId"`
	GroupID       string           `json:"groupId"`
	Count         int              `json:"count"`
	Remaining     int              `json:"remaining"`
	JokerEligible bool             `json:"jokerEligible"`
	Availability  AvailabilityTier `json:"availability"`
}

// MissingTiles buckets missing tiles by availability.
type MissingTiles struct {
	Easy       []MissingTile `json:"easy"`
	Moderate   []MissingTile `json:"moderate"`
	Difficult  []MissingTile `json:"difficult"`
	Impossible []MissingTile `json:"impossible"`
}

// All returns every missing tile, easiest first.
func (m MissingTiles) All() []MissingTile {
	out := make([]MissingTile, 0, len(m.Easy)+len(m.Moderate)+len(m.Difficult)+len(m.Impossible))
	out = append(out, m.Easy...)
	out = append(out, m.Moderate...)
	out = append(out, m.Difficult...)
	out = append(out, m.Impossible...)
	return out
}

// Total returns the number of missing slots.
func (m MissingTiles) Total() int {
	n := 0
	for _, t := range m.All() {
		n += t.Count
	}
	return n
}

// add places t in its bucket.
func (m *MissingTiles) add(t MissingTile) {
	switch t.Availability {
	case AvailabilityEasy:
		m.Easy = append(m.Easy, t)
	case AvailabilityModerate:
		m.Moderate = append(m.Moderate, t)
	case AvailabilityDifficult:
		m.Difficult = append(m.Difficult, t)
	default:
		m.Impossible = append(m.Impossible, t)
	}
}

// BestVariation is the variation that best fits the hand.
type BestVariation struct {
	VariationID       string             `json:"variationId"`
	Tiles             []string           `json:"tiles"`
	CompletionRatio   float64            `json:"completionRatio"`
	MatchedSlots      int                `json:"matchedSlots"`
	NaturalSlots      int                `json:"naturalSlots"`
	JokersUsed        int                `json:"jokersUsed"`
	MissingEligible   int                `json:"missingEligible"`
	MissingCritical   int                `json:"missingCritical"`
	TileContributions []TileContribution `json:"tileContributions"`
}

// Facts is the matcher's verdict for one (hand, pattern) pair.
type Facts struct {
	PatternID            string            `json:"patternId"`
	BestVariation        BestVariation     `json:"bestVariation"`
	MissingTiles         MissingTiles      `json:"missingTiles"`
	VariationsConsidered int               `json:"variationsConsidered"`
	Valid                bool              `json:"valid"`
	Failure              *analysis.Failure `json:"failure,omitempty"`
}

// Complete reports whether the best variation is fully filled.
func (f Facts) Complete() bool {
	return f.Valid && f.BestVariation.MatchedSlots > 0 && f.BestVariation.CompletionRatio >= 1
}

// ContributionsFor returns the contributions of one tile id.
func (f Facts) ContributionsFor(tileID string) []TileContribution {
	var out []TileContribution
	for _, c := range f.BestVariation.TileContributions {
		if c.TileID == tileID {
			out = append(out, c)
		}
	}
	return out
}

// GroupsFor returns the distinct groups a tile id is assigned to.
func (f Facts) GroupsFor(tileID string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range f.ContributionsFor(tileID) {
		if !seen[c.GroupID] {
			seen[c.GroupID] = true
			out = append(out, c.GroupID)
		}
	}
	return out
}

// Needs reports whether the best variation still wants another copy of tileID.
func (f Facts) Needs(tileID string) bool {
	for _, m := range f.MissingTiles.All() {
		if m.TileID == tileID {
			return true
		}
	}
	return false
}
