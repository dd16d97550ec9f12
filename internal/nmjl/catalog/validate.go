package catalog

import (
	"errors"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

// TileCountError is a variation whose slot total is not a full hand.
type TileCountError struct {
	PatternID   string `json:"patternId"`
	VariationID string `json:"variationId"`
	TileCount   int    `json:"tileCount"`
}

// Report summarises a catalog validation pass.
type Report struct {
	Patterns         int              `json:"patterns"`
	Variations       int              `json:"variations"`
	ValidPatterns    int              `json:"validPatterns"`
	TileCountErrors  []TileCountError `json:"tileCountErrors,omitempty"`
	ConstraintErrors []string         `json:"constraintErrors,omitempty"`
	DuplicateIDs     []string         `json:"duplicateIds,omitempty"`
	Sections         map[string]int   `json:"sections"`
}

// OK reports whether the catalog is fit for analysis.
func (r *Report) OK() bool {
	return len(r.TileCountErrors) == 0 && len(r.ConstraintErrors) == 0 && len(r.DuplicateIDs) == 0
}

// Validate expands every pattern and checks the card invariants: unique ids,
// resolvable constraints and exactly 14 tiles per variation.
func Validate(patterns []Pattern, maxVariations int) *Report {
	r := &Report{Patterns: len(patterns), Sections: make(map[string]int)}
	seen := make(map[string]bool)

	for _, p := range patterns {
		r.Sections[p.Section]++
		if seen[p.ID] {
			r.DuplicateIDs = append(r.DuplicateIDs, p.ID)
			continue
		}
		seen[p.ID] = true

		variations, err := Expand(p, maxVariations)
		if err != nil {
			var ce *ConstraintError
			if errors.As(err, &ce) {
				r.ConstraintErrors = append(r.ConstraintErrors, ce.Error())
			} else {
				r.ConstraintErrors = append(r.ConstraintErrors, err.Error())
			}
			continue
		}

		valid := true
		for _, v := range variations {
			r.Variations++
			if n := len(v.Slots); n != tiles.HandSize {
				valid = false
				r.TileCountErrors = append(r.TileCountErrors, TileCountError{PatternID: p.ID, VariationID: v.ID, TileCount: n})
			}
		}
		if valid {
			r.ValidPatterns++
		}
	}
	return r
}
