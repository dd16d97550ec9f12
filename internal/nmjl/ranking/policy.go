package ranking

import (
	"errors"
	"fmt"
)

// MaxTotal is the ceiling of a pattern's total score.
const MaxTotal = 100

// Policy holds the scoring constants. The zero value is not usable; start from
// DefaultPolicy and override fields.
type Policy struct {
	MaxCurrentTile   float64    `toml:"max_current_tile" json:"maxCurrentTile"`
	MaxAvailability  float64    `toml:"max_availability" json:"maxAvailability"`
	MaxJoker         float64    `toml:"max_joker" json:"maxJoker"`
	MaxPriority      float64    `toml:"max_priority" json:"maxPriority"`
	CriticalPenalty  float64    `toml:"critical_penalty" json:"criticalPenalty"`
	ConcealedPenalty float64    `toml:"concealed_penalty" json:"concealedPenalty"`
	TopN             int        `toml:"top_n" json:"topN"`
	SwitchMargin     float64    `toml:"switch_margin" json:"switchMargin"`
	Tiers            Thresholds `toml:"tiers" json:"tiers"`
}

// DefaultPolicy returns the standard weights: 40/30/20/10 component caps,
// top five recommendations and a 15 point switch margin.
func DefaultPolicy() Policy {
	return Policy{
		MaxCurrentTile:   40,
		MaxAvailability:  30,
		MaxJoker:         20,
		MaxPriority:      10,
		CriticalPenalty:  1.5,
		ConcealedPenalty: 4,
		TopN:             5,
		SwitchMargin:     15,
		Tiers:            DefaultThresholds(),
	}
}

// Validate checks that the caps are usable and the tier thresholds descend.
func (p Policy) Validate() error {
	var errs []error
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"max_current_tile", p.MaxCurrentTile},
		{"max_availability", p.MaxAvailability},
		{"max_joker", p.MaxJoker},
		{"max_priority", p.MaxPriority},
		{"critical_penalty", p.CriticalPenalty},
		{"concealed_penalty", p.ConcealedPenalty},
		{"switch_margin", p.SwitchMargin},
	} {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", f.name))
		}
	}
	if sum := p.MaxCurrentTile + p.MaxAvailability + p.MaxJoker + p.MaxPriority; sum > MaxTotal {
		errs = append(errs, fmt.Errorf("component caps sum to %.1f, above %d", sum, MaxTotal))
	}
	if p.TopN < 1 {
		errs = append(errs, errors.New("top_n must be at least 1"))
	}
	if err := p.Tiers.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tiers: %w", err))
	}
	return errors.Join(errs...)
}
