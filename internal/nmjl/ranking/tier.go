package ranking

import (
	"fmt"
	"strings"
)

// Tier buckets a pattern's total score. Higher values are better.
type Tier int

const (
	TierImpossible Tier = iota + 1
	TierPoor
	TierFair
	TierGood
	TierExcellent
)

var tierNames = map[Tier]string{
	TierImpossible: "impossible",
	TierPoor:       "poor",
	TierFair:       "fair",
	TierGood:       "good",
	TierExcellent:  "excellent",
}

// String returns the tier name.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// AtLeast reports whether t is as good as o.
func (t Tier) AtLeast(o Tier) bool { return t >= o }

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if _, ok := tierNames[t]; !ok {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for tier, n := range tierNames {
		if n == name {
			*t = tier
			return nil
		}
	}
	return fmt.Errorf("unknown tier %q", text)
}

// Thresholds are the minimum totals for each tier above impossible.
type Thresholds struct {
	Excellent float64 `toml:"excellent" json:"excellent"`
	Good      float64 `toml:"good" json:"good"`
	Fair      float64 `toml:"fair" json:"fair"`
	Poor      float64 `toml:"poor" json:"poor"`
}

// DefaultThresholds returns 80/65/45/25.
func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 80, Good: 65, Fair: 45, Poor: 25}
}

// Validate requires the thresholds to be strictly descending and inside (0, 100].
func (th Thresholds) Validate() error {
	ordered := []struct {
		name  string
		value float64
	}{
		{"excellent", th.Excellent},
		{"good", th.Good},
		{"fair", th.Fair},
		{"poor", th.Poor},
	}
	for i, o := range ordered {
		if o.value <= 0 || o.value > MaxTotal {
			return fmt.Errorf("%s threshold %.1f out of range (0, %d]", o.name, o.value, MaxTotal)
		}
		if i > 0 && o.value >= ordered[i-1].value {
			return fmt.Errorf("%s threshold %.1f must be below %s threshold %.1f",
				o.name, o.value, ordered[i-1].name, ordered[i-1].value)
		}
	}
	return nil
}

// TierFor maps a total score to its tier.
func (th Thresholds) TierFor(total float64) Tier {
	switch {
	case total >= th.Excellent:
		return TierExcellent
	case total >= th.Good:
		return TierGood
	case total >= th.Fair:
		return TierFair
	case total >= th.Poor:
		return TierPoor
	default:
		return TierImpossible
	}
}
