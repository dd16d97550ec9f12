package recommendations

import (
	"errors"
	"fmt"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/ranking"
)

// Policy holds the generator's constants.
type Policy struct {
	// FeedThreshold is the opponent need probability that demotes a release.
	FeedThreshold float64 `toml:"feed_threshold" json:"feedThreshold"`
	// FeedPenalty is subtracted from a demoted release's confidence.
	FeedPenalty float64 `toml:"feed_penalty" json:"feedPenalty"`
	// Alternates is how many patterns after the top one earn tier 3.
	Alternates int `toml:"alternates" json:"alternates"`
	MinPass    int `toml:"min_pass" json:"minPass"`
	MinDiscard int `toml:"min_discard" json:"minDiscard"`
	// Wall sizes at which discards start carrying wall_depletion warnings.
	WallCaution  int                `toml:"wall_caution" json:"wallCaution"`
	WallCritical int                `toml:"wall_critical" json:"wallCritical"`
	Tiers        ranking.Thresholds `toml:"tiers" json:"tiers"`
}

// DefaultPolicy returns the standard generator policy.
func DefaultPolicy() Policy {
	return Policy{
		FeedThreshold: 0.5,
		FeedPenalty:   25,
		Alternates:    3,
		MinPass:       3,
		MinDiscard:    1,
		WallCaution:   20,
		WallCritical:  10,
		Tiers:         ranking.DefaultThresholds(),
	}
}

// Validate checks the policy for usable values.
func (p Policy) Validate() error {
	var errs []error
	if p.FeedThreshold <= 0 || p.FeedThreshold > 1 {
		errs = append(errs, fmt.Errorf("feed_threshold %.2f out of range (0, 1]", p.FeedThreshold))
	}
	if p.FeedPenalty < 0 || p.FeedPenalty > 100 {
		errs = append(errs, fmt.Errorf("feed_penalty %.1f out of range [0, 100]", p.FeedPenalty))
	}
	if p.Alternates < 0 {
		errs = append(errs, errors.New("alternates must not be negative"))
	}
	if p.MinPass < 0 || p.MinDiscard < 0 {
		errs = append(errs, errors.New("minimum selections must not be negative"))
	}
	if p.WallCritical > p.WallCaution {
		errs = append(errs, fmt.Errorf("wall_critical %d above wall_caution %d", p.WallCritical, p.WallCaution))
	}
	if err := p.Tiers.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tiers: %w", err))
	}
	return errors.Join(errs...)
}
