package turn

import (
	"errors"
	"fmt"
)

// Policy holds the coordinator's constants.
type Policy struct {
	// CallThreshold is the ranking score a call must add to the target
	// pattern before it is recommended.
	CallThreshold float64 `toml:"call_threshold" json:"callThreshold"`
	// SwitchAfterTurns is how many turns a target is held before switch
	// suggestions are offered.
	SwitchAfterTurns int `toml:"switch_after_turns" json:"switchAfterTurns"`
	// LateRound is the round from which honors and unseen tiles count as risky.
	LateRound int `toml:"late_round" json:"lateRound"`
	// Risk added to a discard that is an honor, or unseen, in the late round.
	HonorRisk  float64 `toml:"honor_risk" json:"honorRisk"`
	UnseenRisk float64 `toml:"unseen_risk" json:"unseenRisk"`
	// Wall sizes at which draw caution becomes moderate and high.
	WallCaution  int `toml:"wall_caution" json:"wallCaution"`
	WallCritical int `toml:"wall_critical" json:"wallCritical"`
	// MaxDiscardOptions caps the ranked discard list.
	MaxDiscardOptions int `toml:"max_discard_options" json:"maxDiscardOptions"`
}

// DefaultPolicy returns the standard coordinator policy.
func DefaultPolicy() Policy {
	return Policy{
		CallThreshold:     3,
		SwitchAfterTurns:  3,
		LateRound:         8,
		HonorRisk:         0.15,
		UnseenRisk:        0.1,
		WallCaution:       20,
		WallCritical:      10,
		MaxDiscardOptions: 5,
	}
}

// Validate checks the policy for usable values.
func (p Policy) Validate() error {
	var errs []error
	if p.CallThreshold < 0 || p.CallThreshold > 100 {
		errs = append(errs, fmt.Errorf("call_threshold %.1f out of range [0, 100]", p.CallThreshold))
	}
	if p.SwitchAfterTurns < 0 {
		errs = append(errs, errors.New("switch_after_turns must not be negative"))
	}
	if p.LateRound < 1 {
		errs = append(errs, fmt.Errorf("late_round %d below 1", p.LateRound))
	}
	if p.HonorRisk < 0 || p.HonorRisk > 1 || p.UnseenRisk < 0 || p.UnseenRisk > 1 {
		errs = append(errs, errors.New("risk increments must be within [0, 1]"))
	}
	if p.WallCritical < 0 || p.WallCritical > p.WallCaution {
		errs = append(errs, fmt.Errorf("wall_critical %d must be within [0, wall_caution %d]", p.WallCritical, p.WallCaution))
	}
	if p.MaxDiscardOptions < 1 {
		errs = append(errs, errors.New("max_discard_options must be at least 1"))
	}
	return errors.Join(errs...)
}
