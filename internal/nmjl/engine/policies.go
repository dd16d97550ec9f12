package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/probability"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/ranking"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/recommendations"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/turn"
)

// Policies groups every stage's tunable constants. It maps onto the
// [policy] section of the config file.
type Policies struct {
	Ranking         ranking.Policy         `toml:"ranking" json:"ranking"`
	Recommendations recommendations.Policy `toml:"recommendations" json:"recommendations"`
	Turn            turn.Policy            `toml:"turn" json:"turn"`
	Probability     probability.Policy     `toml:"probability" json:"probability"`
}

// DefaultPolicies returns every stage's default policy.
func DefaultPolicies() Policies {
	return Policies{
		Ranking:         ranking.DefaultPolicy(),
		Recommendations: recommendations.DefaultPolicy(),
		Turn:            turn.DefaultPolicy(),
		Probability:     probability.DefaultPolicy(),
	}
}

// Validate checks every stage policy.
func (p Policies) Validate() error {
	return errors.Join(
		p.Ranking.Validate(),
		p.Recommendations.Validate(),
		p.Turn.Validate(),
		p.Probability.Validate(),
	)
}

// Version is a content hash of the policies. Equal policies have equal
// versions in every process, so it is safe to use in shared cache keys.
func (p Policies) Version() string {
	data, _ := json.Marshal(p)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
