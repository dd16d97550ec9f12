// Package ranking scores matcher facts into ordered, tiered pattern
// recommendations.
//
// Each pattern's total is the sum of four capped components:
//   - current tiles (0-40): completion ratio
//   - availability (0-30): how obtainable the missing tiles are
//   - jokers (0-20): how much of the gap jokers can close
//   - priority (0-10): card points and difficulty
//
// Availability and joker scores are scaled by completion so that a hand with
// no matching tiles never ranks above impossible.
package ranking

import (
	"fmt"
	"math"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/matcher"
)

// Diagnostic labels for degenerate results.
const (
	DiagnosticNoFacts      = "no_facts"
	DiagnosticNoValidFacts = "no_valid_facts"
	DiagnosticBadPolicy    = "invalid_policy"
)

const (
	// Weight of a missing slot per availability tier.
	weightEasy      = 1.0
	weightModerate  = 0.6
	weightDifficult = 0.25

	// An impossible joker-eligible slot can still be covered by a drawn joker.
	weightJokerDraw = 0.25

	// Share of the priority score from difficulty; the rest comes from points.
	easeShare = 0.6

	// Card values below minPoints score nothing; maxPoints and above score full.
	minPoints = 25
	maxPoints = 75
)

// Breakdown is a pattern's score by component.
type Breakdown struct {
	CurrentTileScore  float64 `json:"currentTileScore"`
	AvailabilityScore float64 `json:"availabilityScore"`
	JokerScore        float64 `json:"jokerScore"`
	PriorityScore     float64 `json:"priorityScore"`
}

// Total sums the components, clamped to [0, 100] and rounded to one decimal.
func (b Breakdown) Total() float64 {
	sum := b.CurrentTileScore + b.AvailabilityScore + b.JokerScore + b.PriorityScore
	return round1(clamp(sum, 0, MaxTotal))
}

// RankedPattern is one scored pattern.
type RankedPattern struct {
	PatternID       string    `json:"patternId"`
	Label           string    `json:"label"`
	Points          int       `json:"points"`
	ConcealedOnly   bool      `json:"concealedOnly"`
	Breakdown       Breakdown `json:"breakdown"`
	TotalScore      float64   `json:"totalScore"`
	Tier            Tier      `json:"tier"`
	CompletionRatio float64   `json:"completionRatio"`
	Confidence      float64   `json:"confidence"`
	Blocked         bool      `json:"blocked"`
	Explanation     string    `json:"explanation"`
}

// SwitchAnalysis compares the current target with the best alternative.
type SwitchAnalysis struct {
	CurrentPatternID     string  `json:"currentPatternId"`
	CurrentScore         float64 `json:"currentScore"`
	BestAlternativeID    string  `json:"bestAlternativeId,omitempty"`
	BestAlternativeScore float64 `json:"bestAlternativeScore"`
	ScoreGap             float64 `json:"scoreGap"`
	ShouldSwitch         bool    `json:"shouldSwitch"`
	Reasoning            string  `json:"reasoning"`
}

// Result is the ranking of one hand.
type Result struct {
	All                []RankedPattern    `json:"all"`
	TopRecommendations []RankedPattern    `json:"topRecommendations"`
	ViablePatterns     []RankedPattern    `json:"viablePatterns"`
	SwitchAnalysis     *SwitchAnalysis    `json:"switchAnalysis,omitempty"`
	Excluded           []analysis.Failure `json:"excluded,omitempty"`
	Diagnostic         string             `json:"diagnostic,omitempty"`
	Failure            *analysis.Failure  `json:"failure,omitempty"`
}

// Top returns the best ranked pattern.
func (r Result) Top() (RankedPattern, bool) {
	if len(r.All) == 0 {
		return RankedPattern{}, false
	}
	return r.All[0], true
}

// Find returns the ranked entry for a pattern id.
func (r Result) Find(patternID string) (RankedPattern, bool) {
	for _, rp := range r.All {
		if rp.PatternID == patternID {
			return rp, true
		}
	}
	return RankedPattern{}, false
}

// Option adjusts one Rank call.
type Option func(*options)

type options struct {
	target string
	player string
}

// WithTarget names the pattern the player is currently building. Switch
// analysis compares alternatives against it instead of the top entry.
func WithTarget(patternID string) Option {
	return func(o *options) { o.target = patternID }
}

// WithPlayer sets whose exposures count for the concealed-only penalty.
// The default is analysis.Self.
func WithPlayer(playerID string) Option {
	return func(o *options) { o.player = playerID }
}

// Ranker scores facts with a fixed policy. It is safe for concurrent use.
type Ranker struct {
	policy Policy
	logger *log.Logger
}

// New creates a ranker. The policy must validate.
func New(policy Policy, logger *log.Logger) (*Ranker, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("ranking policy: %w", err)
	}
	return &Ranker{policy: policy, logger: logging.Or(logger).With("component", "ranking")}, nil
}

// Policy returns the ranker's policy.
func (r *Ranker) Policy() Policy { return r.policy }

// Rank ranks facts with policy in one call. An invalid policy yields a failed
// result rather than an error.
func Rank(facts []matcher.Facts, patterns []catalog.Pattern, jokers int, ctx analysis.GameContext, policy Policy, opts ...Option) Result {
	r, err := New(policy, logging.Discard())
	if err != nil {
		f := analysis.NewFailure(analysis.FailureInputValidation, "policy", err)
		return emptyResult(DiagnosticBadPolicy, &f)
	}
	return r.Rank(facts, patterns, jokers, ctx, opts...)
}

// Rank scores every valid fact against its pattern. Facts that are invalid or
// whose pattern is missing are excluded and listed in Result.Excluded.
func (r *Ranker) Rank(facts []matcher.Facts, patterns []catalog.Pattern, jokers int, ctx analysis.GameContext, opts ...Option) (res Result) {
	o := options{player: analysis.Self}
	for _, opt := range opts {
		opt(&o)
	}

	var failure analysis.Failure
	defer func() {
		if failure.Kind != analysis.FailureNone {
			r.logger.Error("ranking failed", "failure", failure)
			res = emptyResult(failure.Subject, &failure)
		}
	}()
	defer analysis.Recover("ranking", &failure)

	if len(facts) == 0 {
		return emptyResult(DiagnosticNoFacts, nil)
	}

	byID := make(map[string]catalog.Pattern, len(patterns))
	for _, p := range patterns {
		byID[p.ID] = p
	}

	all := make([]RankedPattern, 0, len(facts))
	for _, f := range facts {
		if !f.Valid {
			res.Excluded = append(res.Excluded, excluded(f))
			continue
		}
		p, ok := byID[f.PatternID]
		if !ok {
			res.Excluded = append(res.Excluded, analysis.Failure{
				Kind:    analysis.FailurePartial,
				Subject: f.PatternID,
				Message: "facts reference a pattern that was not supplied",
			})
			continue
		}
		all = append(all, r.score(f, p, jokers, ctx, o.player))
	}
	for _, ex := range res.Excluded {
		r.logger.Warn("pattern excluded from ranking", "pattern", ex.Subject, "reason", ex.Message)
	}

	if len(all) == 0 {
		out := emptyResult(DiagnosticNoValidFacts, nil)
		out.Excluded = res.Excluded
		return out
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].TotalScore != all[j].TotalScore {
			return all[i].TotalScore > all[j].TotalScore
		}
		return all[i].PatternID < all[j].PatternID
	})

	res.All = all
	res.TopRecommendations = all[:min(r.policy.TopN, len(all))]
	res.ViablePatterns = []RankedPattern{}
	for _, rp := range all {
		if rp.Tier.AtLeast(TierFair) {
			res.ViablePatterns = append(res.ViablePatterns, rp)
		}
	}
	res.SwitchAnalysis = r.switchAnalysis(all, o.target)
	return res
}

func emptyResult(diagnostic string, f *analysis.Failure) Result {
	return Result{
		All:                []RankedPattern{},
		TopRecommendations: []RankedPattern{},
		ViablePatterns:     []RankedPattern{},
		Diagnostic:         diagnostic,
		Failure:            f,
	}
}

func excluded(f matcher.Facts) analysis.Failure {
	if f.Failure != nil {
		return *f.Failure
	}
	return analysis.Failure{Kind: analysis.FailurePartial, Subject: f.PatternID, Message: "invalid facts"}
}

func (r *Ranker) score(f matcher.Facts, p catalog.Pattern, jokers int, ctx analysis.GameContext, player string) RankedPattern {
	ratio := clamp(f.BestVariation.CompletionRatio, 0, 1)
	obtainable, blocked := obtainableShare(f)

	b := Breakdown{
		CurrentTileScore:  round1(ratio * r.policy.MaxCurrentTile),
		AvailabilityScore: round1(r.policy.MaxAvailability * obtainable * ratio),
		JokerScore:        round1(r.jokerScore(f, jokers) * ratio),
		PriorityScore:     round1(r.priorityScore(p, ctx, player)),
	}
	if blocked {
		b.AvailabilityScore = 0
	}
	total := b.Total()

	confidence := 100 * (easeShare*ratio + (1-easeShare)*obtainable)
	if blocked {
		confidence /= 2
	}

	rp := RankedPattern{
		PatternID:       p.ID,
		Label:           p.Label(),
		Points:          p.Points,
		ConcealedOnly:   p.ConcealedOnly,
		Breakdown:       b,
		TotalScore:      total,
		Tier:            r.policy.Tiers.TierFor(total),
		CompletionRatio: ratio,
		Confidence:      math.Round(clamp(confidence, 0, 100)),
		Blocked:         blocked,
	}
	rp.Explanation = explain(rp, f)
	return rp
}

// obtainableShare returns the availability-weighted share of missing slots,
// and whether a joker-forbidden slot can no longer be filled at all.
func obtainableShare(f matcher.Facts) (float64, bool) {
	missing := f.MissingTiles.All()
	if len(missing) == 0 {
		return 1, false
	}
	var weighted, total float64
	blocked := false
	for _, m := range missing {
		var w float64
		switch m.Availability {
		case matcher.AvailabilityEasy:
			w = weightEasy
		case matcher.AvailabilityModerate:
			w = weightModerate
		case matcher.AvailabilityDifficult:
			w = weightDifficult
		default:
			if m.JokerEligible {
				w = weightJokerDraw
			} else {
				blocked = true
			}
		}
		weighted += w * float64(m.Count)
		total += float64(m.Count)
	}
	if blocked {
		return 0, true
	}
	return weighted / total, false
}

// jokerScore rewards gaps jokers can fill and charges each joker-forbidden gap.
func (r *Ranker) jokerScore(f matcher.Facts, jokers int) float64 {
	bv := f.BestVariation
	gaps := bv.MissingEligible + bv.MissingCritical
	if gaps == 0 {
		return r.policy.MaxJoker
	}
	flex := float64(bv.MissingEligible) / float64(gaps)
	score := r.policy.MaxJoker*flex - r.policy.CriticalPenalty*float64(bv.MissingCritical)
	if jokers > bv.JokersUsed && bv.MissingEligible == 0 {
		// Spare jokers cannot help a hand whose gaps are all joker-forbidden.
		score -= r.policy.CriticalPenalty
	}
	return clamp(score, 0, r.policy.MaxJoker)
}

func (r *Ranker) priorityScore(p catalog.Pattern, ctx analysis.GameContext, player string) float64 {
	ease := 1 - float64(catalog.DifficultyRank(p.Difficulty))/4
	points := clamp(float64(p.Points-minPoints)/float64(maxPoints-minPoints), 0, 1)
	score := r.policy.MaxPriority * (easeShare*ease + (1-easeShare)*points)
	if p.ConcealedOnly && ctx.Phase == analysis.PhaseGameplay && ctx.HasExposures(player) {
		score -= r.policy.ConcealedPenalty
	}
	return clamp(score, 0, r.policy.MaxPriority)
}

func (r *Ranker) switchAnalysis(all []RankedPattern, target string) *SwitchAnalysis {
	current := all[0]
	if target != "" {
		for _, rp := range all {
			if rp.PatternID == target {
				current = rp
				break
			}
		}
	}

	sa := &SwitchAnalysis{CurrentPatternID: current.PatternID, CurrentScore: current.TotalScore}
	for _, rp := range all {
		if rp.PatternID == current.PatternID {
			continue
		}
		sa.BestAlternativeID = rp.PatternID
		sa.BestAlternativeScore = rp.TotalScore
		break
	}
	if sa.BestAlternativeID == "" {
		sa.Reasoning = "no alternative patterns"
		return sa
	}

	sa.ScoreGap = round1(sa.BestAlternativeScore - sa.CurrentScore)
	sa.ShouldSwitch = sa.ScoreGap > r.policy.SwitchMargin
	if sa.ShouldSwitch {
		sa.Reasoning = fmt.Sprintf("%s scores %.1f points above %s", sa.BestAlternativeID, sa.ScoreGap, sa.CurrentPatternID)
	} else {
		sa.Reasoning = fmt.Sprintf("%s remains within %.0f points of the best alternative", sa.CurrentPatternID, r.policy.SwitchMargin)
	}
	return sa
}

func explain(rp RankedPattern, f matcher.Facts) string {
	bv := f.BestVariation
	switch {
	case f.Complete():
		return "hand is complete"
	case rp.Blocked:
		return fmt.Sprintf("%d of 14 tiles matched; a joker-forbidden tile is dead", bv.MatchedSlots)
	default:
		return fmt.Sprintf("%d of 14 tiles matched (%d jokers); %d need naturals, %d can take jokers",
			bv.MatchedSlots, bv.JokersUsed, bv.MissingCritical, bv.MissingEligible)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
