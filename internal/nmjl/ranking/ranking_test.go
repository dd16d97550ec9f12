package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/matcher"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

func scenarioPattern() catalog.Pattern {
	return catalog.Pattern{
		ID:         "scenario",
		Section:    "Test",
		Line:       1,
		Points:     25,
		Difficulty: catalog.DifficultyMedium,
		Groups: []catalog.Group{
			{ID: "ones", Kind: catalog.KindKong, SuitRole: catalog.RoleNone, Values: "1D", JokersAllowed: true},
			{ID: "run", Kind: catalog.KindSequence, SuitRole: catalog.RoleNone, Values: "5B,6B,7B"},
			{ID: "winds", Kind: catalog.KindPung, SuitRole: catalog.RoleNone, Values: "east", JokersAllowed: true},
			{ID: "nines", Kind: catalog.KindPair, SuitRole: catalog.RoleNone, Values: "9C"},
			{ID: "soap", Kind: catalog.KindSingle, SuitRole: catalog.RoleNone, Values: "white"},
			{ID: "north", Kind: catalog.KindSingle, SuitRole: catalog.RoleNone, Values: "north"},
		},
	}
}

func windsPattern(id string, concealed bool) catalog.Pattern {
	return catalog.Pattern{
		ID:            id,
		Section:       "Winds",
		Line:          1,
		Points:        30,
		Difficulty:    catalog.DifficultyHard,
		ConcealedOnly: concealed,
		Groups: []catalog.Group{
			{ID: "n", Kind: catalog.KindKong, SuitRole: catalog.RoleNone, Values: "north", JokersAllowed: true},
			{ID: "e", Kind: catalog.KindKong, SuitRole: catalog.RoleNone, Values: "east", JokersAllowed: true},
			{ID: "w", Kind: catalog.KindPung, SuitRole: catalog.RoleNone, Values: "west", JokersAllowed: true},
			{ID: "s", Kind: catalog.KindPung, SuitRole: catalog.RoleNone, Values: "south", JokersAllowed: true},
		},
	}
}

func matchAll(hand tiles.Hand, patterns ...catalog.Pattern) []matcher.Facts {
	out := make([]matcher.Facts, len(patterns))
	for i, p := range patterns {
		out[i] = matcher.MatchPattern(hand, p, hand.Jokers(), nil)
	}
	return out
}

func TestRank_CompleteHandIsExcellent(t *testing.T) {
	hand := tiles.MustHand("1D", "1D", "1D", "joker", "5B", "6B", "7B", "east", "east", "east", "9C", "9C", "white", "north")
	patterns := []catalog.Pattern{scenarioPattern(), windsPattern("winds", false)}

	res := Rank(matchAll(hand, patterns...), patterns, hand.Jokers(), analysis.DefaultContext(), DefaultPolicy())
	require.Nil(t, res.Failure)
	require.Len(t, res.All, 2)

	top, ok := res.Top()
	require.True(t, ok)
	assert.Equal(t, "scenario", top.PatternID)
	assert.Equal(t, TierExcellent, top.Tier)
	assert.Equal(t, 1.0, top.CompletionRatio)
	assert.Equal(t, 40.0, top.Breakdown.CurrentTileScore)
	assert.Equal(t, 30.0, top.Breakdown.AvailabilityScore)
	assert.Equal(t, 20.0, top.Breakdown.JokerScore)
	assert.Equal(t, top.Breakdown.Total(), top.TotalScore)
	assert.Equal(t, "hand is complete", top.Explanation)
}

func TestRank_NothingMatches(t *testing.T) {
	hand := tiles.MustHand("2D", "3D", "4D", "6B", "8B", "2C", "4C", "6C", "8C", "3B", "5D", "7C", "9D")
	patterns := []catalog.Pattern{windsPattern("winds-a", false), windsPattern("winds-b", true)}

	res := Rank(matchAll(hand, patterns...), patterns, 0, analysis.DefaultContext(), DefaultPolicy())
	require.Len(t, res.All, 2)
	for _, rp := range res.All {
		assert.Equal(t, TierImpossible, rp.Tier, rp.PatternID)
		assert.Zero(t, rp.CompletionRatio)
		assert.LessOrEqual(t, rp.TotalScore, DefaultPolicy().MaxPriority)
	}
	assert.Empty(t, res.ViablePatterns)
}

func TestRank_Degenerate(t *testing.T) {
	res := Rank(nil, nil, 0, analysis.DefaultContext(), DefaultPolicy())
	assert.Equal(t, DiagnosticNoFacts, res.Diagnostic)
	assert.NotNil(t, res.All)
	assert.NotNil(t, res.TopRecommendations)
	assert.Nil(t, res.SwitchAnalysis)

	invalid := []matcher.Facts{{PatternID: "broken", Failure: &analysis.Failure{Kind: analysis.FailureInputValidation, Subject: "broken", Message: "bad group"}}}
	res = Rank(invalid, nil, 0, analysis.DefaultContext(), DefaultPolicy())
	assert.Equal(t, DiagnosticNoValidFacts, res.Diagnostic)
	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "broken", res.Excluded[0].Subject)

	bad := DefaultPolicy()
	bad.Tiers.Good = 90
	res = Rank(matchAll(tiles.MustHand("east"), scenarioPattern()), []catalog.Pattern{scenarioPattern()}, 0, analysis.DefaultContext(), bad)
	assert.Equal(t, DiagnosticBadPolicy, res.Diagnostic)
	require.NotNil(t, res.Failure)
	assert.Equal(t, analysis.FailureInputValidation, res.Failure.Kind)
}

func TestRank_MissingPatternExcluded(t *testing.T) {
	hand := tiles.MustHand("east", "east")
	facts := matchAll(hand, scenarioPattern(), windsPattern("winds", false))

	res := Rank(facts, []catalog.Pattern{scenarioPattern()}, 0, analysis.DefaultContext(), DefaultPolicy())
	require.Len(t, res.All, 1)
	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "winds", res.Excluded[0].Subject)
	assert.Equal(t, analysis.FailurePartial, res.Excluded[0].Kind)
}

func TestRank_OrderingAndLists(t *testing.T) {
	c, err := catalog.LoadBuiltin()
	require.NoError(t, err)
	entries, _ := c.Entries(nil)

	hand := tiles.MustHand("2D", "2D", "white", "5D", "2B", "2B", "flower", "flower", "joker", "4B", "4B", "6C", "8C", "north")
	facts := matcher.New(nil).MatchAll(hand, entries, hand.Jokers(), nil)

	res := Rank(facts, c.Patterns(), hand.Jokers(), analysis.DefaultContext(), DefaultPolicy())
	require.NotEmpty(t, res.All)
	assert.LessOrEqual(t, len(res.TopRecommendations), DefaultPolicy().TopN)

	for i := 1; i < len(res.All); i++ {
		prev, cur := res.All[i-1], res.All[i]
		if prev.TotalScore < cur.TotalScore || (prev.TotalScore == cur.TotalScore && prev.PatternID > cur.PatternID) {
			t.Fatalf("ranking out of order at %d: %s %.1f before %s %.1f", i, prev.PatternID, prev.TotalScore, cur.PatternID, cur.TotalScore)
		}
	}
	for _, rp := range res.ViablePatterns {
		assert.True(t, rp.Tier.AtLeast(TierFair), rp.PatternID)
	}
	for _, rp := range res.All {
		assert.Equal(t, rp.Breakdown.Total(), rp.TotalScore, "total must follow from the breakdown")
		assert.Equal(t, DefaultThresholds().TierFor(rp.TotalScore), rp.Tier)
		assert.LessOrEqual(t, rp.Breakdown.CurrentTileScore, 40.0)
		assert.LessOrEqual(t, rp.Breakdown.AvailabilityScore, 30.0)
		assert.LessOrEqual(t, rp.Breakdown.JokerScore, 20.0)
		assert.LessOrEqual(t, rp.Breakdown.PriorityScore, 10.0)
	}

	again := Rank(facts, c.Patterns(), hand.Jokers(), analysis.DefaultContext(), DefaultPolicy())
	assert.Equal(t, res, again)
}

func TestRank_SwitchAnalysis(t *testing.T) {
	hand := tiles.MustHand("1D", "1D", "1D", "joker", "5B", "6B", "7B", "east", "east", "east", "9C", "9C", "white", "north")
	patterns := []catalog.Pattern{scenarioPattern(), windsPattern("winds", false)}
	facts := matchAll(hand, patterns...)

	res := Rank(facts, patterns, 1, analysis.DefaultContext(), DefaultPolicy(), WithTarget("winds"))
	require.NotNil(t, res.SwitchAnalysis)
	assert.Equal(t, "winds", res.SwitchAnalysis.CurrentPatternID)
	assert.Equal(t, "scenario", res.SwitchAnalysis.BestAlternativeID)
	assert.True(t, res.SwitchAnalysis.ShouldSwitch)
	assert.Greater(t, res.SwitchAnalysis.ScoreGap, DefaultPolicy().SwitchMargin)

	res = Rank(facts, patterns, 1, analysis.DefaultContext(), DefaultPolicy())
	assert.Equal(t, "scenario", res.SwitchAnalysis.CurrentPatternID)
	assert.False(t, res.SwitchAnalysis.ShouldSwitch)
}

func TestRank_ConcealedPenalty(t *testing.T) {
	hand := tiles.MustHand("north", "north", "east", "east", "west")
	open := windsPattern("open", false)
	closed := windsPattern("closed", true)
	patterns := []catalog.Pattern{open, closed}
	for i := range patterns {
		patterns[i].Difficulty = catalog.DifficultyEasy
		patterns[i].Points = 75
	}
	facts := matchAll(hand, patterns...)

	ctx := analysis.DefaultContext()
	ctx.Phase = analysis.PhaseGameplay
	ctx.ExposedTiles = map[string][]analysis.Exposure{
		analysis.Self: {{Tiles: []string{"south", "south", "south"}}},
	}

	res := Rank(facts, patterns, 0, ctx, DefaultPolicy())
	o, _ := res.Find("open")
	c, _ := res.Find("closed")
	assert.InDelta(t, DefaultPolicy().ConcealedPenalty, o.Breakdown.PriorityScore-c.Breakdown.PriorityScore, 0.11)

	res = Rank(facts, patterns, 0, ctx, DefaultPolicy(), WithPlayer("east-seat"))
	o, _ = res.Find("open")
	c, _ = res.Find("closed")
	assert.Equal(t, o.Breakdown.PriorityScore, c.Breakdown.PriorityScore, "another player's exposures do not count")
}

func TestRank_BlockedPattern(t *testing.T) {
	hand := tiles.MustHand("1D", "1D", "1D", "5B", "6B")
	facts := []matcher.Facts{matcher.MatchPattern(hand, scenarioPattern(), 0, analysis.Seen{"7B": 4})}

	res := Rank(facts, []catalog.Pattern{scenarioPattern()}, 0, analysis.DefaultContext(), DefaultPolicy())
	require.Len(t, res.All, 1)
	assert.True(t, res.All[0].Blocked)
	assert.Zero(t, res.All[0].Breakdown.AvailabilityScore)
}

func TestThresholds(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		total float64
		want  Tier
	}{
		{100, TierExcellent},
		{80, TierExcellent},
		{79.9, TierGood},
		{65, TierGood},
		{45, TierFair},
		{25, TierPoor},
		{24.9, TierImpossible},
		{0, TierImpossible},
	}
	for _, tt := range tests {
		if got := th.TierFor(tt.total); got != tt.want {
			t.Errorf("TierFor(%.1f) = %s, want %s", tt.total, got, tt.want)
		}
	}

	prev := TierImpossible
	for total := 0.0; total <= 100; total += 0.5 {
		tier := th.TierFor(total)
		if tier < prev {
			t.Fatalf("tier dropped from %s to %s at %.1f", prev, tier, total)
		}
		prev = tier
	}
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"equal thresholds", func(p *Policy) { p.Tiers.Fair = p.Tiers.Good }},
		{"ascending thresholds", func(p *Policy) { p.Tiers.Poor = 50 }},
		{"zero threshold", func(p *Policy) { p.Tiers.Poor = 0 }},
		{"negative cap", func(p *Policy) { p.MaxJoker = -1 }},
		{"caps above total", func(p *Policy) { p.MaxCurrentTile = 60 }},
		{"no top n", func(p *Policy) { p.TopN = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestTierText(t *testing.T) {
	for _, tier := range []Tier{TierImpossible, TierPoor, TierFair, TierGood, TierExcellent} {
		text, err := tier.MarshalText()
		require.NoError(t, err)
		var back Tier
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, tier, back)
	}
	var bad Tier
	assert.Error(t, bad.UnmarshalText([]byte("legendary")))
	_, err := Tier(0).MarshalText()
	assert.Error(t, err)
}
