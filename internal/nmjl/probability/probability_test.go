package probability

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/matcher"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

func TestDrawProbability(t *testing.T) {
	tests := []struct {
		name                                  string
		population, successes, draws, needed int
		want                                  float64
		method                                Method
	}{
		{"one of one in one draw", 10, 1, 1, 1, 0.1, MethodHypergeometric},
		{"certain", 10, 10, 1, 1, 1, MethodHypergeometric},
		{"draw everything", 20, 2, 20, 2, 1, MethodHypergeometric},
		{"too few copies", 50, 1, 10, 2, 0, MethodHypergeometric},
		{"nothing needed", 50, 0, 0, 0, 1, MethodHypergeometric},
		{"empty wall", 0, 3, 5, 1, 0, MethodHypergeometric},
		// 1 - C(46,5)/C(50,5)
		{"hypergeometric tail", 50, 4, 5, 1, 1 - 1370754.0/2118760.0, MethodHypergeometric},
		{"marginal", 100, 4, 5, 1, 1 - math.Pow(0.96, 5), MethodMarginal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, method := DrawProbability(tt.population, tt.successes, tt.draws, tt.needed, 60)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.method, method)
		})
	}
}

func TestDrawProbability_MonotonicInDraws(t *testing.T) {
	for _, pop := range []int{40, 90} {
		prev := 0.0
		for d := 1; d <= 25; d++ {
			p, _ := DrawProbability(pop, 3, d, 2, 60)
			if p+1e-12 < prev {
				t.Fatalf("population %d: probability fell from %f to %f at %d draws", pop, prev, p, d)
			}
			prev = p
		}
	}
}

func TestExpectedDraws(t *testing.T) {
	assert.Equal(t, 0.0, ExpectedDraws(80, 4, 0))
	assert.Equal(t, -1.0, ExpectedDraws(80, 1, 2))
	assert.InDelta(t, 81.0/5.0, ExpectedDraws(80, 4, 1), 1e-9)
}

func scenarioPattern() catalog.Pattern {
	return catalog.Pattern{
		ID: "scenario", Section: "Test", Line: 1, Points: 25, Difficulty: catalog.DifficultyMedium,
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

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := New(DefaultPolicy(), nil)
	require.NoError(t, err)
	return c
}

func TestEstimate_CompleteHand(t *testing.T) {
	hand := tiles.MustHand("1D", "1D", "1D", "joker", "5B", "6B", "7B", "east", "east", "east", "9C", "9C", "white", "north")
	f := matcher.MatchPattern(hand, scenarioPattern(), hand.Jokers(), nil)

	est := newCalculator(t).Estimate(f, hand, analysis.DefaultContext())
	assert.Equal(t, 1.0, est.CompletionProbability)
	assert.Zero(t, est.ExpectedTurns)
	assert.True(t, est.Reachable)
	assert.Len(t, est.JokerDependency, MaxExtraJokers+1)
	assert.Equal(t, 1.0, est.Worst.Probability)
}

func TestEstimate_ScenariosAndJokers(t *testing.T) {
	hand := tiles.MustHand("1D", "1D", "5B", "6B", "7B", "east", "east", "9C", "9C", "white", "north", "3D", "8B")
	f := matcher.MatchPattern(hand, scenarioPattern(), 0, nil)
	ctx := analysis.DefaultContext()
	ctx.Phase = analysis.PhaseGameplay
	ctx.WallTilesRemaining = 60

	est := newCalculator(t).Estimate(f, hand, ctx)
	require.Nil(t, est.Failure)
	assert.Equal(t, 60, est.WallTiles)
	assert.Equal(t, 60+39, est.Population)
	assert.Equal(t, 15, est.Draws)
	assert.Equal(t, tiles.JokerCopies, est.JokersLeft)
	assert.Equal(t, MethodMarginal, est.Method)
	require.NotEmpty(t, est.Tiles)

	assert.Greater(t, est.CompletionProbability, 0.0)
	assert.Less(t, est.CompletionProbability, 1.0)
	assert.GreaterOrEqual(t, est.Best.Probability, est.Average.Probability)
	assert.GreaterOrEqual(t, est.Average.Probability, est.Worst.Probability)
	assert.Equal(t, est.CompletionProbability, est.Average.Probability)

	require.Len(t, est.JokerDependency, 3)
	for i := 1; i < len(est.JokerDependency); i++ {
		assert.GreaterOrEqual(t, est.JokerDependency[i].Probability, est.JokerDependency[i-1].Probability)
	}
	assert.Equal(t, 2, est.OptimalJokers, "both missing slots take jokers")

	product := 1.0
	for _, o := range est.Tiles {
		product *= o.Probability
	}
	assert.InDelta(t, product, est.CompletionProbability, 1e-3, "completion multiplies per-tile odds")
}

func TestEstimate_DeadTile(t *testing.T) {
	hand := tiles.MustHand("1D", "1D", "1D", "5B", "6B", "east", "east", "east", "9C", "9C", "white", "north")
	f := matcher.MatchPattern(hand, scenarioPattern(), 0, analysis.Seen{"7B": 4})
	ctx := analysis.DefaultContext()
	ctx.DiscardPile = []string{"7B", "7B", "7B", "7B"}

	est := newCalculator(t).Estimate(f, hand, ctx)
	assert.Zero(t, est.CompletionProbability)
	assert.Equal(t, -1.0, est.ExpectedTurns)
	assert.False(t, est.Reachable)
	assert.Equal(t, "7B", est.Tiles[0].TileID, "the worst tile sorts first")
	assert.Equal(t, 0, est.OptimalJokers, "jokers cannot replace a run tile")
}

func TestEstimate_InvalidFacts(t *testing.T) {
	f := matcher.Facts{PatternID: "broken", Failure: &analysis.Failure{Kind: analysis.FailureInputValidation, Message: "bad"}}
	est := newCalculator(t).Estimate(f, tiles.MustHand("1D"), analysis.DefaultContext())
	require.NotNil(t, est.Failure)
	assert.Equal(t, analysis.FailureInputValidation, est.Failure.Kind)
	assert.Zero(t, est.CompletionProbability)
	assert.NotNil(t, est.Tiles)
}

func TestTableCountsVisibleJokers(t *testing.T) {
	ctx := analysis.GameContext{
		WallTilesRemaining: 30,
		DiscardPile:        []string{"joker"},
		ExposedTiles: map[string][]analysis.Exposure{
			"p2":          {{Tiles: []string{"5B", "joker", "5B"}}},
			analysis.Self: {{Tiles: []string{"east", "east", "east"}}},
		},
	}
	tb := newCalculator(t).table(tiles.MustHand("joker", "2D"), ctx)
	assert.Equal(t, tiles.JokerCopies-3, tb.jokersLeft)
	assert.Equal(t, 30+39-3, tb.unseen)
	assert.Equal(t, 8, tb.draws)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())
	p := DefaultPolicy()
	p.Players = 1
	assert.Error(t, p.Validate())
	_, err := New(p, nil)
	assert.Error(t, err)
}
