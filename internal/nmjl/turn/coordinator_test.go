package turn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/recommendations"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

// scenarioPattern is 1111D (jokers ok), 5B 6B 7B, EEE, 99C, white, north.
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

// crackPattern shares no tile with scenarioPattern.
func crackPattern() catalog.Pattern {
	return catalog.Pattern{
		ID: "cracks", Section: "Test", Line: 2, Points: 25, Difficulty: catalog.DifficultyMedium,
		Groups: []catalog.Group{
			{ID: "twos", Kind: catalog.KindKong, SuitRole: catalog.RoleNone, Values: "2C", JokersAllowed: true},
			{ID: "fours", Kind: catalog.KindKong, SuitRole: catalog.RoleNone, Values: "4C", JokersAllowed: true},
			{ID: "sixes", Kind: catalog.KindKong, SuitRole: catalog.RoleNone, Values: "6C", JokersAllowed: true},
			{ID: "eights", Kind: catalog.KindPair, SuitRole: catalog.RoleNone, Values: "8C"},
		},
	}
}

func newCoordinator(t *testing.T, patterns ...catalog.Pattern) *Coordinator {
	t.Helper()
	if len(patterns) == 0 {
		patterns = []catalog.Pattern{scenarioPattern()}
	}
	cat, err := catalog.New(patterns, catalog.DefaultMaxVariations)
	require.NoError(t, err)
	co, err := New(DefaultPolicy(), Components{Catalog: cat}, nil)
	require.NoError(t, err)
	return co
}

func gameplay(wall, round int) analysis.GameContext {
	return analysis.GameContext{Phase: analysis.PhaseGameplay, WallTilesRemaining: wall, RoundNumber: round}
}

// elevenOfScenario holds 11 of the 14 scenario tiles: two 1D and one east short.
var elevenOfScenario = []string{"1D", "1D", "5B", "6B", "7B", "east", "east", "9C", "9C", "white", "north"}

func hand(extra ...string) []string {
	return append(append([]string(nil), elevenOfScenario...), extra...)
}

func TestAnalyze_DrawCaution(t *testing.T) {
	co := newCoordinator(t)
	tests := []struct {
		wall int
		want Level
	}{
		{60, LevelLow},
		{20, LevelModerate},
		{11, LevelModerate},
		{10, LevelHigh},
		{1, LevelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			a := co.Analyze(GameState{Hand: hand("3D", "8B"), Context: gameplay(tt.wall, 3)})
			require.Nil(t, a.Failure)
			assert.True(t, a.IsMyTurn)
			assert.Equal(t, []LegalAction{LegalDraw}, a.LegalActions)
			require.NotNil(t, a.Draw)
			assert.Equal(t, tt.want, a.Draw.Caution)
			assert.Equal(t, tt.wall, a.Draw.WallRemaining)
			assert.Nil(t, a.Discards)
			assert.Nil(t, a.Call)
		})
	}
}

func TestAnalyze_WallGame(t *testing.T) {
	a := newCoordinator(t).Analyze(GameState{Hand: hand("3D", "8B"), Context: gameplay(0, 20)})
	assert.Equal(t, []LegalAction{LegalPass}, a.LegalActions)
}

func TestAnalyze_CompleteHandOnOwnTurn(t *testing.T) {
	full := []string{"1D", "1D", "1D", "joker", "5B", "6B", "7B", "east", "east", "east", "9C", "9C", "white", "north"}
	a := newCoordinator(t).Analyze(GameState{Hand: full, Context: gameplay(40, 5)})

	require.Nil(t, a.Failure)
	assert.True(t, a.Can(LegalDiscard))
	assert.True(t, a.Can(LegalMahjong))
	assert.Equal(t, "scenario", a.TargetPatternID)
	require.NotNil(t, a.Recommendations)
	assert.Equal(t, recommendations.DiagnosticMahjong, a.Recommendations.Diagnostic)
	assert.Len(t, a.Recommendations.DiscardSelection, 1)
	for _, ta := range a.Recommendations.TileActions {
		assert.Equal(t, recommendations.ActionKeep, ta.PrimaryAction, "a complete hand is not broken up")
	}
	require.NotNil(t, a.Outlook)
	assert.Equal(t, 1.0, a.Outlook.CompletionProbability)
}

func TestAnalyze_DiscardRisk(t *testing.T) {
	co := newCoordinator(t)
	a := co.Analyze(GameState{Hand: hand("3D", "south", "2C"), Context: gameplay(40, 9)})

	require.Nil(t, a.Failure)
	assert.Equal(t, []LegalAction{LegalDiscard}, a.LegalActions)
	require.NotEmpty(t, a.Discards)
	assert.LessOrEqual(t, len(a.Discards), co.Policy().MaxDiscardOptions)
	assert.Equal(t, "3D", a.Discards[0].TileID)

	byID := make(map[string]DiscardOption)
	for _, d := range a.Discards {
		byID[d.TileID] = d
		assert.NotEqual(t, tiles.Joker, d.TileID)
	}
	require.Contains(t, byID, "south")
	assert.Greater(t, byID["south"].Risk, byID["3D"].Risk, "late-round honors are riskier")
	assert.Contains(t, byID["south"].Reasoning, "late-round honor")

	for i := 1; i < len(a.Discards); i++ {
		assert.LessOrEqual(t, a.Discards[i-1].Priority, a.Discards[i].Priority)
	}
}

func TestAnalyze_CallForMahjong(t *testing.T) {
	thirteen := []string{"1D", "1D", "1D", "joker", "5B", "6B", "7B", "east", "east", "9C", "9C", "white", "north"}
	a := newCoordinator(t).Analyze(GameState{
		Hand:          thirteen,
		Context:       gameplay(40, 4),
		CurrentPlayer: "p2",
		LastDiscard:   "E",
		LastDiscardBy: "p2",
	})

	require.Nil(t, a.Failure)
	assert.False(t, a.IsMyTurn)
	assert.Equal(t, []LegalAction{LegalMahjong, LegalCall, LegalPass}, a.LegalActions)
	require.NotNil(t, a.Call)
	assert.Equal(t, "east", a.Call.TileID)
	assert.True(t, a.Call.Mahjong)
	assert.True(t, a.Call.Recommended)
	assert.Equal(t, 1.0, a.Call.RatioAfter)
	assert.Nil(t, a.Draw)
}

func TestAnalyze_CallAnalysis(t *testing.T) {
	state := GameState{
		Hand:          hand("3D", "8B"),
		Context:       gameplay(60, 4),
		CurrentPlayer: "p2",
		LastDiscard:   "east",
		LastDiscardBy: "p2",
	}

	t.Run("exposed pung", func(t *testing.T) {
		a := newCoordinator(t).Analyze(state)
		require.NotNil(t, a.Call)
		assert.True(t, a.Can(LegalCall))
		assert.False(t, a.Can(LegalMahjong))
		assert.True(t, a.Call.Callable)
		assert.Equal(t, "winds", a.Call.GroupID)
		assert.Equal(t, catalog.KindPung, a.Call.Kind)
		assert.Greater(t, a.Call.RatioAfter, a.Call.RatioBefore)
		assert.Greater(t, a.Call.Improvement, DefaultPolicy().CallThreshold)
		assert.True(t, a.Call.Recommended, a.Call.Reasoning)
	})

	t.Run("concealed target", func(t *testing.T) {
		p := scenarioPattern()
		p.ConcealedOnly = true
		a := newCoordinator(t, p).Analyze(state)
		require.NotNil(t, a.Call)
		assert.True(t, a.Call.Callable)
		assert.False(t, a.Call.Recommended)
		assert.Contains(t, a.Call.Reasoning, "concealed")
	})

	t.Run("single is never callable", func(t *testing.T) {
		s := state
		s.Hand = []string{"1D", "1D", "5B", "6B", "7B", "east", "east", "9C", "9C", "north", "3D", "8B", "2C"}
		s.LastDiscard = "white"
		a := newCoordinator(t).Analyze(s)
		require.NotNil(t, a.Call)
		assert.False(t, a.Call.Callable)
		assert.False(t, a.Call.Recommended)
		assert.Equal(t, []LegalAction{LegalPass}, a.LegalActions)
	})

	t.Run("jokers are dead", func(t *testing.T) {
		s := state
		s.LastDiscard = "joker"
		a := newCoordinator(t).Analyze(s)
		require.NotNil(t, a.Call)
		assert.False(t, a.Call.Callable)
		assert.Equal(t, []LegalAction{LegalPass}, a.LegalActions)
	})
}

func TestAnalyze_Defense(t *testing.T) {
	ctx := gameplay(30, 9)
	ctx.DiscardPile = []string{"north", "2D"}
	ctx.ExposedTiles = map[string][]analysis.Exposure{
		"p2": {
			{Tiles: []string{"2B", "2B", "2B"}},
			{Tiles: []string{"4B", "4B", "4B"}},
			{Tiles: []string{"6B", "6B", "6B"}},
		},
		"p3": {{Tiles: []string{"3C", "3C", "3C"}}},
	}
	a := newCoordinator(t).Analyze(GameState{Hand: hand("3D", "8B"), Context: ctx})

	d := a.Defense
	assert.Equal(t, LevelHigh, d.ThreatLevel)
	require.Len(t, d.Threats, 2)
	assert.Equal(t, "p2", d.Threats[0].PlayerID)
	assert.Equal(t, LevelHigh, d.Threats[0].Level)
	assert.Equal(t, 3, d.Threats[0].Exposures)
	assert.Equal(t, LevelModerate, d.Threats[1].Level, "one exposure in a late round")

	assert.Contains(t, d.SafeTiles, "north")
	assert.Contains(t, d.DangerousTiles, "9C", "unseen in a late round")
	assert.NotContains(t, d.DangerousTiles, "north")
	assert.NotEmpty(t, d.Advice)
}

func TestAnalyze_QuietTable(t *testing.T) {
	a := newCoordinator(t).Analyze(GameState{Hand: hand("3D", "8B"), Context: gameplay(80, 1)})
	assert.Equal(t, LevelLow, a.Defense.ThreatLevel)
	assert.Empty(t, a.Defense.Threats)
	assert.Empty(t, a.Defense.DangerousTiles)
}

func TestAnalyze_SwitchSuggestion(t *testing.T) {
	co := newCoordinator(t, scenarioPattern(), crackPattern())
	state := GameState{Hand: hand("3D", "8B"), Context: gameplay(60, 3), TargetPatternID: "cracks"}

	early := co.Analyze(state)
	require.Nil(t, early.Failure)
	assert.Equal(t, "cracks", early.TargetPatternID)
	require.NotNil(t, early.Ranking.SwitchAnalysis)
	assert.True(t, early.Ranking.SwitchAnalysis.ShouldSwitch)
	assert.Nil(t, early.Switch, "too early to switch")

	state.TurnsOnTarget = co.Policy().SwitchAfterTurns
	later := co.Analyze(state)
	require.NotNil(t, later.Switch)
	assert.Equal(t, "cracks", later.Switch.FromPatternID)
	assert.Equal(t, "scenario", later.Switch.ToPatternID)
	assert.Greater(t, later.Switch.ScoreGap, 15.0)
}

func TestAnalyze_Failures(t *testing.T) {
	co := newCoordinator(t)

	empty := co.Analyze(GameState{Hand: []string{"zz"}, Context: gameplay(60, 1)})
	require.NotNil(t, empty.Failure)
	assert.Equal(t, analysis.FailureInputValidation, empty.Failure.Kind)
	assert.Equal(t, DiagnosticEmptyHand, empty.Diagnostic)
	assert.Empty(t, empty.LegalActions)

	none := co.Analyze(GameState{Hand: hand("3D"), PatternIDs: []string{"nope"}})
	require.NotNil(t, none.Failure)
	assert.Equal(t, DiagnosticNoCandidates, none.Diagnostic)
	assert.Equal(t, []string{"nope"}, none.UnknownPatterns)

	mixed := co.Analyze(GameState{Hand: hand("3D", "??"), Context: gameplay(60, 1)})
	assert.Nil(t, mixed.Failure)
	assert.Equal(t, []string{"??"}, mixed.Unrecognized)
}

func TestNewRequiresCatalog(t *testing.T) {
	_, err := New(DefaultPolicy(), Components{}, nil)
	assert.Error(t, err)

	p := DefaultPolicy()
	p.WallCritical = p.WallCaution + 1
	cat, err := catalog.New([]catalog.Pattern{scenarioPattern()}, catalog.DefaultMaxVariations)
	require.NoError(t, err)
	_, err = New(p, Components{Catalog: cat}, nil)
	assert.Error(t, err)
}

func TestEnumText(t *testing.T) {
	for a := LegalDraw; a <= LegalPass; a++ {
		text, err := a.MarshalText()
		require.NoError(t, err)
		var back LegalAction
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, a, back)
	}
	var a LegalAction
	assert.Error(t, a.UnmarshalText([]byte("fold")))
	_, err := LegalAction(0).MarshalText()
	assert.Error(t, err)

	var l Level
	require.NoError(t, l.UnmarshalText([]byte("moderate")))
	assert.Equal(t, LevelModerate, l)
	assert.Error(t, l.UnmarshalText([]byte("extreme")))
}
