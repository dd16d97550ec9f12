package analysis

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameContextSeen(t *testing.T) {
	ctx := GameContext{
		Phase:       PhaseGameplay,
		DiscardPile: []string{"1D", "1d", "east", "joker", "bogus"},
		ExposedTiles: map[string][]Exposure{
			"p2": {{Tiles: []string{"5B", "5B", "joker"}}},
			"p3": {{Tiles: []string{"1D", "1D", "1D"}}},
		},
	}

	seen := ctx.Seen()
	assert.Equal(t, 5, seen["1D"])
	assert.Equal(t, 1, seen["east"])
	assert.Equal(t, 2, seen["5B"])
	assert.Zero(t, seen["joker"], "jokers are not tracked as seen naturals")

	assert.Equal(t, 2, ctx.DiscardCount("1D"))
	assert.True(t, ctx.HasExposures("p2"))
	assert.False(t, ctx.HasExposures("p4"))
}

func TestSeenRemaining(t *testing.T) {
	seen := Seen{"1D": 3, "flower": 2}

	assert.Equal(t, 0, seen.Remaining("1D", 1))
	assert.Equal(t, 0, seen.Remaining("1D", 3), "never negative")
	assert.Equal(t, 4, seen.Remaining("2D", 0))
	assert.Equal(t, 5, seen.Remaining("flower", 1))
	assert.Equal(t, 0, seen.Remaining("nonsense", 0))
}

func TestPhaseJSON(t *testing.T) {
	var ctx GameContext
	require.NoError(t, json.Unmarshal([]byte(`{"phase":"gameplay","wallTilesRemaining":40}`), &ctx))
	assert.Equal(t, PhaseGameplay, ctx.Phase)

	err := json.Unmarshal([]byte(`{"phase":"endgame"}`), &ctx)
	assert.Error(t, err)

	out, err := json.Marshal(DefaultContext())
	require.NoError(t, err)
	assert.Contains(t, string(out), `"phase":"charleston"`)
}

func TestFailure(t *testing.T) {
	f := NewFailure(FailureInputValidation, "pattern 7", ErrInvalidPattern)
	assert.Equal(t, "input_validation: pattern 7: invalid pattern", f.Error())

	var out Failure
	func() {
		defer Recover("ranking", &out)
		panic("boom")
	}()
	assert.Equal(t, FailureEngine, out.Kind)
	assert.Equal(t, "ranking", out.Subject)
	assert.Contains(t, out.Message, "boom")

	wrapped := errors.Join(ErrNoCandidates)
	assert.ErrorIs(t, wrapped, ErrNoCandidates)
}

func TestGameContextPlayers(t *testing.T) {
	ctx := GameContext{
		ExposedTiles: map[string][]Exposure{"p3": {{Tiles: []string{"1D", "1D", "1D"}}}},
		PlayerActions: []PlayerAction{
			{PlayerID: "p2", Action: ActionDiscard, TileID: "east", Turn: 1},
			{PlayerID: "p2", Action: ActionDiscard, TileID: "9C", Turn: 5},
			{PlayerID: "p4", Action: ActionCall, TileID: "1D", Turn: 2},
		},
	}

	assert.Equal(t, []string{"p2", "p3", "p4"}, ctx.Players())
	discards := ctx.ActionsBy("p2", ActionDiscard)
	require.Len(t, discards, 2)
	assert.Equal(t, "east", discards[0].TileID)
	assert.Empty(t, ctx.ActionsBy("p3", ActionDiscard))
}
