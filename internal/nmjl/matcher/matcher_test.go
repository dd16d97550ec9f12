package matcher

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

// scenarioPattern is 1111D (jokers ok), 5B 6B 7B, EEE, 99C, white, north.
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

func scenarioHand() tiles.Hand {
	return tiles.MustHand("1D", "1D", "1D", "joker", "5B", "6B", "7B", "east", "east", "east", "9C", "9C", "white", "north")
}

func TestMatchPattern_CompleteScenario(t *testing.T) {
	hand := scenarioHand()
	facts := MatchPattern(hand, scenarioPattern(), hand.Jokers(), nil)

	require.True(t, facts.Valid)
	assert.Equal(t, 1.0, facts.BestVariation.CompletionRatio)
	assert.Equal(t, 14, facts.BestVariation.MatchedSlots)
	assert.Equal(t, 1, facts.BestVariation.JokersUsed)
	assert.Zero(t, facts.MissingTiles.Total())
	assert.True(t, facts.Complete())
	assert.Len(t, facts.BestVariation.TileContributions, 13, "one contribution per natural tile")

	for _, c := range facts.BestVariation.TileContributions {
		assert.True(t, c.IsRequired)
		assert.Equal(t, !c.CanBeReplaced, c.IsCritical)
	}
	assert.Equal(t, []string{"run"}, facts.GroupsFor("6B"))
	assert.True(t, facts.ContributionsFor("white")[0].IsCritical)
	assert.False(t, facts.ContributionsFor("1D")[0].IsCritical)
}

func TestMatchPattern_JokersGoToEligibleSlots(t *testing.T) {
	// Two 9C and one joker: the pair must use naturals; the joker can only help a pung/kong.
	hand := tiles.MustHand("9C", "9C", "joker", "east", "east")
	facts := MatchPattern(hand, scenarioPattern(), 1, nil)

	require.True(t, facts.Valid)
	assert.Equal(t, 1, facts.BestVariation.JokersUsed)
	assert.Equal(t, 5, facts.BestVariation.MatchedSlots)
	assert.Equal(t, 5, facts.BestVariation.MissingCritical, "run and two singles")
	assert.Equal(t, 4, facts.BestVariation.MissingEligible, "three 1D slots and one east slot left after the joker")

	noJokers := MatchPattern(hand, scenarioPattern(), 0, nil)
	assert.Equal(t, 4, noJokers.BestVariation.MatchedSlots)
	assert.Zero(t, noJokers.BestVariation.JokersUsed)
}

func TestMatchPattern_MissingTilesAvailability(t *testing.T) {
	hand := tiles.MustHand("1D", "1D", "1D", "5B", "6B")
	seen := analysis.Seen{"7B": 4, "north": 3, "white": 2, "9C": 1}

	facts := MatchPattern(hand, scenarioPattern(), 0, seen)
	require.True(t, facts.Valid)

	byTile := make(map[string]MissingTile)
	for _, m := range facts.MissingTiles.All() {
		byTile[m.TileID] = m
	}

	assert.Equal(t, AvailabilityImpossible, byTile["7B"].Availability)
	assert.Equal(t, AvailabilityDifficult, byTile["north"].Availability)
	assert.Equal(t, AvailabilityModerate, byTile["white"].Availability)
	assert.Equal(t, AvailabilityEasy, byTile["east"].Availability)
	assert.Equal(t, 3, byTile["east"].Count)
	assert.Equal(t, AvailabilityDifficult, byTile["1D"].Availability, "one 1D left for one slot")
	assert.Equal(t, 3, byTile["9C"].Remaining)
	assert.Equal(t, 14-facts.BestVariation.MatchedSlots, facts.MissingTiles.Total())
}

func TestMatchPattern_InvalidPattern(t *testing.T) {
	broken := catalog.Pattern{ID: "broken", Groups: []catalog.Group{
		{ID: "G1", Kind: catalog.KindPung, SuitRole: "same_as:nowhere", Values: "3"},
	}}
	facts := MatchPattern(scenarioHand(), broken, 1, nil)

	assert.False(t, facts.Valid)
	assert.Equal(t, 0.0, facts.BestVariation.CompletionRatio)
	require.NotNil(t, facts.Failure)
	assert.Equal(t, analysis.FailureInputValidation, facts.Failure.Kind)

	short := catalog.Pattern{ID: "short", Groups: []catalog.Group{
		{ID: "G1", Kind: catalog.KindPung, SuitRole: catalog.RoleNone, Values: "east", JokersAllowed: true},
	}}
	facts = MatchPattern(scenarioHand(), short, 1, nil)
	assert.False(t, facts.Valid, "patterns that are not 14 tiles are not playable")
	require.NotNil(t, facts.Failure)
}

func TestMatchPattern_EmptyHand(t *testing.T) {
	facts := MatchPattern(tiles.Hand{}, scenarioPattern(), 0, nil)
	require.True(t, facts.Valid)
	assert.Zero(t, facts.BestVariation.CompletionRatio)
	assert.Equal(t, 14, facts.MissingTiles.Total())
	assert.NotNil(t, facts.BestVariation.TileContributions)
}

func builtinEntries(t *testing.T) []catalog.Entry {
	t.Helper()
	c, err := catalog.LoadBuiltin()
	require.NoError(t, err)
	entries, _ := c.Entries(nil)
	return entries
}

func randomHand(r *rand.Rand, size int) tiles.Hand {
	universe := tiles.Universe()
	ids := make([]string, size)
	for i := range ids {
		ids[i] = universe[r.Intn(len(universe))].ID
	}
	return tiles.MustHand(ids...)
}

func TestMatch_Properties(t *testing.T) {
	entries := builtinEntries(t)
	m := New(nil)
	r := rand.New(rand.NewSource(7))
	universe := tiles.Universe()

	for trial := 0; trial < 60; trial++ {
		hand := randomHand(r, 1+r.Intn(14))
		jokers := hand.Jokers()
		extra := universe[r.Intn(len(universe))].ID
		bigger := hand.With(extra)

		for _, e := range entries {
			facts := m.Match(hand, e, jokers, nil)
			bv := facts.BestVariation

			if bv.CompletionRatio < 0 || bv.CompletionRatio > 1 {
				t.Fatalf("%s: ratio %f out of range", e.Pattern.ID, bv.CompletionRatio)
			}
			if bv.JokersUsed > jokers {
				t.Fatalf("%s: used %d jokers with %d available", e.Pattern.ID, bv.JokersUsed, jokers)
			}
			used := make(map[string]int)
			for _, c := range bv.TileContributions {
				used[c.TileID]++
			}
			for id, n := range used {
				if n > hand.Count(id) {
					t.Fatalf("%s: %d contributions of %s with %d held", e.Pattern.ID, n, id, hand.Count(id))
				}
			}

			grown := m.Match(bigger, e, bigger.Jokers(), nil)
			if grown.BestVariation.CompletionRatio < bv.CompletionRatio {
				t.Fatalf("%s: ratio fell from %f to %f after adding %s to %s",
					e.Pattern.ID, bv.CompletionRatio, grown.BestVariation.CompletionRatio, extra, hand)
			}
		}
	}
}

func TestMatch_Deterministic(t *testing.T) {
	entries := builtinEntries(t)
	m := New(nil)
	hand := tiles.MustHand("2D", "2D", "white", "5D", "2B", "2B", "flower", "flower", "joker", "4B", "4B", "6C", "8C", "north")
	seen := analysis.Seen{"2C": 2}

	first := m.MatchAll(hand, entries, hand.Jokers(), seen)
	second := m.MatchAll(hand, entries, hand.Jokers(), seen)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("matching the same input twice produced different facts")
	}
}

func TestClassifyAvailability(t *testing.T) {
	tests := []struct {
		remaining, needed int
		want              AvailabilityTier
	}{
		{0, 1, AvailabilityImpossible},
		{1, 1, AvailabilityDifficult},
		{2, 3, AvailabilityDifficult},
		{2, 1, AvailabilityModerate},
		{3, 1, AvailabilityEasy},
		{6, 2, AvailabilityEasy},
	}
	for _, tt := range tests {
		if got := ClassifyAvailability(tt.remaining, tt.needed); got != tt.want {
			t.Errorf("ClassifyAvailability(%d, %d) = %s, want %s", tt.remaining, tt.needed, got, tt.want)
		}
	}
}
