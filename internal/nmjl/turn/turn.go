// Package turn coordinates the per-turn decisions of live play: which actions
// are legal, what to draw or discard, whether to call the last discard, how
// dangerous the table is, and when to abandon the current target.
package turn

import (
	"fmt"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/probability"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/ranking"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/recommendations"
)

// LegalAction is an action the player may take right now.
type LegalAction int

const (
	LegalDraw LegalAction = iota + 1
	LegalDiscard
	LegalCall
	LegalMahjong
	LegalPass
)

var legalNames = [...]string{
	LegalDraw:    "draw",
	LegalDiscard: "discard",
	LegalCall:    "call",
	LegalMahjong: "mahjong",
	LegalPass:    "pass",
}

func (a LegalAction) String() string {
	if a >= LegalDraw && a <= LegalPass {
		return legalNames[a]
	}
	return fmt.Sprintf("legal_action(%d)", int(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a LegalAction) MarshalText() ([]byte, error) {
	if a < LegalDraw || a > LegalPass {
		return nil, fmt.Errorf("invalid legal action %d", int(a))
	}
	return []byte(legalNames[a]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *LegalAction) UnmarshalText(text []byte) error {
	for i := LegalDraw; i <= LegalPass; i++ {
		if legalNames[i] == string(text) {
			*a = i
			return nil
		}
	}
	return fmt.Errorf("unknown legal action %q", text)
}

// Level grades draw caution and table threat.
type Level int

const (
	LevelLow Level = iota + 1
	LevelModerate
	LevelHigh
)

var levelNames = [...]string{
	LevelLow:      "low",
	LevelModerate: "moderate",
	LevelHigh:     "high",
}

func (l Level) String() string {
	if l >= LevelLow && l <= LevelHigh {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l < LevelLow || l > LevelHigh {
		return nil, fmt.Errorf("invalid level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	for i := LevelLow; i <= LevelHigh; i++ {
		if levelNames[i] == string(text) {
			*l = i
			return nil
		}
	}
	return fmt.Errorf("unknown level %q", text)
}

// GameState is one player's view of the table at a decision point.
type GameState struct {
	Hand    []string             `json:"hand"`
	Context analysis.GameContext `json:"context"`
	// PlayerID is the analyzed player; empty means analysis.Self.
	PlayerID string `json:"playerId,omitempty"`
	// CurrentPlayer is whose turn it is; empty means the analyzed player.
	CurrentPlayer string `json:"currentPlayer,omitempty"`
	LastDiscard   string `json:"lastDiscard,omitempty"`
	LastDiscardBy string `json:"lastDiscardBy,omitempty"`
	// TargetPatternID is the pattern being built; empty means the top ranked one.
	TargetPatternID string `json:"targetPatternId,omitempty"`
	TurnsOnTarget   int    `json:"turnsOnTarget"`
	// PatternIDs restricts the candidates; empty means the whole catalog.
	PatternIDs []string `json:"patternIds,omitempty"`
}

func (s GameState) player() string {
	if s.PlayerID == "" {
		return analysis.Self
	}
	return s.PlayerID
}

func (s GameState) isMyTurn() bool {
	return s.CurrentPlayer == "" || s.CurrentPlayer == s.player()
}

// DrawAdvice is the outlook before drawing from the wall.
type DrawAdvice struct {
	Caution       Level  `json:"caution"`
	WallRemaining int    `json:"wallRemaining"`
	DrawsLeft     int    `json:"drawsLeft"`
	Message       string `json:"message"`
}

// DiscardOption is one candidate discard, best first.
type DiscardOption struct {
	TileID      string                   `json:"tileId"`
	Priority    int                      `json:"priority"`
	Confidence  float64                  `json:"confidence"`
	Risk        float64                  `json:"risk"`
	FeedsPlayer string                   `json:"feedsPlayer,omitempty"`
	Reasoning   string                   `json:"reasoning"`
	Dangers     []recommendations.Danger `json:"dangers"`
}

// CallAnalysis compares the target pattern with and without the last discard.
type CallAnalysis struct {
	TileID      string       `json:"tileId"`
	PatternID   string       `json:"patternId"`
	GroupID     string       `json:"groupId,omitempty"`
	Kind        catalog.Kind `json:"kind,omitempty"`
	Callable    bool         `json:"callable"`
	Mahjong     bool         `json:"mahjong"`
	Recommended bool         `json:"recommended"`
	RatioBefore float64      `json:"ratioBefore"`
	RatioAfter  float64      `json:"ratioAfter"`
	ScoreBefore float64      `json:"scoreBefore"`
	ScoreAfter  float64      `json:"scoreAfter"`
	Improvement float64      `json:"improvement"`
	Reasoning   string       `json:"reasoning"`
}

// Threat is one opponent's visible progress.
type Threat struct {
	PlayerID  string   `json:"playerId"`
	Exposures int      `json:"exposures"`
	Level     Level    `json:"level"`
	Clues     []string `json:"clues,omitempty"`
}

// Defense summarizes how careful discards need to be.
type Defense struct {
	ThreatLevel    Level    `json:"threatLevel"`
	Threats        []Threat `json:"threats"`
	SafeTiles      []string `json:"safeTiles"`
	DangerousTiles []string `json:"dangerousTiles"`
	Advice         string   `json:"advice"`
}

// SwitchSuggestion proposes abandoning the current target.
type SwitchSuggestion struct {
	FromPatternID string  `json:"fromPatternId"`
	ToPatternID   string  `json:"toPatternId"`
	ScoreGap      float64 `json:"scoreGap"`
	Reasoning     string  `json:"reasoning"`
}

// Analysis is the coordinator's answer for one decision point. Draw is set on
// the player's own turn before drawing, Discards after drawing, and Call when
// another player's discard is on the table.
type Analysis struct {
	PlayerID        string                   `json:"playerId"`
	IsMyTurn        bool                     `json:"isMyTurn"`
	TargetPatternID string                   `json:"targetPatternId,omitempty"`
	LegalActions    []LegalAction            `json:"legalActions"`
	Draw            *DrawAdvice              `json:"draw,omitempty"`
	Discards        []DiscardOption          `json:"discards,omitempty"`
	Call            *CallAnalysis            `json:"call,omitempty"`
	Defense         Defense                  `json:"defense"`
	Switch          *SwitchSuggestion        `json:"switch,omitempty"`
	Outlook         *probability.Estimate    `json:"outlook,omitempty"`
	Ranking         ranking.Result           `json:"ranking"`
	Recommendations *recommendations.Results `json:"recommendations,omitempty"`
	UnknownPatterns []string                 `json:"unknownPatterns,omitempty"`
	Unrecognized    []string                 `json:"unrecognized,omitempty"`
	Diagnostic      string                   `json:"diagnostic,omitempty"`
	Failure         *analysis.Failure        `json:"failure,omitempty"`
}

// Can reports whether a is among the legal actions.
func (a Analysis) Can(action LegalAction) bool {
	for _, x := range a.LegalActions {
		if x == action {
			return true
		}
	}
	return false
}
