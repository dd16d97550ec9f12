package recommendations

import (
	"fmt"
	"strings"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
)

// Action is what to do with a tile.
type Action int

const (
	ActionKeep Action = iota + 1
	ActionPass
	ActionDiscard
	ActionNeutral
)

var actionNames = map[Action]string{
	ActionKeep:    "keep",
	ActionPass:    "pass",
	ActionDiscard: "discard",
	ActionNeutral: "neutral",
}

func (a Action) String() string { return enumString(actionNames, a, "action") }

// IsRelease reports whether the action gives the tile away.
func (a Action) IsRelease() bool { return a == ActionPass || a == ActionDiscard }

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) { return enumMarshal(actionNames, a, "action") }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error { return enumUnmarshal(actionNames, a, text, "action") }

// DangerType classifies a warning attached to a tile action.
type DangerType int

const (
	DangerPatternDestruction DangerType = iota + 1
	DangerOpponentFeeding
	DangerWallDepletion
	DangerStrategicError
)

var dangerNames = map[DangerType]string{
	DangerPatternDestruction: "pattern_destruction",
	DangerOpponentFeeding:    "opponent_feeding",
	DangerWallDepletion:      "wall_depletion",
	DangerStrategicError:     "strategic_error",
}

func (d DangerType) String() string { return enumString(dangerNames, d, "danger") }

// MarshalText implements encoding.TextMarshaler.
func (d DangerType) MarshalText() ([]byte, error) { return enumMarshal(dangerNames, d, "danger") }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DangerType) UnmarshalText(text []byte) error {
	return enumUnmarshal(dangerNames, d, text, "danger")
}

// Severity grades a danger.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

var severityNames = map[Severity]string{
	SeverityLow:    "low",
	SeverityMedium: "medium",
	SeverityHigh:   "high",
}

func (s Severity) String() string { return enumString(severityNames, s, "severity") }

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) { return enumMarshal(severityNames, s, "severity") }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	return enumUnmarshal(severityNames, s, text, "severity")
}

func enumString[T ~int](names map[T]string, v T, kind string) string {
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("%s(%d)", kind, int(v))
}

func enumMarshal[T ~int](names map[T]string, v T, kind string) ([]byte, error) {
	n, ok := names[v]
	if !ok {
		return nil, fmt.Errorf("invalid %s %d", kind, int(v))
	}
	return []byte(n), nil
}

func enumUnmarshal[T ~int](names map[T]string, v *T, text []byte, kind string) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for k, n := range names {
		if n == name {
			*v = k
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", kind, text)
}

// Danger is a warning about what an action could cost.
type Danger struct {
	Type     DangerType `json:"type"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Impact   string     `json:"impact"`
}

// ContextualActions is the advice for one tile in each decision context,
// computed independently of the current phase.
type ContextualActions struct {
	Charleston Action `json:"charleston"`
	Gameplay   Action `json:"gameplay"`
	Exposition Action `json:"exposition"`
}

// TileAction is the recommendation for one distinct tile id.
//
// Priority is how strongly to hold the tile, from 1 (release first) to 10
// (never release). Release is how many held copies the pass or discard
// selection includes; Surplus is how many copies no pattern needs.
type TileAction struct {
	TileID            string            `json:"tileId"`
	Count             int               `json:"count"`
	PrimaryAction     Action            `json:"primaryAction"`
	Confidence        float64           `json:"confidence"`
	Priority          int               `json:"priority"`
	Tier              int               `json:"tier"`
	Surplus           int               `json:"surplus"`
	Release           int               `json:"release"`
	ContextualActions ContextualActions `json:"contextualActions"`
	PatternsHelped    []string          `json:"patternsHelped"`
	MultiPatternValue float64           `json:"multiPatternValue"`
	Reasoning         string            `json:"reasoning"`
	Dangers           []Danger          `json:"dangers"`
}

// HasDanger reports whether the action carries a danger of type d.
func (t TileAction) HasDanger(d DangerType) bool {
	for _, x := range t.Dangers {
		if x.Type == d {
			return true
		}
	}
	return false
}

// Results is the full recommendation for one hand.
type Results struct {
	Phase            analysis.Phase     `json:"phase"`
	TargetPatternID  string             `json:"targetPatternId,omitempty"`
	TileActions      []TileAction       `json:"tileActions"`
	KeepTiles        []string           `json:"keepTiles"`
	PassSelection    []string           `json:"passSelection"`
	DiscardSelection []string           `json:"discardSelection"`
	StrategicAdvice  []string           `json:"strategicAdvice"`
	Anomalies        []analysis.Failure `json:"anomalies,omitempty"`
	Failed           bool               `json:"failed"`
	Diagnostic       string             `json:"diagnostic,omitempty"`
	Failure          *analysis.Failure  `json:"failure,omitempty"`
}

// Action returns the action for a tile id.
func (r Results) Action(tileID string) (TileAction, bool) {
	for _, a := range r.TileActions {
		if a.TileID == tileID {
			return a, true
		}
	}
	return TileAction{}, false
}
