package engine

import (
	"time"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/matcher"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/opponent"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/ranking"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/recommendations"
)

// Diagnostic labels for requests the engine rejects before any stage runs.
const (
	DiagnosticEmptyHand    = "empty_hand"
	DiagnosticNoCandidates = "no_candidates"
	DiagnosticEngine       = "engine_failure"
)

// Request is one hand to analyze.
type Request struct {
	Hand []string `json:"hand"`
	// PatternIDs restricts the candidates; empty means the whole catalog.
	PatternIDs []string `json:"patternIds,omitempty"`
	// Context defaults to a fresh charleston when nil.
	Context         *analysis.GameContext `json:"context,omitempty"`
	TargetPatternID string                `json:"targetPatternId,omitempty"`
	PlayerID        string                `json:"playerId,omitempty"`
	// SessionID tags published events; it does not affect the result.
	SessionID string `json:"sessionId,omitempty"`
}

// context returns the table state with the phase normalized: anything other
// than gameplay is the charleston.
func (r Request) context() analysis.GameContext {
	if r.Context == nil {
		return analysis.DefaultContext()
	}
	c := *r.Context
	if c.Phase != analysis.PhaseGameplay {
		c.Phase = analysis.PhaseCharleston
	}
	return c
}

func (r Request) player() string {
	if r.PlayerID == "" {
		return analysis.Self
	}
	return r.PlayerID
}

// Report is the result of one pipeline run. Later stages are empty when the
// request asked for an earlier stage only.
type Report struct {
	RunID           string                   `json:"runId"`
	HandSignature   string                   `json:"handSignature"`
	Hand            []string                 `json:"hand"`
	Jokers          int                      `json:"jokers"`
	CatalogVersion  string                   `json:"catalogVersion"`
	PolicyVersion   string                   `json:"policyVersion"`
	Facts           []matcher.Facts          `json:"facts"`
	Ranking         *ranking.Result          `json:"ranking,omitempty"`
	Opponents       []opponent.Model         `json:"opponents,omitempty"`
	Recommendations *recommendations.Results `json:"recommendations,omitempty"`
	UnknownPatterns []string                 `json:"unknownPatterns,omitempty"`
	Unrecognized    []string                 `json:"unrecognized,omitempty"`
	CacheHit        bool                     `json:"cacheHit"`
	Duration        time.Duration            `json:"duration"`
	Diagnostic      string                   `json:"diagnostic,omitempty"`
	Failure         *analysis.Failure        `json:"failure,omitempty"`
}

// Top returns the best ranked pattern, if the report was ranked.
func (r Report) Top() (ranking.RankedPattern, bool) {
	if r.Ranking == nil {
		return ranking.RankedPattern{}, false
	}
	return r.Ranking.Top()
}

// Failed reports whether the run produced no usable analysis.
func (r Report) Failed() bool {
	return r.Failure != nil && r.Failure.Kind != analysis.FailurePartial
}

// partialFailures counts contained anomalies across stages.
func (r Report) partialFailures() int {
	n := 0
	for _, f := range r.Facts {
		if !f.Valid {
			n++
		}
	}
	if r.Recommendations != nil {
		n += len(r.Recommendations.Anomalies)
	}
	return n
}

// stage is how far a pipeline run goes.
type stage int

const (
	stageMatch stage = iota + 1
	stageRank
	stageRecommend
)
