package models

import "time"

// AnalysisRun is one completed full analysis.
type AnalysisRun struct {
	RunID         string    `json:"runId"`
	SessionID     string    `json:"sessionId,omitempty"` // Empty outside live sessions
	HandSignature string    `json:"handSignature"`
	TopPatternID  string    `json:"topPatternId,omitempty"` // Empty when nothing was ranked
	TopScore      float64   `json:"topScore"`
	TopTier       string    `json:"topTier,omitempty"`
	Viable        int       `json:"viable"`
	CacheHit      bool      `json:"cacheHit"`
	DurationMS    int64     `json:"durationMs"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PatternFrequency counts how often a pattern ranked first.
type PatternFrequency struct {
	PatternID string  `json:"patternId"`
	Runs      int     `json:"runs"`
	AvgScore  float64 `json:"avgScore"`
}

// RunSummary aggregates the run log.
type RunSummary struct {
	Runs          int                `json:"runs"`
	CacheHits     int                `json:"cacheHits"`
	AvgDurationMS float64            `json:"avgDurationMs"`
	TopPatterns   []PatternFrequency `json:"topPatterns"`
}
