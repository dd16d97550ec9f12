package events

import "time"

// Event types.
const (
	TypeAnalysisCompleted = "analysis:completed"
	TypeAnalysisFailed    = "analysis:failed"
	TypeScanCancelled     = "scan:cancelled"
	TypeTurnAnalyzed      = "turn:analyzed"
	TypePolicyReloaded    = "policy:reloaded"
	TypeCatalogUpdated    = "catalog:updated"
)

// AnalysisCompletedEvent is the payload for analysis:completed.
type AnalysisCompletedEvent struct {
	RunID         string        `json:"runId"`
	SessionID     string        `json:"sessionId,omitempty"`
	HandSignature string        `json:"handSignature"`
	TopPatternID  string        `json:"topPatternId,omitempty"`
	TopScore      float64       `json:"topScore"`
	TopTier       string        `json:"topTier,omitempty"`
	Viable        int           `json:"viable"`
	CacheHit      bool          `json:"cacheHit"`
	Duration      time.Duration `json:"duration"`
	// Report is the full analysis; observers that only need the summary can
	// ignore it.
	Report any `json:"report,omitempty"`
}

// AnalysisFailedEvent is the payload for analysis:failed.
type AnalysisFailedEvent struct {
	RunID      string `json:"runId"`
	SessionID  string `json:"sessionId,omitempty"`
	Kind       string `json:"kind"`
	Diagnostic string `json:"diagnostic"`
	Message    string `json:"message"`
}

// ScanCancelledEvent is the payload for scan:cancelled.
type ScanCancelledEvent struct {
	SessionID string `json:"sessionId,omitempty"`
	Seq       uint64 `json:"seq"`
	Reason    string `json:"reason"`
}

// TurnAnalyzedEvent is the payload for turn:analyzed.
type TurnAnalyzedEvent struct {
	PlayerID     string   `json:"playerId"`
	TargetID     string   `json:"targetId,omitempty"`
	LegalActions []string `json:"legalActions"`
	ThreatLevel  string   `json:"threatLevel"`
}

// PolicyReloadedEvent is the payload for policy:reloaded.
type PolicyReloadedEvent struct {
	Version string `json:"version"`
	Source  string `json:"source"`
}

// CatalogUpdatedEvent is the payload for catalog:updated.
type CatalogUpdatedEvent struct {
	Version  string `json:"version"`
	Patterns int    `json:"patterns"`
	Source   string `json:"source"`
}
