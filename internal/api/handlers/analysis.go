package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ramonehamilton/NMJL-Companion/internal/api/response"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/engine"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/probability"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/turn"
)

// maxBodyBytes bounds request bodies; a hand with a full table context is a
// few kilobytes.
const maxBodyBytes = 1 << 20

// Analyzer is the engine surface the analysis endpoints use.
type Analyzer interface {
	Match(req engine.Request) engine.Report
	Rank(req engine.Request) engine.Report
	Recommend(req engine.Request) engine.Report
	Analyze(ctx context.Context, req engine.Request) (engine.Report, error)
	Turn(ctx context.Context, state turn.GameState) turn.Analysis
	Probability(req engine.Request, patternID string) probability.Estimate
}

// AnalysisHandler handles hand analysis requests. Engine failures are part of
// the report, so every decodable request gets a 200.
type AnalysisHandler struct {
	engine Analyzer
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(engine Analyzer) *AnalysisHandler {
	return &AnalysisHandler{engine: engine}
}

// ProbabilityRequest is a hand plus the pattern to estimate; an empty
// pattern id selects the top ranked candidate.
type ProbabilityRequest struct {
	engine.Request
	PatternID string `json:"patternId,omitempty"`
}

// Match returns per-pattern facts.
func (h *AnalysisHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	report := h.engine.Match(req)
	response.Analysis(w, report, report.Diagnostic, report.Failure)
}

// Rank returns facts and the ranking.
func (h *AnalysisHandler) Rank(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	report := h.engine.Rank(req)
	response.Analysis(w, report, report.Diagnostic, report.Failure)
}

// Recommend returns facts, ranking and tile recommendations.
func (h *AnalysisHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	report := h.engine.Recommend(req)
	response.Analysis(w, report, report.Diagnostic, report.Failure)
}

// Full runs the cached full analysis.
func (h *AnalysisHandler) Full(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := h.engine.Analyze(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			response.ServiceUnavailable(w, fmt.Errorf("analysis interrupted: %w", err))
			return
		}
		response.InternalError(w, err)
		return
	}
	response.Analysis(w, report, report.Diagnostic, report.Failure)
}

// Turn analyzes one decision point.
func (h *AnalysisHandler) Turn(w http.ResponseWriter, r *http.Request) {
	var state turn.GameState
	if !decodeJSON(w, r, &state) {
		return
	}
	out := h.engine.Turn(r.Context(), state)
	response.Analysis(w, out, out.Diagnostic, out.Failure)
}

// Probability estimates completion odds for one pattern.
func (h *AnalysisHandler) Probability(w http.ResponseWriter, r *http.Request) {
	var req ProbabilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	est := h.engine.Probability(req.Request, req.PatternID)
	response.Analysis(w, est, "", est.Failure)
}

// decodeJSON reads a bounded JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}
