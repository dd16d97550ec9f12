package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ramonehamilton/NMJL-Companion/internal/api/response"
	"github.com/ramonehamilton/NMJL-Companion/internal/storage/models"
)

// RunLister reads the analysis run log.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]*models.AnalysisRun, error)
}

// RunHandler serves the analysis run log.
type RunHandler struct {
	runs RunLister
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runs RunLister) *RunHandler {
	return &RunHandler{runs: runs}
}

// Recent returns the newest runs (?limit=50).
func (h *RunHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		response.BadRequest(w, errors.New("limit must be between 1 and 500"))
		return
	}
	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		response.InternalError(w, err)
		return
	}

	// Return empty array instead of nil
	if runs == nil {
		runs = []*models.AnalysisRun{}
	}
	response.Success(w, runs)
}
