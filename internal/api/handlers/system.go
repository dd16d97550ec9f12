package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ramonehamilton/NMJL-Companion/internal/api/response"
	"github.com/ramonehamilton/NMJL-Companion/internal/cache"
	"github.com/ramonehamilton/NMJL-Companion/internal/metrics"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/storage/models"
	"github.com/ramonehamilton/NMJL-Companion/internal/version"
)

// EngineStatus is the engine surface the system endpoints use.
type EngineStatus interface {
	Catalog() *catalog.Catalog
	PolicyVersion() string
	Metrics() *metrics.AnalysisMetrics
	CacheStats() (cache.Stats, bool)
}

// RunSummarizer reports on the analysis run log.
type RunSummarizer interface {
	RunSummary(ctx context.Context, window time.Duration, topPatterns int) (*models.RunSummary, error)
}

// SystemHandler handles health and metrics requests.
type SystemHandler struct {
	engine EngineStatus
	runs   RunSummarizer
}

// NewSystemHandler creates a new SystemHandler. runs may be nil when no
// store is configured.
func NewSystemHandler(engine EngineStatus, runs RunSummarizer) *SystemHandler {
	return &SystemHandler{engine: engine, runs: runs}
}

// HealthStatus is the response of GET /health.
type HealthStatus struct {
	Status         string       `json:"status"`
	Service        string       `json:"service"`
	Build          version.Info `json:"build"`
	CatalogVersion string       `json:"catalogVersion"`
	Patterns       int          `json:"patterns"`
	PolicyVersion  string       `json:"policyVersion"`
}

// MetricsReport is the response of GET /metrics.
type MetricsReport struct {
	Analysis *metrics.Stats     `json:"analysis"`
	Cache    *cache.Stats       `json:"cache,omitempty"`
	Runs     *models.RunSummary `json:"runs,omitempty"`
}

// Health reports liveness and what the engine is serving.
func (h *SystemHandler) Health(w http.ResponseWriter, _ *http.Request) {
	cat := h.engine.Catalog()
	response.Success(w, HealthStatus{
		Status:         "ok",
		Service:        "nmjl-companion-api",
		Build:          version.Get(),
		CatalogVersion: cat.Version(),
		Patterns:       cat.Len(),
		PolicyVersion:  h.engine.PolicyVersion(),
	})
}

// Metrics returns the engine counters, cache statistics and, with a store,
// the last day of the run log.
func (h *SystemHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	out := MetricsReport{Analysis: h.engine.Metrics().GetStats()}
	if stats, ok := h.engine.CacheStats(); ok {
		out.Cache = &stats
	}
	if h.runs != nil {
		summary, err := h.runs.RunSummary(r.Context(), 24*time.Hour, 5)
		if err != nil {
			response.InternalError(w, err)
			return
		}
		out.Runs = summary
	}
	response.Success(w, out)
}
