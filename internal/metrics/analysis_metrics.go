// Package metrics collects in-process counters and latency histograms for the
// analysis engine and its API.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stage names a timed pipeline stage.
type Stage string

const (
	StageMatch     Stage = "match"
	StageRank      Stage = "rank"
	StageRecommend Stage = "recommend"
	StageTurn      Stage = "turn"
	StageScan      Stage = "scan"
)

// AnalysisMetrics tracks engine throughput and latency. The zero value is not
// usable; create one with NewAnalysisMetrics.
type AnalysisMetrics struct {
	// Latency histograms (milliseconds)
	MatchLatency     *Histogram
	RankLatency      *Histogram
	RecommendLatency *Histogram
	TurnLatency      *Histogram
	ScanLatency      *Histogram

	Scans           atomic.Uint64
	CacheHits       atomic.Uint64
	CacheMisses     atomic.Uint64
	Cancellations   atomic.Uint64
	Failures        atomic.Uint64
	PartialFailures atomic.Uint64
	APIRequests     atomic.Uint64
	APIErrors       atomic.Uint64

	mu        sync.RWMutex
	startTime time.Time
}

// NewAnalysisMetrics creates a collector with DefaultSamples-sized windows.
func NewAnalysisMetrics() *AnalysisMetrics {
	return &AnalysisMetrics{
		MatchLatency:     NewHistogram(DefaultSamples),
		RankLatency:      NewHistogram(DefaultSamples),
		RecommendLatency: NewHistogram(DefaultSamples),
		TurnLatency:      NewHistogram(DefaultSamples),
		ScanLatency:      NewHistogram(DefaultSamples),
		startTime:        time.Now(),
	}
}

// Observe records a stage duration. Unknown stages are ignored.
func (m *AnalysisMetrics) Observe(stage Stage, d time.Duration) {
	if h := m.histogram(stage); h != nil {
		h.Record(d)
	}
}

func (m *AnalysisMetrics) histogram(stage Stage) *Histogram {
	switch stage {
	case StageMatch:
		return m.MatchLatency
	case StageRank:
		return m.RankLatency
	case StageRecommend:
		return m.RecommendLatency
	case StageTurn:
		return m.TurnLatency
	case StageScan:
		return m.ScanLatency
	}
	return nil
}

// CacheResult counts one cache lookup.
func (m *AnalysisMetrics) CacheResult(hit bool) {
	if hit {
		m.CacheHits.Add(1)
		return
	}
	m.CacheMisses.Add(1)
}

// Stats is a point-in-time snapshot.
type Stats struct {
	MatchLatency     LatencyStats `json:"match_latency"`
	RankLatency      LatencyStats `json:"rank_latency"`
	RecommendLatency LatencyStats `json:"recommend_latency"`
	TurnLatency      LatencyStats `json:"turn_latency"`
	ScanLatency      LatencyStats `json:"scan_latency"`

	Scans           uint64  `json:"scans"`
	CacheHits       uint64  `json:"cache_hits"`
	CacheMisses     uint64  `json:"cache_misses"`
	CacheHitRate    float64 `json:"cache_hit_rate"` // percentage
	Cancellations   uint64  `json:"cancellations"`
	Failures        uint64  `json:"failures"`
	PartialFailures uint64  `json:"partial_failures"`
	APIRequests     uint64  `json:"api_requests"`
	APIErrors       uint64  `json:"api_errors"`
	APISuccessRate  float64 `json:"api_success_rate"` // percentage

	Uptime string `json:"uptime"`
}

// LatencyStats summarizes one histogram, in milliseconds.
type LatencyStats struct {
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// GetStats returns a snapshot of the current statistics.
func (m *AnalysisMetrics) GetStats() *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits, misses := m.CacheHits.Load(), m.CacheMisses.Load()
	requests, errs := m.APIRequests.Load(), m.APIErrors.Load()

	s := &Stats{
		MatchLatency:     m.MatchLatency.Stats(),
		RankLatency:      m.RankLatency.Stats(),
		RecommendLatency: m.RecommendLatency.Stats(),
		TurnLatency:      m.TurnLatency.Stats(),
		ScanLatency:      m.ScanLatency.Stats(),
		Scans:            m.Scans.Load(),
		CacheHits:        hits,
		CacheMisses:      misses,
		Cancellations:    m.Cancellations.Load(),
		Failures:         m.Failures.Load(),
		PartialFailures:  m.PartialFailures.Load(),
		APIRequests:      requests,
		APIErrors:        errs,
		Uptime:           time.Since(m.startTime).Round(time.Second).String(),
	}
	if hits+misses > 0 {
		s.CacheHitRate = float64(hits) / float64(hits+misses) * 100
	}
	if requests > 0 {
		s.APISuccessRate = float64(requests-errs) / float64(requests) * 100
	}
	return s
}

// Reset clears every counter and histogram.
func (m *AnalysisMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range []*Histogram{m.MatchLatency, m.RankLatency, m.RecommendLatency, m.TurnLatency, m.ScanLatency} {
		h.Reset()
	}
	for _, c := range []*atomic.Uint64{
		&m.Scans, &m.CacheHits, &m.CacheMisses, &m.Cancellations,
		&m.Failures, &m.PartialFailures, &m.APIRequests, &m.APIErrors,
	} {
		c.Store(0)
	}
	m.startTime = time.Now()
}
