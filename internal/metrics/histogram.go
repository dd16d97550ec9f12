package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultSamples is the sample window used when a histogram is created with
// a non-positive size.
const DefaultSamples = 10000

// Histogram keeps a sliding window of durations, in milliseconds, and
// reports percentiles over it.
type Histogram struct {
	mu      sync.RWMutex
	samples []float64
	maxSize int
}

// NewHistogram creates a histogram holding up to maxSize samples.
func NewHistogram(maxSize int) *Histogram {
	if maxSize <= 0 {
		maxSize = DefaultSamples
	}
	return &Histogram{samples: make([]float64, 0, min(maxSize, 1024)), maxSize: maxSize}
}

// Record adds a sample. When the window is full the oldest fifth is dropped
// so trimming does not happen on every call.
func (h *Histogram) Record(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000

	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, ms)
	if len(h.samples) > h.maxSize {
		h.samples = append(h.samples[:0], h.samples[max(1, h.maxSize/5):]...)
	}
}

// Since records the time elapsed since start.
func (h *Histogram) Since(start time.Time) {
	h.Record(time.Since(start))
}

// Count returns the number of samples in the window.
func (h *Histogram) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// Percentile returns the p-th percentile (0-100), interpolating linearly
// between neighbouring samples.
func (h *Histogram) Percentile(p float64) float64 {
	return percentile(h.sorted(), p)
}

// Stats summarizes the window with one sort.
func (h *Histogram) Stats() LatencyStats {
	s := h.sorted()
	if len(s) == 0 {
		return LatencyStats{}
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return LatencyStats{
		Mean:  round3(sum / float64(len(s))),
		P50:   round3(percentile(s, 50)),
		P95:   round3(percentile(s, 95)),
		P99:   round3(percentile(s, 99)),
		Min:   s[0],
		Max:   s[len(s)-1],
		Count: len(s),
	}
}

// Reset clears the window.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
}

func (h *Histogram) sorted() []float64 {
	h.mu.RLock()
	s := make([]float64, len(h.samples))
	copy(s, h.samples)
	h.mu.RUnlock()
	sort.Float64s(s)
	return s
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
