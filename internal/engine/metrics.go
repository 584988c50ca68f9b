package engine

import (
	"github.com/VictoriaMetrics/metrics"
)

// PrecacheMetrics holds the VictoriaMetrics collectors a precache event
// updates. One set is shared process-wide; Engine owns it.
type PrecacheMetrics struct {
	BytesQueued          *metrics.Histogram
	BytesRead             *metrics.Histogram
	SegmentsRead          *metrics.Counter
	BudgetExceededTotal   *metrics.Counter
	ExtentEnumerateErrors *metrics.Counter
	ResolveMisses         *metrics.Counter
}

// NewPrecacheMetrics returns the process-wide metrics set, registering its
// collectors on the first call; later calls get the same collectors back.
// Engine uses it internally; cmd/precache-dir calls it directly since it
// wires a DirectoryWalker rather than an Engine.
func NewPrecacheMetrics() *PrecacheMetrics {
	return &PrecacheMetrics{
		BytesQueued:           metrics.GetOrCreateHistogram("precache_bytes_queued"),
		BytesRead:             metrics.GetOrCreateHistogram("precache_bytes_read"),
		SegmentsRead:          metrics.GetOrCreateCounter("precache_segments_read_total"),
		BudgetExceededTotal:   metrics.GetOrCreateCounter("precache_budget_exceeded_total"),
		ExtentEnumerateErrors: metrics.GetOrCreateCounter("precache_extent_enumerate_errors_total"),
		ResolveMisses:         metrics.GetOrCreateCounter("precache_resolve_misses_total"),
	}
}
