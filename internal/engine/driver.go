package engine

import (
	"os"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// PrecacheDriver orchestrates EQ → SP sort → RD (§4.5): enforce a byte
// budget on logical file sizes before enumerating any extents, sort the
// resulting segment pool, then stream it with the per-file reader.
type PrecacheDriver struct {
	resolver    *Resolver
	metrics     *PrecacheMetrics
	limitBytes  int64
	syncFirst   bool
}

// NewPrecacheDriver constructs a driver bound to r for back-path
// resolution. limitBytes and syncFirst come from Config (§6).
func NewPrecacheDriver(r *Resolver, m *PrecacheMetrics, limitBytes int64, syncFirst bool) *PrecacheDriver {
	return &PrecacheDriver{resolver: r, metrics: m, limitBytes: limitBytes, syncFirst: syncFirst}
}

// Run executes one precache event over paths, returning the number of
// files actually queued and the total bytes read. progress, if non-nil,
// is invoked at phase boundaries.
func (d *PrecacheDriver) Run(paths []string, progress ProgressFunc) (queued int, bytesRead int64) {
	runID := uuid.New().String()
	GetLogger().Debugf("precache run %s starting over %d candidate paths", runID, len(paths))

	if d.syncFirst {
		unix.Sync()
	}

	pool := NewSegmentPool()
	defer pool.Free()

	var cumulative int64
	total := len(paths)
	for i, p := range paths {
		if progress != nil {
			progress(ProgressEvent{Phase: PhaseMapping, Current: i, Total: total})
		}

		st, err := os.Lstat(p)
		if err != nil {
			continue
		}
		size := st.Size()

		if cumulative+size > d.limitBytes {
			if d.metrics != nil {
				d.metrics.BudgetExceededTotal.Inc()
			}
			GetLogger().Debugf("precache run %s: budget exceeded, stopping at %s", runID, p)
			break
		}
		cumulative += size
		queued++

		segments, _ := enumerateExtents(d.resolver, p)
		if len(segments) == 0 && d.metrics != nil {
			d.metrics.ExtentEnumerateErrors.Inc()
		}
		pool.Append(segments...)
	}

	if d.metrics != nil {
		d.metrics.BytesQueued.Update(float64(cumulative))
	}

	pool.Sort()

	if progress != nil {
		progress(ProgressEvent{Phase: PhaseReading, Current: 0, Total: pool.Len()})
	}

	reader := NewFileReader()
	for i, seg := range pool.Segments() {
		n := reader.ReadSegment(seg)
		bytesRead += n
		if d.metrics != nil {
			d.metrics.SegmentsRead.Inc()
		}
		if progress != nil {
			progress(ProgressEvent{Phase: PhaseReading, Current: i + 1, Total: pool.Len()})
		}
	}

	if d.metrics != nil {
		d.metrics.BytesRead.Update(float64(bytesRead))
	}

	GetLogger().Debugf("precache run %s finished: queued=%d bytesRead=%d", runID, queued, bytesRead)
	return queued, bytesRead
}
