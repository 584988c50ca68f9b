package engine

import "sort"

// SegmentPool is an append-only collection of Segments with ordering and
// free operations (§4.3). Segments are never removed individually before
// a full free, so a growable slice stands in for the original's intrusive
// doubly-linked list (§9).
type SegmentPool struct {
	segments []Segment
}

// NewSegmentPool returns an empty pool.
func NewSegmentPool() *SegmentPool {
	return &SegmentPool{}
}

// Append adds segments to the pool, in order.
func (p *SegmentPool) Append(segments ...Segment) {
	p.segments = append(p.segments, segments...)
}

// Sort stably orders the pool by non-decreasing PhysicalPos. Ties are
// broken by original insertion order, since no tie-breaker is specified.
func (p *SegmentPool) Sort() {
	sort.SliceStable(p.segments, func(i, j int) bool {
		return p.segments[i].PhysicalPos < p.segments[j].PhysicalPos
	})
}

// Segments returns the pool's current contents. The returned slice aliases
// the pool's backing array and must not be retained past Free.
func (p *SegmentPool) Segments() []Segment {
	return p.segments
}

// Len reports the number of segments currently in the pool.
func (p *SegmentPool) Len() int {
	return len(p.segments)
}

// Free discards every segment in the pool.
func (p *SegmentPool) Free() {
	p.segments = nil
}
