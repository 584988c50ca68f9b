package engine

import "testing"

func TestSegmentPool_SortStability(t *testing.T) {
	pool := NewSegmentPool()
	pool.Append(
		Segment{FileName: "b", PhysicalPos: 4096, FileOffset: 0, Length: 100},
		Segment{FileName: "a", PhysicalPos: 2048, FileOffset: 0, Length: 100},
		Segment{FileName: "c", PhysicalPos: 2048, FileOffset: 100, Length: 100},
	)

	pool.Sort()

	segs := pool.Segments()
	for i := 1; i < len(segs); i++ {
		if segs[i-1].PhysicalPos > segs[i].PhysicalPos {
			t.Fatalf("sort violated at index %d: %v > %v", i, segs[i-1].PhysicalPos, segs[i].PhysicalPos)
		}
	}

	// Stable sort: ties preserve insertion order ("a" was appended before "c").
	if segs[0].FileName != "a" || segs[1].FileName != "c" {
		t.Fatalf("expected stable tie order a,c; got %s,%s", segs[0].FileName, segs[1].FileName)
	}
}

func TestSegmentPool_Free(t *testing.T) {
	pool := NewSegmentPool()
	pool.Append(Segment{FileName: "x", PhysicalPos: 1, Length: 1})
	pool.Free()

	if pool.Len() != 0 {
		t.Fatalf("expected empty pool after Free, got %d", pool.Len())
	}
}

// scenario S1: two extents out of logical order must read back in ascending
// physical order.
func TestSegmentPool_ScenarioS1(t *testing.T) {
	pool := NewSegmentPool()
	pool.Append(
		Segment{FileName: "/tmp/a", PhysicalPos: 4096, FileOffset: 0, Length: 524288},
		Segment{FileName: "/tmp/a", PhysicalPos: 2048, FileOffset: 524288, Length: 524288},
	)
	pool.Sort()

	segs := pool.Segments()
	if segs[0].PhysicalPos != 2048 || segs[1].PhysicalPos != 4096 {
		t.Fatalf("expected read order 2048 then 4096, got %v then %v", segs[0].PhysicalPos, segs[1].PhysicalPos)
	}
}
