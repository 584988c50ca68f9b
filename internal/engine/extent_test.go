package engine

import "testing"

func TestExtentQuery_Clamp(t *testing.T) {
	cases := []struct {
		name             string
		logical, length, fileSize uint64
		wantOK           bool
		wantLength       uint64
	}{
		{"fits entirely", 0, 100, 1000, true, 100},
		{"runs past EOF, gets truncated", 900, 200, 1000, true, 100},
		{"starts exactly at EOF", 1000, 100, 1000, false, 0},
		{"starts past EOF", 1100, 100, 1000, false, 0},
		{"zero length after clamp", 1000, 0, 1000, false, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			seg, ok := clampExtentToFileSize("f", 4096, c.logical, c.length, c.fileSize)
			if ok != c.wantOK {
				t.Fatalf("ok = %v, want %v", ok, c.wantOK)
			}
			if !ok {
				return
			}
			if seg.FileOffset+seg.Length > c.fileSize {
				t.Fatalf("invariant violated: offset %d + length %d > size %d", seg.FileOffset, seg.Length, c.fileSize)
			}
			if seg.Length != c.wantLength {
				t.Fatalf("length = %d, want %d", seg.Length, c.wantLength)
			}
		})
	}
}

func TestExtentQuery_MissingFileYieldsZeroSegments(t *testing.T) {
	segs, count := enumerateExtents(nil, "/nonexistent/path/for/precache/tests")
	if segs != nil || count != 0 {
		t.Fatalf("expected zero segments on open failure, got %d", count)
	}
}
