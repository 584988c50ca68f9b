package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

// TestDriver_BudgetHonoring is scenario S2: files a=600MiB, b=600MiB with a
// 1GiB budget must queue only a.
func TestDriver_BudgetHonoring(t *testing.T) {
	dir := t.TempDir()

	const sixHundredMiB = 600 * 1024 * 1024
	a := writeTestFile(t, dir, "a", sixHundredMiB)
	b := writeTestFile(t, dir, "b", sixHundredMiB)

	driver := NewPrecacheDriver(nil, nil, 1073741824, false)
	queued, _ := driver.Run([]string{a, b}, nil)

	if queued != 1 {
		t.Fatalf("expected exactly 1 file queued, got %d", queued)
	}
}

func TestDriver_BudgetNeverExceededAtQueueTime(t *testing.T) {
	dir := t.TempDir()
	sizes := []int{300, 300, 300, 300}
	limit := int64(1000)

	var paths []string
	for i, sz := range sizes {
		paths = append(paths, writeTestFile(t, dir, string(rune('a'+i)), sz))
	}

	driver := NewPrecacheDriver(nil, nil, limit, false)
	queued, _ := driver.Run(paths, nil)

	if int64(queued)*300 > limit {
		t.Fatalf("queued %d files of 300 bytes exceeds budget %d", queued, limit)
	}
	if queued != 3 {
		t.Fatalf("expected 3 files to fit under budget 1000 at 300 bytes each, got %d", queued)
	}
}
