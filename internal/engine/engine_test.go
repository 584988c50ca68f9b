package engine

import (
	"os"
	"path/filepath"
	"testing"
)

// TestEngine_BulkCopyPatternTriggersPrecache drives a real Engine through
// the opendir/readdir/openat sequence a bulk-copy tool produces over a
// five-file directory and checks that precaching fires exactly once, for
// the files the copy tool hasn't reached yet.
func TestEngine_BulkCopyPatternTriggersPrecache(t *testing.T) {
	dir := t.TempDir()
	names := []string{"e1", "e2", "e3", "e4", "e5"}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}

	e, err := New(EngineConfig{PrecacheLimit: 1073741824, PrecacheSync: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	var triggerCount int
	var triggeredPaths []string
	driverTrigger := e.FSM.trigger
	e.FSM.trigger = func(paths []string) int {
		triggerCount++
		triggeredPaths = paths
		return driverTrigger(paths)
	}

	dirp := DirHandle(1)
	if err := e.HandleOpendir(dir, dirp); err != nil {
		t.Fatalf("HandleOpendir: %v", err)
	}
	defer e.HandleCloseDir(dirp)

	// A copy tool skips "." and "..", which the buffer also serves.
	nextRealEntry := func() (direntEntry, bool) {
		for {
			entry, ok := e.HandleReaddir(dirp)
			if !ok || (entry.Name != "." && entry.Name != "..") {
				return entry, ok
			}
		}
	}

	for i := 0; i < 3; i++ {
		entry, ok := nextRealEntry()
		if !ok {
			t.Fatalf("HandleReaddir exhausted early at iteration %d", i)
		}
		e.HandleOpenAt(-100, filepath.Join(dir, entry.Name))
	}

	// The third open left the handle at DoPrecache; this readdir fires the
	// trigger, which in turn runs the real PrecacheDriver over the
	// remaining entries.
	if _, ok := nextRealEntry(); !ok {
		t.Fatal("expected a fourth entry")
	}
	if triggerCount != 1 {
		t.Fatalf("expected exactly 1 trigger, got %d", triggerCount)
	}
	if len(triggeredPaths) != 2 {
		t.Fatalf("expected trigger over the 2 entries not yet copied, got %v", triggeredPaths)
	}
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	e, err := New(EngineConfig{PrecacheLimit: 1024, PrecacheSync: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.Close()
	e.Close()
}

func TestEngine_HandleOpenAtOnUnknownDirIsNoop(t *testing.T) {
	e, err := New(EngineConfig{PrecacheLimit: 1024, PrecacheSync: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	e.HandleOpenAt(-100, "/no/such/handle/tracked/here")
}
