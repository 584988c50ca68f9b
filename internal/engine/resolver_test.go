package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestPathHasPrefix(t *testing.T) {
	cases := []struct {
		src, front string
		want       bool
	}{
		{"/mnt/front/a/b", "/mnt/front", true},
		{"/mnt/front", "/mnt/front", true},
		{"/mnt/frontage/a", "/mnt/front", false},
		{"/mnt/front2", "/mnt/front", false},
	}
	for _, c := range cases {
		if got := pathHasPrefix(c.src, c.front); got != c.want {
			t.Errorf("pathHasPrefix(%q, %q) = %v, want %v", c.src, c.front, got, c.want)
		}
	}
}

func TestTraceInodesBackToBase(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(a, "b")
	file := filepath.Join(b, "file.txt")

	if err := os.MkdirAll(b, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var stFile, stB, stA unix.Stat_t
	if err := unix.Lstat(file, &stFile); err != nil {
		t.Fatal(err)
	}
	if err := unix.Lstat(b, &stB); err != nil {
		t.Fatal(err)
	}
	if err := unix.Lstat(a, &stA); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{}
	trace := r.traceInodesBackToBase(file, root)

	want := []uint64{stFile.Ino, stB.Ino, stA.Ino}
	if len(trace) != len(want) {
		t.Fatalf("trace length = %d, want %d: %v", len(trace), len(want), trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("trace[%d] = %d, want %d", i, trace[i], want[i])
		}
	}
}

// TestResolver_InodeCacheVerifiable is scenario S5: resolving a deep path
// through a mirrored tree (front == back, the degenerate case that still
// exercises the full trace/follow/cache chain) must both resolve to the
// original file and leave every intermediate directory's inode cached.
func TestResolver_InodeCacheVerifiable(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(a, "b")
	file := filepath.Join(b, "file.txt")

	if err := os.MkdirAll(b, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var stB, stA unix.Stat_t
	if err := unix.Lstat(b, &stB); err != nil {
		t.Fatal(err)
	}
	if err := unix.Lstat(a, &stA); err != nil {
		t.Fatal(err)
	}

	r, err := NewResolver()
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	trace := r.traceInodesBackToBase(file, root)
	resolved := r.followInodeTrace(trace, root)

	if resolved != file {
		t.Fatalf("resolved = %q, want %q", resolved, file)
	}

	r.inodeCache.Wait()

	if cached, ok := r.inodeCache.Get(stB.Ino); !ok || cached.(string) != b {
		t.Errorf("expected inode cache to hold %q for dir b, got %v (ok=%v)", b, cached, ok)
	}
	if cached, ok := r.inodeCache.Get(stA.Ino); !ok || cached.(string) != a {
		t.Errorf("expected inode cache to hold %q for dir a, got %v (ok=%v)", a, cached, ok)
	}
}

func TestResolver_ApplyScan_PurgeInvalidatesCache(t *testing.T) {
	r, err := NewResolver()
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	r.mounts["/front"] = &mountEntry{FrontPath: "/front", BackPath: "/back", OwnerPID: 1}
	r.inodeCache.Set(uint64(42), "/back/stale", 10)
	r.inodeCache.Wait()

	if _, ok := r.inodeCache.Get(uint64(42)); !ok {
		t.Fatal("expected seeded cache entry to be present before purge")
	}

	// Second scan finds nothing for "/front" — it must be purged, which
	// wholesale-clears the inode cache since ristretto has no key-prefix scan.
	r.applyScan(nil)

	if _, ok := r.mounts["/front"]; ok {
		t.Fatal("expected /front to be purged from the mount map")
	}
	if _, ok := r.inodeCache.Get(uint64(42)); ok {
		t.Fatal("expected inode cache to be cleared after a mount purge")
	}
}

func TestResolver_ApplyScan_SamePidSurvives(t *testing.T) {
	r, err := NewResolver()
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	r.mounts["/front"] = &mountEntry{FrontPath: "/front", BackPath: "/back", OwnerPID: 7}
	r.inodeCache.Set(uint64(99), "/back/kept", 10)
	r.inodeCache.Wait()

	r.applyScan([]mountEntry{{FrontPath: "/front", BackPath: "/back", OwnerPID: 7}})

	if m, ok := r.mounts["/front"]; !ok || m.PendingRemoval {
		t.Fatalf("expected /front to survive with PendingRemoval cleared, got %v ok=%v", m, ok)
	}
	if _, ok := r.inodeCache.Get(uint64(99)); !ok {
		t.Fatal("expected inode cache entry to survive when the mount is re-matched by pid")
	}
}

// TestResolver_IdempotentRefresh applies the same scan result twice: the
// mount map must end up in the same state as after a single application,
// with no duplicate or dangling entries.
func TestResolver_IdempotentRefresh(t *testing.T) {
	r, err := NewResolver()
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	scan := []mountEntry{{FrontPath: "/front", BackPath: "/back", OwnerPID: 7}}

	r.applyScan(scan)
	r.applyScan(scan)

	if len(r.mounts) != 1 {
		t.Fatalf("expected exactly 1 mount after repeated identical scans, got %d", len(r.mounts))
	}
	m, ok := r.mounts["/front"]
	if !ok || m.PendingRemoval {
		t.Fatalf("expected /front present with PendingRemoval cleared, got %v ok=%v", m, ok)
	}
}

func TestResolver_RefreshIfStale_RateLimited(t *testing.T) {
	r, err := NewResolver()
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	r.lastChecked = time.Now()

	// Within the 1-second window, RefreshIfStale must return immediately
	// without touching the filesystem via statfs, regardless of probePath.
	if err := r.RefreshIfStale("/nonexistent/path/entirely"); err != nil {
		t.Fatalf("expected rate-limited no-op, got error: %v", err)
	}
}
