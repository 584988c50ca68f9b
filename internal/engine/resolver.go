package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sys/unix"
)

// fuseSuperMagic is the statfs f_type value for a FUSE-backed filesystem.
const fuseSuperMagic = 0x65735546

// Resolver is the Back-path Resolver (BPR, §4.2). It owns the front→back
// mount map and the inode→path cache. The mount map is guarded by the
// Resolver's own mu (and, under Engine, also by Engine's single mutex);
// the ristretto cache is safe for concurrent use on its own.
type Resolver struct {
	mu          sync.Mutex
	mounts      map[string]*mountEntry
	inodeCache  *ristretto.Cache
	lastChecked time.Time
	metrics     *PrecacheMetrics
}

// NewResolver constructs a Resolver with a bounded, wholesale-evictable
// inode→path cache (§3, §4.2 expansion: ristretto has no key-prefix
// enumeration, so mount replacement invalidates the whole cache rather
// than scanning for entries under the stale back_path — see DESIGN.md).
func NewResolver() (*Resolver, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     1 << 26, // 64 MiB of path strings
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Resolver{
		mounts:     make(map[string]*mountEntry),
		inodeCache: cache,
	}, nil
}

// SetMetrics attaches the metrics set Resolve reports resolution misses to.
// Optional — a Resolver constructed without it (as most tests do) simply
// skips the metric update.
func (r *Resolver) SetMetrics(m *PrecacheMetrics) {
	r.metrics = m
}

// ForceRefresh unconditionally rescans the EncFS mount table.
func (r *Resolver) ForceRefresh() error {
	found, err := scanEncfsMounts()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMountTableUnavailable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyScan(found)
	return nil
}

// RefreshIfStale rate-limits scans to at most one per wall-clock second,
// and skips the scan entirely if probePath is not on a FUSE filesystem.
func (r *Resolver) RefreshIfStale(probePath string) error {
	r.mu.Lock()
	now := time.Now()
	if now.Sub(r.lastChecked) < time.Second {
		r.mu.Unlock()
		return nil
	}
	r.lastChecked = now
	r.mu.Unlock()

	var st unix.Statfs_t
	if err := unix.Statfs(probePath, &st); err != nil {
		return err
	}
	if uint32(st.Type) != fuseSuperMagic {
		return nil
	}

	return r.ForceRefresh()
}

// applyScan merges a fresh mount-table scan into r.mounts per §4.2's
// refresh algorithm: mark everything pending-removal, clear the flag for
// anything re-matched by pid, replace anything matched by a different
// pid (invalidating its inode cache entries), and purge whatever is still
// pending-removal at the end.
func (r *Resolver) applyScan(found []mountEntry) {
	for _, m := range r.mounts {
		m.PendingRemoval = true
	}

	invalidate := false
	for i := range found {
		fresh := found[i]
		existing, ok := r.mounts[fresh.FrontPath]
		if ok {
			if existing.OwnerPID == fresh.OwnerPID {
				existing.PendingRemoval = false
				continue
			}
			// Different process now owns this front_path.
			delete(r.mounts, fresh.FrontPath)
			invalidate = true
		}

		entry := fresh
		r.mounts[entry.FrontPath] = &entry
	}

	for front, m := range r.mounts {
		if m.PendingRemoval {
			delete(r.mounts, front)
			invalidate = true
		}
	}

	if invalidate {
		// §3's "may be evicted wholesale" invariant; no key-prefix scan
		// exists on ristretto so the whole cache is dropped rather than
		// only entries under the replaced or purged back_path.
		r.inodeCache.Clear()
	}
}

// Reset clears the mount map and the inode cache wholesale, used by
// Engine.Close.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.mounts = make(map[string]*mountEntry)
	r.mu.Unlock()
	r.inodeCache.Clear()
}

// Resolve implements §4.2's resolve algorithm.
func (r *Resolver) Resolve(srcPath string) string {
	var st unix.Statfs_t
	if err := unix.Statfs(srcPath, &st); err != nil || uint32(st.Type) != fuseSuperMagic {
		return srcPath
	}

	r.mu.Lock()
	mounts := make([]*mountEntry, 0, len(r.mounts))
	for _, m := range r.mounts {
		mounts = append(mounts, m)
	}
	r.mu.Unlock()

	for _, m := range mounts {
		if !pathHasPrefix(srcPath, m.FrontPath) {
			continue
		}

		var lst unix.Stat_t
		if err := unix.Lstat(srcPath, &lst); err != nil || lst.Mode&unix.S_IFMT != unix.S_IFREG {
			break
		}
		inode := lst.Ino

		if cached, ok := r.inodeCache.Get(inode); ok {
			return cached.(string)
		}

		trace := r.traceInodesBackToBase(srcPath, m.FrontPath)
		resolved := r.followInodeTrace(trace, m.BackPath)
		if resolved != "" {
			return resolved
		}
		break
	}

	// On a FUSE filesystem with no mount entry covering it, or a trace
	// that failed to follow all the way down — §7's "resolution miss,
	// fall back to the original path."
	if r.metrics != nil {
		r.metrics.ResolveMisses.Inc()
	}
	return srcPath
}

// pathHasPrefix matches front as a path-prefix of src on full path
// components — the boundary character must be "/" or end-of-string.
func pathHasPrefix(src, front string) bool {
	if !strings.HasPrefix(src, front) {
		return false
	}
	rest := src[len(front):]
	return rest == "" || rest[0] == '/'
}

// traceInodesBackToBase walks from srcPath up toward front, recording
// lstat(component).st_ino at each step; the sequence is stored
// deepest-first.
func (r *Resolver) traceInodesBackToBase(srcPath, front string) []uint64 {
	cur := strings.TrimRight(srcPath, "/")
	var trace []uint64

	for len(cur) > len(front) {
		var st unix.Stat_t
		if err := unix.Lstat(cur, &st); err != nil {
			break
		}
		trace = append(trace, st.Ino)

		idx := strings.LastIndexByte(cur, '/')
		if idx < 0 {
			break
		}
		cur = cur[:idx]
		if cur == "" {
			break
		}
	}

	if len(cur) != len(front) {
		return nil
	}
	return trace
}

// followInodeTrace starts from a head-start path found in the inode
// cache (the deepest trace entry already cached) and scans each
// intervening directory to find the child with the matching inode,
// caching every sibling it sees along the way.
func (r *Resolver) followInodeTrace(trace []uint64, base string) string {
	curPath := ""
	idx := 0
	for ; idx < len(trace); idx++ {
		if cached, ok := r.inodeCache.Get(trace[idx]); ok {
			curPath = cached.(string)
			break
		}
	}

	idx--
	if curPath == "" {
		curPath = base
	}

	for ; idx >= 0; idx-- {
		target := trace[idx]
		next := r.findInodeInDir(curPath, target)
		if next == "" {
			return ""
		}
		curPath = next
	}

	return curPath
}

// findInodeInDir scans path via the raw getdents64-equivalent reader,
// caching every child's inode→path mapping as it goes, and returns the
// path to the entry whose inode matches target (if any).
func (r *Resolver) findInodeInDir(path string, target uint64) string {
	entries, err := readDirentsAt(path)
	if err != nil {
		return ""
	}

	sep := "/"
	if strings.HasSuffix(path, "/") {
		sep = ""
	}

	var found string
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		childPath := path + sep + e.Name

		if e.Ino == target {
			found = childPath
		}

		if _, ok := r.inodeCache.Get(e.Ino); !ok {
			r.inodeCache.Set(e.Ino, childPath, int64(len(childPath)))
		}
	}

	return found
}
