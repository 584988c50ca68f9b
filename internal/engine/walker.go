package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// DirectoryWalker is the Directory Walker (DW, §4.7): an iterative BFS
// over a directory tree, bounded to a single filesystem, used by the
// standalone "precache a directory tree" mode. It streams every level's
// segments through a raw-device reader rather than per-file, since
// walking an entire tree typically exceeds any reasonable page-cache
// budget.
type DirectoryWalker struct {
	resolver *Resolver
	metrics  *PrecacheMetrics
}

// NewDirectoryWalker constructs a walker that resolves EncFS overlay
// paths via r before every extent enumeration.
func NewDirectoryWalker(r *Resolver) *DirectoryWalker {
	return &DirectoryWalker{resolver: r}
}

// SetMetrics attaches the metrics set Run reports segment/byte counts to.
// Optional — a walker without one simply skips the metric updates.
func (w *DirectoryWalker) SetMetrics(m *PrecacheMetrics) {
	w.metrics = m
}

// Run walks root level by level, reading every level's segments from
// rawDeviceFd, and returns the total bytes read.
func (w *DirectoryWalker) Run(root string, rawDeviceFd int, progress ProgressFunc) (int64, error) {
	var rootStat unix.Stat_t
	if err := unix.Lstat(root, &rootStat); err != nil {
		return 0, fmt.Errorf("stat root %q: %w", root, err)
	}
	rootDev := rootStat.Dev

	reader := NewRawDeviceReader(rawDeviceFd)
	currentTasks := []string{root}
	var totalBytes int64

	for len(currentTasks) > 0 {
		pool := NewSegmentPool()

		for i, dir := range currentTasks {
			entries, err := readDirentsAt(dir)
			if err != nil {
				GetLogger().Debugf("can't open directory %q: %v", dir, err)
			}
			for _, e := range entries {
				if e.Name == "." || e.Name == ".." {
					continue
				}
				segments, _ := enumerateExtents(w.resolver, joinDirPath(dir, e.Name))
				pool.Append(segments...)
			}
			if progress != nil {
				progress(ProgressEvent{Phase: PhaseMapping, Current: i + 1, Total: len(currentTasks)})
			}
		}

		pool.Sort()

		segs := pool.Segments()
		for i, seg := range segs {
			n := reader.ReadSegment(seg)
			totalBytes += n
			if w.metrics != nil {
				w.metrics.SegmentsRead.Inc()
				w.metrics.BytesRead.Update(float64(n))
			}
			if progress != nil {
				progress(ProgressEvent{Phase: PhaseReading, Current: i + 1, Total: len(segs)})
			}
		}
		pool.Free()

		var nextTasks []string
		for i, dir := range currentTasks {
			nextTasks = append(nextTasks, deriveChildDirs(dir, rootDev)...)
			if progress != nil {
				progress(ProgressEvent{Phase: PhaseDeriving, Current: i + 1, Total: len(currentTasks)})
			}
		}
		currentTasks = nextTasks
	}

	return totalBytes, nil
}

// deriveChildDirs scans dirName for subdirectories whose st_dev equals
// rootDev (single-filesystem containment, §4.7 step 4), rejecting "."
// and "..". This is a second, independent directory-read pass over
// dirName — the frontier-derivation scan the spec calls for is kept
// separate from the extent-enumeration pass over the same directory's
// entries in Run.
func deriveChildDirs(dirName string, rootDev uint64) []string {
	entries, err := readDirentsAt(dirName)
	if err != nil {
		GetLogger().Debugf("can't open directory %q: %v", dirName, err)
		return nil
	}

	var children []string
	for _, e := range entries {
		if e.Type != unix.DT_DIR {
			continue
		}
		if e.Name == "." || e.Name == ".." {
			continue
		}

		childPath := joinDirPath(dirName, e.Name)
		var st unix.Stat_t
		if err := unix.Lstat(childPath, &st); err != nil || st.Dev != rootDev {
			continue
		}

		children = append(children, childPath)
	}

	return children
}

// joinDirPath joins a directory path and a child name without collapsing
// a trailing slash dirName may already carry.
func joinDirPath(dirName, name string) string {
	if strings.HasSuffix(dirName, "/") {
		return dirName + name
	}
	return dirName + "/" + name
}

// GuessDevice reads /proc/mounts and returns the device path of the
// mount entry whose path shares the longest common byte prefix with
// path, among entries whose device path starts with "/".
func GuessDevice(path string) (string, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return "", err
	}
	defer f.Close()
	return guessDeviceFrom(f, path)
}

// guessDeviceFrom implements GuessDevice's selection logic against any
// /proc/mounts-formatted reader, split out so tests can supply a
// synthetic mount table.
func guessDeviceFrom(r io.Reader, path string) (string, error) {
	var selected string
	selectedLen := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		devicePath, mountPath := fields[0], fields[1]
		if !strings.HasPrefix(devicePath, "/") {
			continue
		}

		n := commonPrefixLength(mountPath, path)
		if n > selectedLen {
			selectedLen = n
			selected = devicePath
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if selected == "" {
		return "", ErrDeviceGuessFailed
	}

	return selected, nil
}

func commonPrefixLength(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
