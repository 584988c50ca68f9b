package engine

import (
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// DirHandle is an opaque identifier for an open directory, minted by the
// caller (e.g. the directory's own file descriptor). The core never
// performs opendir/readdir itself — it only reacts to notifications about
// them, per §9's pure-handler-function constraint.
type DirHandle uintptr

// dirpState is the per-open-directory-handle FSM state of §3.
type dirpState struct {
	dirname              string
	dirents              []direntEntry
	cursor               int
	cachedFilesRemaining int
	fsm                  readdirState
}

// TriggerFunc invokes the precache driver over a set of absolute paths,
// returning the number of files actually queued. ReaddirFSM calls it with
// the remaining dirents of the triggering directory's current position.
type TriggerFunc func(paths []string) (queued int)

// ReaddirFSM is the Readdir FSM (RF, §4.6): a per-dirp state machine that
// observes interleaved readdir/open events and decides when to fire the
// precache driver. Handle* methods are the pure handler surface §9
// requires so a synthetic-event harness (or a future libc-interposition
// shim outside this module) can drive it without any FFI.
type ReaddirFSM struct {
	mu      sync.Mutex
	order   []DirHandle
	states  map[DirHandle]*dirpState
	trigger TriggerFunc
}

// NewReaddirFSM constructs an FSM that calls trigger when DoPrecache fires.
func NewReaddirFSM(trigger TriggerFunc) *ReaddirFSM {
	return &ReaddirFSM{
		states:  make(map[DirHandle]*dirpState),
		trigger: trigger,
	}
}

// HandleOpendir pre-drains dirname's entries into the handle's buffered
// list and starts its FSM at Start. Any prior state for dirp (should not
// happen) is discarded first.
func (f *ReaddirFSM) HandleOpendir(dirname string, dirp DirHandle) error {
	entries, err := readDirentsAt(dirname)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.states[dirp]; exists {
		f.removeLocked(dirp)
	}

	st := &dirpState{
		dirname: strings.TrimRight(dirname, "/"),
		dirents: entries,
		fsm:     stateStart,
	}
	f.states[dirp] = st
	f.order = append(f.order, dirp)
	return nil
}

// HandleCloseDir drops dirp's buffered dirent list and FSM state.
func (f *ReaddirFSM) HandleCloseDir(dirp DirHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(dirp)
}

// Drain discards every buffered dirent list and FSM state, used by
// Engine.Close.
func (f *ReaddirFSM) Drain() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = nil
	f.states = make(map[DirHandle]*dirpState)
}

func (f *ReaddirFSM) removeLocked(dirp DirHandle) {
	delete(f.states, dirp)
	for i, h := range f.order {
		if h == dirp {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// HandleRewinddir resets dirp's FSM to Start and its cursor to the
// beginning of the already-buffered dirent list.
func (f *ReaddirFSM) HandleRewinddir(dirp DirHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.states[dirp]
	if !ok {
		return
	}
	st.fsm = stateStart
	st.cursor = 0
	st.cachedFilesRemaining = 0
}

// HandleReaddir serves the next entry from dirp's buffer, driving the FSM.
// If dirp is already at DoPrecache when this call returns a real entry
// (the open that completed the pattern came before it) and no cached
// window is running, it first invokes the trigger over this entry and
// every entry after it. Returns (entry, false) once the buffer is
// exhausted.
func (f *ReaddirFSM) HandleReaddir(dirp DirHandle) (direntEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.states[dirp]
	if !ok {
		return direntEntry{}, false
	}
	if st.cursor >= len(st.dirents) {
		return direntEntry{}, false
	}

	entry := st.dirents[st.cursor]

	if entry.Name == "." || entry.Name == ".." {
		st.cursor++
		return entry, true
	}

	if st.fsm == stateDoPrecache && st.cachedFilesRemaining == 0 {
		st.cachedFilesRemaining = f.runTrigger(st)
	}

	if st.cachedFilesRemaining > 0 {
		st.cachedFilesRemaining--
	}

	st.fsm = readdirTransition(st.fsm)
	st.cursor++

	return entry, true
}

func (f *ReaddirFSM) runTrigger(st *dirpState) int {
	if f.trigger == nil {
		return 0
	}

	remaining := st.dirents[st.cursor:]
	paths := make([]string, 0, len(remaining))
	for _, e := range remaining {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		paths = append(paths, st.dirname+"/"+e.Name)
	}

	return f.trigger(paths)
}

// HandleOpenAt processes an openat(atfd, fname) notification. Per §9's
// open question, non-AT_FDCWD atfd is treated as a no-op — the behavior
// is mirrored from the source rather than guessed at, with this check as
// the hook a future revision could replace.
func (f *ReaddirFSM) HandleOpenAt(atfd int, fname string) {
	if atfd != unix.AT_FDCWD {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, dirp := range f.order {
		st := f.states[dirp]
		if !openTargetsDir(fname, st.dirname) {
			continue
		}

		st.fsm = openTransition(st.fsm)
		// Only the first match (in insertion order) is advanced, per §4.6.
		break
	}
}

// openTargetsDir reports whether fname is a direct child of dirname: it
// must begin with dirname + "/" and contain no further "/" beyond that.
func openTargetsDir(fname, dirname string) bool {
	prefix := dirname + "/"
	if !strings.HasPrefix(fname, prefix) {
		return false
	}
	rest := fname[len(prefix):]
	return rest != "" && !strings.Contains(rest, "/")
}

// readdirTransition is the readdir column of §4.6's state table.
func readdirTransition(s readdirState) readdirState {
	switch s {
	case stateStart:
		return stateR1O0
	case stateR1O0:
		return stateSkip
	case stateR1O1:
		return stateR2O1
	case stateR2O1:
		return stateSkip
	case stateR2O2:
		return stateR3O2
	case stateR3O2:
		return stateSkip
	default:
		return s
	}
}

// openTransition is the open-in-dir column of §4.6's state table.
func openTransition(s readdirState) readdirState {
	switch s {
	case stateStart:
		return stateSkip
	case stateR1O0:
		return stateR1O1
	case stateR1O1:
		return stateSkip
	case stateR2O1:
		return stateR2O2
	case stateR2O2:
		return stateSkip
	case stateR3O2:
		return stateDoPrecache
	default:
		return s
	}
}
