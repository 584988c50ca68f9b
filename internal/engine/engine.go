package engine

import "sync"

// Engine owns the process-wide shared state the original library kept as
// globals: the EncFS mount/inode maps (inside Resolver) and the
// dirp→FSM-state map (inside ReaddirFSM). Every touch of that state is
// serialized by mu, acquired at the entry of each Handle* call and
// released before returning, per §5. There is no process-exit destructor
// in a Go library the way the source's __attribute__((destructor)) gives
// it one — Close is the explicit equivalent, safe to call more than once.
type Engine struct {
	mu sync.Mutex

	Resolver *Resolver
	FSM      *ReaddirFSM
	Driver   *PrecacheDriver
	Metrics  *PrecacheMetrics

	closed bool
}

// EngineConfig bundles the tunables Engine needs at construction. See
// internal/config for how these are loaded from the environment.
type EngineConfig struct {
	PrecacheLimit int64
	PrecacheSync  bool
}

// New constructs an Engine with a fresh Resolver, metrics set, precache
// driver, and readdir FSM wired together — the FSM's trigger invokes the
// driver under the same lock an interposed handler call already holds.
func New(cfg EngineConfig) (*Engine, error) {
	resolver, err := NewResolver()
	if err != nil {
		return nil, err
	}

	metrics := NewPrecacheMetrics()
	resolver.SetMetrics(metrics)
	driver := NewPrecacheDriver(resolver, metrics, cfg.PrecacheLimit, cfg.PrecacheSync)

	e := &Engine{
		Resolver: resolver,
		Driver:   driver,
		Metrics:  metrics,
	}
	e.FSM = NewReaddirFSM(func(paths []string) int {
		queued, _ := driver.Run(paths, nil)
		return queued
	})

	return e, nil
}

// HandleOpendir notifies Engine that dirname was opened as dirp.
func (e *Engine) HandleOpendir(dirname string, dirp DirHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.Resolver.RefreshIfStale(dirname); err != nil {
		GetLogger().Debugf("refresh_if_stale(%q) failed: %v", dirname, err)
	}
	return e.FSM.HandleOpendir(dirname, dirp)
}

// HandleReaddir notifies Engine that dirp was read, returning the next
// buffered entry (or false once exhausted).
func (e *Engine) HandleReaddir(dirp DirHandle) (direntEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.FSM.HandleReaddir(dirp)
}

// HandleOpenAt notifies Engine of an openat(atfd, fname) call.
func (e *Engine) HandleOpenAt(atfd int, fname string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.FSM.HandleOpenAt(atfd, fname)
}

// HandleCloseDir notifies Engine that dirp was closed.
func (e *Engine) HandleCloseDir(dirp DirHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.FSM.HandleCloseDir(dirp)
}

// HandleRewinddir notifies Engine that dirp was rewound.
func (e *Engine) HandleRewinddir(dirp DirHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.FSM.HandleRewinddir(dirp)
}

// Close drains the dirp map and clears the mount/inode caches. Safe to
// call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true

	e.FSM.Drain()
	e.Resolver.Reset()
}
