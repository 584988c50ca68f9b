package engine

const (
	// EngineVersion is the engine's release string. Neither --print-config
	// nor the logs include it.
	EngineVersion string = "v0.1.0"

	// DefaultPrecacheLimitBytes is the default cumulative byte budget for a
	// single precache event, overridable by PRECACHE_LIMIT.
	DefaultPrecacheLimitBytes int64 = 1 << 30 // 1 GiB

	// DefaultPrecacheSync controls whether a precache event flushes dirty
	// pages before reading, overridable by PRECACHE_SYNC.
	DefaultPrecacheSync bool = true
)

// Segment is a contiguous range of a file on disk: the core's in-memory
// representation of a FIEMAP extent, carrying the file path it belongs to.
//
// Invariants: Length > 0 after clamping to file size; FileOffset + Length <=
// the file size observed at enumeration time; when the segment is destined
// for the raw-device reader, PhysicalPos is a valid offset on that device.
type Segment struct {
	FileName    string
	PhysicalPos uint64
	FileOffset  uint64
	Length      uint64
}

// ProgressPhase names the phase boundary a ProgressEvent reports.
type ProgressPhase int

const (
	PhaseMapping ProgressPhase = iota
	PhaseReading
	PhaseDeriving
)

func (p ProgressPhase) String() string {
	switch p {
	case PhaseMapping:
		return "mapping"
	case PhaseReading:
		return "reading"
	case PhaseDeriving:
		return "deriving new tasks"
	default:
		return "unknown"
	}
}

// ProgressEvent is delivered to an optional caller-supplied hook at phase
// boundaries. Rendering it to a terminal is explicitly left to the caller;
// the core only reports counts.
type ProgressEvent struct {
	Phase   ProgressPhase
	Current int
	Total   int
}

// ProgressFunc is the hook signature accepted by PrecacheDriver.Run and
// DirectoryWalker.Run. A nil ProgressFunc is valid and means "don't report."
type ProgressFunc func(ProgressEvent)

// readdirState is the per-open-directory-handle state machine defined in
// §4.6. See readdirfsm.go.
type readdirState int

const (
	stateStart readdirState = iota
	stateR1O0
	stateR1O1
	stateR2O1
	stateR2O2
	stateR3O2
	stateDoPrecache
	stateSkip
)

func (s readdirState) String() string {
	switch s {
	case stateStart:
		return "Start"
	case stateR1O0:
		return "R1O0"
	case stateR1O1:
		return "R1O1"
	case stateR2O1:
		return "R2O1"
	case stateR2O2:
		return "R2O2"
	case stateR3O2:
		return "R3O2"
	case stateDoPrecache:
		return "DoPrecache"
	case stateSkip:
		return "Skip"
	default:
		return "Unknown"
	}
}

// direntEntry is the Go-native stand-in for spec.md §9's "always produce the
// 64-bit dirent form internally" rule: there is no dirent/dirent64 layout
// question in a library that never crosses a libc FFI boundary.
type direntEntry struct {
	Name string
	Ino  uint64
	Type uint8
}
