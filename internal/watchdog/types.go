// Package watchdog implements the supervisor core: the long-lived
// control loop that launches and monitors a worker process and its
// extensions, enforcing per-child resource budgets and restarting or
// dropping children that misbehave.
package watchdog

import "time"

// LimitKind enumerates the watchdog's tunable thresholds. Values are
// looked up through the Limits table and parameterized by level.
type LimitKind int

const (
	MemoryLimit LimitKind = iota
	UtilizationLimit
	RespawnLimit
	RespawnDelay
	LatencyLimit
	Interval
)

func (k LimitKind) String() string {
	switch k {
	case MemoryLimit:
		return "memory_limit"
	case UtilizationLimit:
		return "utilization_limit"
	case RespawnLimit:
		return "respawn_limit"
	case RespawnDelay:
		return "respawn_delay"
	case LatencyLimit:
		return "latency_limit"
	case Interval:
		return "interval"
	default:
		return "unknown"
	}
}

// ExitStatus sentinels recognized by the supervisor loop's ok() check.
const (
	ExitSuccess      = 0
	ExitCatastrophic = 78 // reserved project-wide, mirrors the original watchdog's EXIT_CATASTROPHIC
	ExitFailure      = 1
)

// ChildHandle is an opaque reference to a launched child process. Two
// handles compare equal iff they refer to the same OS process
// identity. The zero value is invalid and represents "no child".
type ChildHandle struct {
	pid   int
	valid bool
}

// NewChildHandle wraps a pid as a valid handle. A pid <= 0 yields an
// invalid handle.
func NewChildHandle(pid int) ChildHandle {
	if pid <= 0 {
		return ChildHandle{}
	}
	return ChildHandle{pid: pid, valid: true}
}

// Pid returns the OS process id. Meaningless if !IsValid().
func (h ChildHandle) Pid() int { return h.pid }

// IsValid reports whether this handle refers to a real process.
func (h ChildHandle) IsValid() bool { return h.valid }

// Equal reports whether two handles refer to the same process
// identity. Two invalid handles are never equal to each other.
func (h ChildHandle) Equal(other ChildHandle) bool {
	return h.valid && other.valid && h.pid == other.pid
}

// PerformanceState is the mutable per-child counter set consulted and
// updated by the sanity evaluator on every check.
type PerformanceState struct {
	SustainedLatency uint64
	UserTime         uint64
	SystemTime       uint64
	InitialFootprint uint64
	LastRespawnTime  int64

	// LastObservedAt is operator-visible only; no invariant or
	// evaluator decision depends on it.
	LastObservedAt time.Time
}

// Reset clears a state back to its zero value, preserving nothing,
// and then sets LastRespawnTime to respawnTime.
func (s *PerformanceState) Reset(respawnTime int64) {
	*s = PerformanceState{LastRespawnTime: respawnTime}
}

// Verdict is the outcome of one sanity check.
type Verdict int

const (
	Healthy Verdict = iota
	Unhealthy
	Foreign
)

func (v Verdict) String() string {
	switch v {
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	case Foreign:
		return "foreign"
	default:
		return "unknown"
	}
}

// ProcessRow is the subset of OS-process-table fields the sanity
// evaluator needs for one pid. Supplied by the collaborator behind
// the ProcessTable interface (see collaborators.go).
type ProcessRow struct {
	ParentPID      int
	UserTimeTicks  uint64
	SystemTimeTicks uint64
	ResidentBytes  uint64
	Path           string
}

// ProcessState is the outcome of a non-blocking liveness probe.
type ProcessState int

const (
	ProcessAlive ProcessState = iota
	ProcessExited
	ProcessError
)
