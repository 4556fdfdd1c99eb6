package watchdog

import "fmt"

// Kind categorizes a watchdog.Error by the taxonomy in spec §7.
type Kind int

const (
	// Transient covers a child exit or sanity trip that is expected
	// to resolve via respawn.
	Transient Kind = iota
	// RapidRespawn means the child restarted faster than RESPAWN_LIMIT
	// permits.
	RapidRespawn
	// ForeignPID means the observed parent_pid no longer matches this
	// process; the pid has been reused by an unrelated process.
	ForeignPID
	// UnsafeBinary means the permissions check on a child binary or
	// its containing directory failed.
	UnsafeBinary
	// LaunchFailure means launchWorker/launchExtension returned no
	// handle.
	LaunchFailure
	// SignalCaught means fates_bound was observed true.
	SignalCaught
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case RapidRespawn:
		return "rapid_respawn"
	case ForeignPID:
		return "foreign_pid"
	case UnsafeBinary:
		return "unsafe_binary"
	case LaunchFailure:
		return "launch_failure"
	case SignalCaught:
		return "signal_caught"
	default:
		return "unknown"
	}
}

// Error is the watchdog's typed failure. Path is the extension path,
// empty for the worker. Pid is the offending child's pid, 0 if none.
type Error struct {
	Kind Kind
	Path string
	Pid  int
	Err  error
}

func (e *Error) Error() string {
	subject := "worker"
	if e.Path != "" {
		subject = e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("watchdog: %s: %s (pid=%d): %v", e.Kind, subject, e.Pid, e.Err)
	}
	return fmt.Sprintf("watchdog: %s: %s (pid=%d)", e.Kind, subject, e.Pid)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether this error, per spec §7's taxonomy, demands a
// shutdown request rather than a retry/drop. A launch failure is
// catastrophic for worker and extension alike (§4.4 createExtension
// step 4); an unsafe-binary permissions failure is fatal only for the
// worker — an extension with unsafe permissions is simply dropped.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case LaunchFailure:
		return true
	case UnsafeBinary:
		return e.Path == ""
	default:
		return false
	}
}

func newError(kind Kind, path string, pid int, err error) *Error {
	return &Error{Kind: kind, Path: path, Pid: pid, Err: err}
}
