package watchdog

import "time"

// ProcessTable is the OS-process-table query collaborator (spec §6):
// given a pid, return the fields the Sanity Evaluator needs. Backed
// in production by internal/procsnap.
type ProcessTable interface {
	Row(pid int) (ProcessRow, error)
}

// Launcher is the platform-process collaborator: spawn, signal, wait,
// and reap. Backed in production by internal/procexec.
type Launcher interface {
	// CheckStatus performs a non-blocking liveness probe (WNOHANG
	// semantics) on a previously launched child.
	CheckStatus(h ChildHandle) (ProcessState, int, error)
	// LaunchWorker starts the worker binary at path with argv, with
	// extra environment variables (e.g. OSQUERY_EXTENSIONS) appended.
	LaunchWorker(path string, argv []string, env []string) (ChildHandle, error)
	// LaunchExtension starts an extension binary with the given
	// socket/timeout/interval/verbose flags.
	LaunchExtension(path string, ext ExtensionSpec) (ChildHandle, error)
	// Kill sends a terminate signal to the child.
	Kill(h ChildHandle) error
	// CleanupDefunct performs a non-blocking reap of zombie children.
	CleanupDefunct()
	// IsProcessDead reports whether pid is no longer alive (signal-0
	// probe), used by the worker-side Parent Watcher.
	IsProcessDead(pid int) bool
	// SafePermissions checks owner/mode on a binary and its containing
	// directory.
	SafePermissions(dir, file string, requireOwner bool) bool
	// ResolveSelfPath resolves the current process's own executable
	// path, for re-exec as a worker. Returns an error if unavailable
	// or ambiguous.
	ResolveSelfPath() (string, error)
}

// ExtensionSpec carries the per-extension flag values forwarded to
// launchExtension.
type ExtensionSpec struct {
	Identity string
	Socket   string
	Timeout  time.Duration
	Interval time.Duration
	Verbose  bool
}

// Clock supplies time and sleep so tests can fake both.
type Clock interface {
	Now() int64 // unix seconds, matches getUnixTime()
	Sleep(d time.Duration)
}

// StatusLogSink is the buffered status-log flush collaborator.
type StatusLogSink interface {
	RelayStatusLogs()
}

// EnvAccessor is the env-var get/set collaborator.
type EnvAccessor interface {
	Setenv(key, value string) error
	Getenv(key string) (string, bool)
}

// ShutdownRequester is the top-level initializer's shutdown facility.
type ShutdownRequester interface {
	RequestShutdown(code int)
}

// Interrupted is polled once per loop iteration and by the Parent
// Watcher; it lets the runnable host signal an out-of-band stop
// (e.g. a second SIGTERM during a long sleep) without involving the
// registry's fates_bound flag.
type Interrupted func() bool
