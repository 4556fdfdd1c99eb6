package watchdog

import (
	"path/filepath"
	"time"

	"github.com/pathcl/osquery/pkg/logging"
)

// ExtensionManifestEntry describes one extension to manage, as loaded
// by internal/watchdogcfg from the extensions manifest.
type ExtensionManifestEntry struct {
	Path     string
	Identity string
	Socket   string
	Timeout  time.Duration
	Interval time.Duration
}

// Config parameterizes a Runner. Produced by internal/watchdogcfg.
type Config struct {
	Level           int
	DisableWatchdog bool
	UseWorker       bool
	WorkerArgv      []string
	Extensions      []ExtensionManifestEntry
	Verbose         bool
}

// Runner is the Supervisor Loop (spec §4.4): it owns no state of its
// own beyond its collaborators and a reference to the Registry.
type Runner struct {
	cfg      Config
	registry *Registry
	launcher Launcher
	table    ProcessTable
	clock    Clock
	shutdown ShutdownRequester
	sink     StatusLogSink
	log      *logging.Logger
	selfPid  int

	onIteration func()
}

// SetIterationHook registers fn to run once per completed loop
// iteration, after the worker and all extensions have been watched
// and before the interval sleep. Used only for observability (e.g. the
// admin endpoint's /healthz readiness bit); it never influences
// control flow.
func (r *Runner) SetIterationHook(fn func()) {
	r.onIteration = fn
}

// NewRunner wires the Supervisor Loop's collaborators together.
func NewRunner(cfg Config, registry *Registry, launcher Launcher, table ProcessTable, clock Clock, shutdown ShutdownRequester, sink StatusLogSink, log *logging.Logger, selfPid int) *Runner {
	return &Runner{
		cfg:      cfg,
		registry: registry,
		launcher: launcher,
		table:    table,
		clock:    clock,
		shutdown: shutdown,
		sink:     sink,
		log:      log,
		selfPid:  selfPid,
	}
}

// Run executes the control loop until fates_bound, ok() returns
// false, or interrupted reports true. Entry precondition per spec:
// worker counters reset to zero.
func (r *Runner) Run(interrupted Interrupted) {
	r.registry.ResetWorkerState(0)
	for _, e := range r.cfg.Extensions {
		r.registry.AddExtension(e.Path)
	}

	// Mirrors the source's do-while: the body always runs at least once,
	// and ok() is only consulted at the bottom of each iteration. The
	// registry's worker_status starts at -1 (see NewRegistry), so ok()
	// stops the loop only after a worker has actually exited with
	// EXIT_SUCCESS or EXIT_CATASTROPHIC.
	for {
		if r.cfg.UseWorker {
			if !r.watch(r.registry.Worker(), "") {
				if r.registry.FatesBound() {
					return
				}
				r.createWorker()
			}
		}

		var toRemove []string
		for path, handle := range r.registry.Extensions() {
			if !r.watch(handle, path) {
				if r.registry.FatesBound() {
					return
				}
				if !r.createExtension(path) {
					toRemove = append(toRemove, path)
				}
			}
		}
		for _, path := range toRemove {
			r.registry.RemoveExtension(path)
			if r.log != nil {
				r.log.Warn("dropping extension after repeated failure", map[string]interface{}{"path": path})
			}
		}

		if r.onIteration != nil {
			r.onIteration()
		}

		r.clock.Sleep(time.Duration(Limit(Interval, r.cfg.Level)) * time.Second)

		if interrupted != nil && interrupted() {
			return
		}
		if !r.ok() {
			return
		}
	}
}

// ok mirrors spec §4.4's ok(): the worker's last exit status decides
// whether the whole supervisor stops, independent of extensions.
func (r *Runner) ok() bool {
	status := r.registry.WorkerStatus()
	if status == ExitSuccess || status == ExitCatastrophic {
		return false
	}
	if r.registry.Worker().IsValid() {
		return true
	}
	return len(r.registry.Extensions()) > 0
}

// watch implements spec §4.4's watch(child): probes liveness, runs
// the Sanity Evaluator when alive, and returns whether the loop
// should treat this child as still "ours" this iteration.
func (r *Runner) watch(h ChildHandle, path string) bool {
	if !h.IsValid() {
		return false
	}

	state, exitCode, err := r.launcher.CheckStatus(h)
	if r.registry.FatesBound() {
		return false
	}
	if err != nil || state == ProcessError {
		return false
	}

	switch state {
	case ProcessAlive:
		row, rowErr := r.table.Row(h.Pid())
		verdict := r.registry.Evaluate(h, path, row, rowErr == nil, r.cfg.Level, r.selfPid)
		switch verdict {
		case Unhealthy:
			_ = r.launcher.Kill(h)
			r.launcher.CleanupDefunct()
			if r.log != nil {
				r.log.Warn("child failed sanity check, terminating", map[string]interface{}{"pid": h.Pid(), "path": path})
			}
			return false
		case Foreign:
			return true
		default: // Healthy
			if r.cfg.UseWorker && r.sink != nil {
				r.sink.RelayStatusLogs()
			}
			return true
		}
	case ProcessExited:
		if path == "" {
			r.registry.SetWorkerStatus(exitCode)
		}
		return true
	default:
		return false
	}
}

// createWorker implements spec §4.4's createWorker().
func (r *Runner) createWorker() {
	now := r.clock.Now()
	last := r.registry.WorkerLastRespawn()
	respawnLimit := Limit(RespawnLimit, r.cfg.Level)
	if last > now-respawnLimit {
		n := r.registry.IncrementRestartCount()
		backoff := Limit(RespawnDelay, r.cfg.Level)*1000 + (int64(1)<<n)*1000
		if r.log != nil {
			r.log.Warn("worker respawning too quickly, backing off", map[string]interface{}{"restart_count": n, "backoff_ms": backoff})
		}
		r.clock.Sleep(time.Duration(backoff) * time.Millisecond)
	}

	path, err := r.launcher.ResolveSelfPath()
	if err != nil {
		r.fatal(newError(LaunchFailure, "", 0, err))
		return
	}

	env := []string{"OSQUERY_WORKER=true"}
	if r.registry.HasManagedExtensions() {
		env = append(env, "OSQUERY_EXTENSIONS=true")
	}

	if !r.launcher.SafePermissions(filepath.Dir(path), path, true) {
		r.fatal(newError(UnsafeBinary, "", 0, nil))
		return
	}

	h, err := r.launcher.LaunchWorker(path, r.cfg.WorkerArgv, env)
	if err != nil {
		r.fatal(newError(LaunchFailure, "", 0, err))
		return
	}

	r.registry.SetWorker(h)
	r.registry.ResetWorkerState(r.clock.Now())
}

// createExtension implements spec §4.4's createExtension(path).
// Extensions never back off; a too-fast respawn simply drops them.
func (r *Runner) createExtension(path string) bool {
	now := r.clock.Now()
	last := r.registry.ExtensionLastRespawn(path)
	if last > now-Limit(RespawnLimit, r.cfg.Level) {
		return false
	}

	if !r.launcher.SafePermissions(filepath.Dir(path), path, true) {
		return false
	}

	spec := r.extensionSpec(path)
	h, err := r.launcher.LaunchExtension(path, spec)
	if err != nil {
		r.fatal(newError(LaunchFailure, path, 0, err))
		return false
	}

	r.registry.SetExtension(path, h)
	r.registry.ResetExtensionState(path, r.clock.Now())
	return true
}

func (r *Runner) extensionSpec(path string) ExtensionSpec {
	for _, e := range r.cfg.Extensions {
		if e.Path == path {
			return ExtensionSpec{Identity: e.Identity, Socket: e.Socket, Timeout: e.Timeout, Interval: e.Interval, Verbose: r.cfg.Verbose}
		}
	}
	return ExtensionSpec{Verbose: r.cfg.Verbose}
}

func (r *Runner) fatal(err *Error) {
	if r.log != nil {
		r.log.Error(err.Error(), nil)
	}
	if err.Fatal() && r.shutdown != nil {
		r.shutdown.RequestShutdown(ExitFailure)
	}
}
