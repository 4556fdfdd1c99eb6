package procexec

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/pathcl/osquery/internal/watchdog"
	"github.com/pathcl/osquery/pkg/logging"
)

// Exec is the os/exec + syscall backed watchdog.Launcher. Grounded on
// shared/pkg/wrapper/wrapper.go's Run/wait/cleanup and
// internal/observe's non-blocking status-probe pattern.
type Exec struct {
	mu      sync.Mutex
	cmds    map[int]*exec.Cmd
	exits   map[int]exitResult
	log     *logging.Logger
}

type exitResult struct {
	state watchdog.ProcessState
	code  int
}

// NewExec constructs an Exec launcher.
func NewExec(log *logging.Logger) *Exec {
	return &Exec{
		cmds:  make(map[int]*exec.Cmd),
		exits: make(map[int]exitResult),
		log:   log,
	}
}

// CheckStatus performs a non-blocking WNOHANG-style liveness probe:
// if the child has already exited (observed by the reaping goroutine
// started in launch), it returns the cached result once and drops it,
// as waitpid reports an exit only once; otherwise it signals the pid
// with 0 to confirm it is still alive (an already-reaped child then
// reports ProcessError).
func (e *Exec) CheckStatus(h watchdog.ChildHandle) (watchdog.ProcessState, int, error) {
	e.mu.Lock()
	if r, ok := e.exits[h.Pid()]; ok {
		delete(e.exits, h.Pid())
		e.mu.Unlock()
		return r.state, r.code, nil
	}
	e.mu.Unlock()

	proc, err := os.FindProcess(h.Pid())
	if err != nil {
		return watchdog.ProcessError, 0, err
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return watchdog.ProcessError, 0, err
	}
	return watchdog.ProcessAlive, 0, nil
}

// LaunchWorker starts the worker binary in its own process group so
// it survives a watchdog crash, then reaps it asynchronously and
// records its exit for the next CheckStatus call.
func (e *Exec) LaunchWorker(path string, argv []string, env []string) (watchdog.ChildHandle, error) {
	return e.launch(path, argv, env, RoleWorker)
}

// LaunchExtension starts an extension binary with the flags the
// supervisor forwards to it (identity/socket/timeout/interval/verbose).
func (e *Exec) LaunchExtension(path string, ext watchdog.ExtensionSpec) (watchdog.ChildHandle, error) {
	argv := []string{
		"--socket", ext.Socket,
		"--timeout", fmt.Sprintf("%d", int(ext.Timeout.Seconds())),
		"--interval", fmt.Sprintf("%d", int(ext.Interval.Seconds())),
	}
	if ext.Identity != "" {
		argv = append(argv, "--extension", ext.Identity)
	}
	if ext.Verbose {
		argv = append(argv, "--verbose")
	}
	return e.launch(path, argv, nil, RoleExtension)
}

func (e *Exec) launch(path string, argv []string, env []string, role Role) (watchdog.ChildHandle, error) {
	cmd := exec.Command(path, argv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: 0}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	if err := cmd.Start(); err != nil {
		return watchdog.ChildHandle{}, fmt.Errorf("launch %s: %w", path, err)
	}

	pid := cmd.Process.Pid
	e.mu.Lock()
	e.cmds[pid] = cmd
	e.mu.Unlock()

	// Bind this child's identity once; every subsequent log line about
	// it (here and in reap) carries pid/role/path without repeating
	// them at each call site.
	var childLog *logging.Logger
	if e.log != nil {
		childLog = e.log.WithField("pid", pid).WithField("role", string(role)).WithField("path", path)
	}
	event := LifecycleEvent{Pid: pid, Role: role, Path: path, State: "launched", Message: "launched child"}
	if childLog != nil {
		childLog.Info(event.Message)
	}

	go e.reap(pid, cmd, role, path, childLog)

	return watchdog.NewChildHandle(pid), nil
}

// reap blocks on cmd.Wait in its own goroutine (the only blocking
// wait in this package) and stores the exit result so CheckStatus
// never blocks the supervisor loop. childLog is the per-child
// sub-logger bound in launch, or nil if the caller didn't supply one.
func (e *Exec) reap(pid int, cmd *exec.Cmd, role Role, path string, childLog *logging.Logger) {
	err := cmd.Wait()

	event := LifecycleEvent{Pid: pid, Role: role, Path: path, State: "exited", ExitReason: ExitReasonSuccess}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			event.ExitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				event.ExitReason = determineExitReason(event.ExitCode, status)
				if status.Signaled() {
					event.Signal = signalName(status.Signal())
				}
			}
		} else {
			event.ExitCode = 1
			event.ExitReason = ExitReasonError
		}
	}
	event.Message = fmt.Sprintf("child exited: %s", event.ExitReason)

	e.mu.Lock()
	e.exits[pid] = exitResult{state: watchdog.ProcessExited, code: event.ExitCode}
	delete(e.cmds, pid)
	e.mu.Unlock()

	if childLog != nil {
		childLog.Info(event.Message, map[string]interface{}{
			"exit_code": event.ExitCode, "reason": string(event.ExitReason), "signal": event.Signal,
		})
	}
}

// Kill sends SIGTERM to the child's own pid; other members of its
// process group are not signalled.
func (e *Exec) Kill(h watchdog.ChildHandle) error {
	e.mu.Lock()
	cmd, ok := e.cmds[h.Pid()]
	e.mu.Unlock()
	if !ok || cmd.Process == nil {
		return syscall.Kill(h.Pid(), syscall.SIGTERM)
	}
	return cmd.Process.Signal(syscall.SIGTERM)
}

// CleanupDefunct clears cached exit results for children that have
// already been reaped and observed by the loop, matching the
// spec's "reap zombies" hygiene step. The actual reap happens in the
// reap() goroutine; this just drops stale bookkeeping.
func (e *Exec) CleanupDefunct() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for pid, r := range e.exits {
		if r.state == watchdog.ProcessExited {
			delete(e.exits, pid)
		}
	}
}

// IsProcessDead is the worker-side Parent Watcher's signal-0 probe,
// grounded on the wrapper's processExists.
func (e *Exec) IsProcessDead(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	return proc.Signal(syscall.Signal(0)) != nil
}

// SafePermissions checks that file is owned by the caller's uid (when
// requireOwner) and is not group/world-writable, and likewise for its
// containing directory. This is the one collaborator implemented on
// the standard library rather than a pack dependency: no example
// repo or ecosystem library in the retrieval pack performs filesystem
// ACL/owner checks, so os.Stat + syscall.Stat_t is the idiomatic Go
// substitute for the original's safePermissions predicate.
func (e *Exec) SafePermissions(dir, file string, requireOwner bool) bool {
	if !checkPermissions(file, requireOwner) {
		return false
	}
	if dir == "" {
		dir = filepath.Dir(file)
	}
	return checkPermissions(dir, requireOwner)
}

func checkPermissions(path string, requireOwner bool) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.Mode()&0022 != 0 {
		return false // group- or world-writable
	}
	if !requireOwner {
		return true
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return true
	}
	return stat.Uid == uint32(os.Geteuid())
}

// ResolveSelfPath resolves the watchdog's own executable, for re-exec
// as the worker.
func (e *Exec) ResolveSelfPath() (string, error) {
	path, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve self path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path, nil
	}
	return resolved, nil
}
