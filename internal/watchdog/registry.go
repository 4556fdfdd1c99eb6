package watchdog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// extensionsEnvVar is read by a worker to decide whether to wait for
// extension plugins to register before accepting queries (spec §6).
const extensionsEnvVar = "OSQUERY_EXTENSIONS"

// Registry is the process-wide supervisor singleton (spec §3). All
// mutating and reading access to its fields is serialised by mu; mu
// is never held across a process launch, a kill/wait syscall, an OS
// process-table query, or a sleep.
type Registry struct {
	mu sync.Mutex

	instanceID uuid.UUID

	worker       ChildHandle
	workerState  PerformanceState
	workerStatus int
	restartCount uint64
	fatesBound   bool

	extensions      map[string]ChildHandle
	extensionStates map[string]*PerformanceState

	env EnvAccessor
}

// NewRegistry constructs an empty registry, stamping a fresh instance
// id for log correlation across watchdog restarts. workerStatus starts
// at -1 ("no exit observed yet"), distinct from ExitSuccess, so ok()
// does not mistake a fresh registry for a gracefully exited worker.
func NewRegistry(env EnvAccessor) *Registry {
	return &Registry{
		instanceID:      uuid.New(),
		workerStatus:    -1,
		extensions:      make(map[string]ChildHandle),
		extensionStates: make(map[string]*PerformanceState),
		env:             env,
	}
}

// InstanceID returns this incarnation's correlation id.
func (r *Registry) InstanceID() uuid.UUID { return r.instanceID }

// Worker returns the current worker handle.
func (r *Registry) Worker() ChildHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.worker
}

// SetWorker installs a new worker handle.
func (r *Registry) SetWorker(h ChildHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worker = h
}

// ResetWorker invalidates the worker handle without touching its
// PerformanceState; callers reset state separately if they need to.
func (r *Registry) ResetWorker() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worker = ChildHandle{}
}

// WorkerStatus returns the last observed worker exit code.
func (r *Registry) WorkerStatus() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workerStatus
}

// SetWorkerStatus stores the worker's last observed exit code.
func (r *Registry) SetWorkerStatus(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workerStatus = code
}

// RestartCount returns the monotonic restart counter.
func (r *Registry) RestartCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restartCount
}

// IncrementRestartCount bumps the restart counter and returns the new
// value.
func (r *Registry) IncrementRestartCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restartCount++
	return r.restartCount
}

// FatesBound reports whether a signal handler has requested shutdown.
func (r *Registry) FatesBound() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatesBound
}

// BindFates sets fates_bound; invariant 5 requires the loop to stop
// launching children on its next boundary once this is observed true.
func (r *Registry) BindFates() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatesBound = true
}

// AddExtension inserts (path, invalid-handle) and a zero
// PerformanceState, maintaining invariant 1 (identical key sets).
func (r *Registry) AddExtension(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions[path] = ChildHandle{}
	r.extensionStates[path] = &PerformanceState{}
}

// SetExtension replaces the stored handle for path. The state entry
// must already exist (AddExtension having been called first); if it
// doesn't, SetExtension creates one to preserve invariant 1.
func (r *Registry) SetExtension(path string, h ChildHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions[path] = h
	if _, ok := r.extensionStates[path]; !ok {
		r.extensionStates[path] = &PerformanceState{}
	}
}

// RemoveExtension deletes both the handle and state entries for path.
func (r *Registry) RemoveExtension(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.extensions, path)
	delete(r.extensionStates, path)
}

// Extensions returns a shallow copy of the path->handle map, safe for
// the caller to iterate without holding the lock.
func (r *Registry) Extensions() map[string]ChildHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ChildHandle, len(r.extensions))
	for k, v := range r.extensions {
		out[k] = v
	}
	return out
}

// HasManagedExtensions is true if the extensions map is non-empty, or
// if the worker-visible env var is set (a worker checks this without
// seeing the map itself).
func (r *Registry) HasManagedExtensions() bool {
	r.mu.Lock()
	nonEmpty := len(r.extensions) > 0
	r.mu.Unlock()
	if nonEmpty {
		return true
	}
	if r.env == nil {
		return false
	}
	_, ok := r.env.Getenv(extensionsEnvVar)
	return ok
}

// StateForHandle resolves a handle to its PerformanceState: the
// worker's state if h is the worker, otherwise the first extension
// whose stored handle equals h. If no match is found, returns a
// throwaway state the caller must not expect to persist.
func (r *Registry) StateForHandle(h ChildHandle) *PerformanceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h.Equal(r.worker) {
		return &r.workerState
	}
	for path, stored := range r.extensions {
		if stored.Equal(h) {
			return r.extensionStates[path]
		}
	}
	return &PerformanceState{}
}

// StateForPath is a direct extension lookup by path.
func (r *Registry) StateForPath(path string) *PerformanceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.extensionStates[path]; ok {
		return s
	}
	return &PerformanceState{}
}

// WorkerState returns the worker's PerformanceState.
func (r *Registry) WorkerState() *PerformanceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &r.workerState
}

// WorkerLastRespawn returns the worker's last_respawn_time.
func (r *Registry) WorkerLastRespawn() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workerState.LastRespawnTime
}

// ResetWorkerState clears the worker's PerformanceState and stamps
// last_respawn_time, satisfying invariant 4 (initial_footprint
// cleared on reset) and invariant 3 (last_respawn_time
// non-decreasing, enforced by callers passing "now", or 0 once at
// Run's entry before any worker has been launched).
func (r *Registry) ResetWorkerState(now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workerState.Reset(now)
}

// ExtensionLastRespawn returns an extension's last_respawn_time, or 0
// if the path is unknown.
func (r *Registry) ExtensionLastRespawn(path string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.extensionStates[path]; ok {
		return s.LastRespawnTime
	}
	return 0
}

// ResetExtensionState clears an extension's PerformanceState and
// stamps last_respawn_time, creating the entry if absent.
func (r *Registry) ResetExtensionState(path string, now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.extensionStates[path]
	if !ok {
		s = &PerformanceState{}
		r.extensionStates[path] = s
	}
	s.Reset(now)
}

// Evaluate runs the Sanity Evaluator against h under the registry
// lock, locating h's PerformanceState the same way StateForHandle
// does, and — on a Foreign verdict — immediately clears the owning
// handle (worker reset to invalid, or extension handle replaced with
// an invalid one) and its PerformanceState per §4.3 step 6, so the
// next process to occupy that slot starts with a clean counter set
// instead of inheriting whatever a foreign process accumulated.
// path is "" for the worker.
func (r *Registry) Evaluate(h ChildHandle, path string, row ProcessRow, rowOK bool, level, selfPid int) Verdict {
	r.mu.Lock()
	defer r.mu.Unlock()

	var state *PerformanceState
	isWorker := h.Equal(r.worker)
	if isWorker {
		state = &r.workerState
	} else if path != "" {
		s, ok := r.extensionStates[path]
		if !ok {
			s = &PerformanceState{}
			r.extensionStates[path] = s
		}
		state = s
	} else {
		state = &PerformanceState{}
	}

	verdict := evaluateSanity(level, row, rowOK, state, selfPid)
	if verdict == Foreign {
		state.Reset(0)
		if isWorker {
			r.worker = ChildHandle{}
		} else if path != "" {
			r.extensions[path] = ChildHandle{}
		}
	}
	return verdict
}

// Snapshot is a read-only, deep-copied view of the registry, consumed
// only by internal/adminhttp and internal/telemetry — never by the
// control loop — so a slow consumer of the snapshot can never stall
// the loop's own lock usage.
type Snapshot struct {
	InstanceID      string                      `json:"instance_id"`
	Worker          ChildHandleView             `json:"worker"`
	WorkerState     PerformanceState            `json:"worker_state"`
	WorkerStatus    int                         `json:"worker_status"`
	RestartCount    uint64                      `json:"restart_count"`
	FatesBound      bool                        `json:"fates_bound"`
	Extensions      map[string]ChildHandleView  `json:"extensions"`
	ExtensionStates map[string]PerformanceState `json:"extension_states"`
	ObservedAt      time.Time                   `json:"observed_at"`
}

// ChildHandleView is the JSON-friendly projection of a ChildHandle.
type ChildHandleView struct {
	Pid   int  `json:"pid"`
	Valid bool `json:"valid"`
}

func viewOf(h ChildHandle) ChildHandleView {
	return ChildHandleView{Pid: h.pid, Valid: h.valid}
}

// TakeSnapshot copies the registry's state under the lock, observedAt
// stamped by the caller (the registry itself must not call time.Now
// to stay deterministic under test).
func (r *Registry) TakeSnapshot(observedAt time.Time) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	exts := make(map[string]ChildHandleView, len(r.extensions))
	for k, v := range r.extensions {
		exts[k] = viewOf(v)
	}
	states := make(map[string]PerformanceState, len(r.extensionStates))
	for k, v := range r.extensionStates {
		states[k] = *v
	}
	return Snapshot{
		InstanceID:      r.instanceID.String(),
		Worker:          viewOf(r.worker),
		WorkerState:     r.workerState,
		WorkerStatus:    r.workerStatus,
		RestartCount:    r.restartCount,
		FatesBound:      r.fatesBound,
		Extensions:      exts,
		ExtensionStates: states,
		ObservedAt:      observedAt,
	}
}
