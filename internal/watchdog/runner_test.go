package watchdog

import (
	"sync"
	"time"
)

// fakeClock is a deterministic, manually-advanced Clock. Sleep
// advances the virtual clock instead of blocking, so back-off tests
// run instantly while still exercising the real accumulated duration.
type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func newFakeClock(start int64) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += int64(d / time.Second)
	if d%time.Second != 0 {
		c.now++ // round partial seconds up, matching getUnixTime()'s integer seconds
	}
}

// fakeLauncher is a scripted Launcher for exercising the Supervisor
// Loop without touching real processes.
type fakeLauncher struct {
	mu sync.Mutex

	statuses   map[int]ProcessState
	exitCodes  map[int]int
	nextPid    int
	launchErr  error
	safe       bool
	selfPath   string
	selfErr    error
	killed     []int
	launches   int
	extLaunches int
	deadPids   map[int]bool
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		statuses:  map[int]ProcessState{},
		exitCodes: map[int]int{},
		nextPid:   1000,
		safe:      true,
		selfPath:  "/usr/bin/osqueryd",
		deadPids:  map[int]bool{},
	}
}

func (f *fakeLauncher) CheckStatus(h ChildHandle) (ProcessState, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[h.Pid()]
	if !ok {
		return ProcessAlive, 0, nil
	}
	return st, f.exitCodes[h.Pid()], nil
}

func (f *fakeLauncher) LaunchWorker(path string, argv []string, env []string) (ChildHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launches++
	if f.launchErr != nil {
		return ChildHandle{}, f.launchErr
	}
	f.nextPid++
	return NewChildHandle(f.nextPid), nil
}

func (f *fakeLauncher) LaunchExtension(path string, ext ExtensionSpec) (ChildHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extLaunches++
	if f.launchErr != nil {
		return ChildHandle{}, f.launchErr
	}
	f.nextPid++
	return NewChildHandle(f.nextPid), nil
}

func (f *fakeLauncher) Kill(h ChildHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, h.Pid())
	return nil
}

func (f *fakeLauncher) CleanupDefunct() {}

func (f *fakeLauncher) IsProcessDead(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadPids[pid]
}

func (f *fakeLauncher) SafePermissions(dir, file string, requireOwner bool) bool {
	return f.safe
}

func (f *fakeLauncher) ResolveSelfPath() (string, error) {
	return f.selfPath, f.selfErr
}

func (f *fakeLauncher) setExited(pid, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[pid] = ProcessExited
	f.exitCodes[pid] = code
}

func (f *fakeLauncher) launchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.launches
}

// fakeTable is a scripted ProcessTable.
type fakeTable struct {
	mu   sync.Mutex
	rows map[int]ProcessRow
	errs map[int]error
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: map[int]ProcessRow{}, errs: map[int]error{}}
}

func (f *fakeTable) Row(pid int) (ProcessRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[pid]; ok {
		return ProcessRow{}, err
	}
	return f.rows[pid], nil
}

func (f *fakeTable) setRow(pid int, row ProcessRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[pid] = row
}

// fakeShutdown records shutdown requests instead of exiting.
type fakeShutdown struct {
	mu       sync.Mutex
	requests []int
}

func (f *fakeShutdown) RequestShutdown(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, code)
}

func (f *fakeShutdown) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeSink struct {
	flushes int
}

func (f *fakeSink) RelayStatusLogs() { f.flushes++ }
