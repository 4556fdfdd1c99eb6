package watchdog

import "testing"

func newTestRunner(cfg Config, registry *Registry, launcher *fakeLauncher, table *fakeTable, clock *fakeClock, shutdown *fakeShutdown, sink *fakeSink) *Runner {
	return NewRunner(cfg, registry, launcher, table, clock, shutdown, sink, nil, selfPid)
}

func TestCreateWorkerInstallsHandleAndStampsRespawn(t *testing.T) {
	registry := NewRegistry(&fakeEnv{})
	launcher := newFakeLauncher()
	clock := newFakeClock(1000)
	r := newTestRunner(Config{Level: 1, UseWorker: true}, registry, launcher, newFakeTable(), clock, &fakeShutdown{}, &fakeSink{})

	r.createWorker()

	if !registry.Worker().IsValid() {
		t.Fatal("worker handle not installed")
	}
	if got := registry.WorkerLastRespawn(); got != clock.Now() {
		t.Fatalf("last_respawn_time = %d, want %d", got, clock.Now())
	}
}

func TestCreateWorkerBacksOffOnRapidRespawn(t *testing.T) {
	registry := NewRegistry(&fakeEnv{})
	launcher := newFakeLauncher()
	clock := newFakeClock(1000)
	r := newTestRunner(Config{Level: 1, UseWorker: true}, registry, launcher, newFakeTable(), clock, &fakeShutdown{}, &fakeSink{})

	start := clock.Now()
	// Seed restart_count=3 and force 4 instant exits within RESPAWN_LIMIT=20s,
	// matching spec scenario 4. The three rapid respawns back off
	// 5+2^4, 5+2^5 and 5+2^6 seconds (127s in all), above the 19s floor
	// asserted below.
	registry.IncrementRestartCount()
	registry.IncrementRestartCount()
	registry.IncrementRestartCount()

	r.createWorker() // 1st: last_respawn_time starts at 0, no back-off yet
	for i := 0; i < 3; i++ {
		r.createWorker() // now < RESPAWN_LIMIT since last call, triggers back-off
	}

	elapsed := clock.Now() - start
	if elapsed < 19 {
		t.Fatalf("elapsed = %ds, want >= 19s of accumulated back-off", elapsed)
	}
}

func TestCreateExtensionDropsOnSecondRapidFailure(t *testing.T) {
	registry := NewRegistry(&fakeEnv{})
	launcher := newFakeLauncher()
	clock := newFakeClock(1000)
	r := newTestRunner(Config{Level: 1}, registry, launcher, newFakeTable(), clock, &fakeShutdown{}, &fakeSink{})

	path := "/opt/ext/a"
	registry.AddExtension(path)

	if ok := r.createExtension(path); !ok {
		t.Fatal("first createExtension should succeed")
	}
	// Exits instantly, well within RESPAWN_LIMIT (20s at level 1).
	if ok := r.createExtension(path); ok {
		t.Fatal("second rapid createExtension should be dropped, not respawned")
	}
}

func TestWatchKillsUnhealthyChild(t *testing.T) {
	registry := NewRegistry(&fakeEnv{})
	launcher := newFakeLauncher()
	table := newFakeTable()
	clock := newFakeClock(1000)
	r := newTestRunner(Config{Level: 1}, registry, launcher, table, clock, &fakeShutdown{}, &fakeSink{})

	h := NewChildHandle(9001)
	registry.SetWorker(h)
	table.setRow(h.Pid(), ProcessRow{ParentPID: selfPid, ResidentBytes: 200 * 1024 * 1024}) // way past L1 50MB
	// initial_footprint starts at 0, so one check cannot trip memory:
	// first call sets InitialFootprint=resident, footprint=0 -> healthy.
	// Second call with a larger resident trips memory.
	r.watch(h, "")
	table.setRow(h.Pid(), ProcessRow{ParentPID: selfPid, ResidentBytes: 400 * 1024 * 1024})

	if ok := r.watch(h, ""); ok {
		t.Fatal("watch should report false for an unhealthy child")
	}
	if len(launcher.killed) != 1 || launcher.killed[0] != h.Pid() {
		t.Fatalf("expected kill(%d), got %v", h.Pid(), launcher.killed)
	}
}

func TestWatchForeignPidDoesNotSignal(t *testing.T) {
	registry := NewRegistry(&fakeEnv{})
	launcher := newFakeLauncher()
	table := newFakeTable()
	clock := newFakeClock(1000)
	r := newTestRunner(Config{Level: 1}, registry, launcher, table, clock, &fakeShutdown{}, &fakeSink{})

	h := NewChildHandle(9002)
	registry.SetWorker(h)
	table.setRow(h.Pid(), ProcessRow{ParentPID: 1, ResidentBytes: 1024}) // reused by init

	if ok := r.watch(h, ""); !ok {
		t.Fatal("watch should return true for a foreign pid (not our problem)")
	}
	if len(launcher.killed) != 0 {
		t.Fatal("a foreign pid must never be signaled")
	}
	if registry.Worker().IsValid() {
		t.Fatal("worker handle should be cleared after a foreign-pid detection")
	}
}

func TestOkStopsOnExitSuccessAndExitCatastrophic(t *testing.T) {
	registry := NewRegistry(&fakeEnv{})
	r := newTestRunner(Config{Level: 1, UseWorker: true}, registry, newFakeLauncher(), newFakeTable(), newFakeClock(0), &fakeShutdown{}, &fakeSink{})
	registry.SetWorker(NewChildHandle(1))

	registry.SetWorkerStatus(ExitSuccess)
	if r.ok() {
		t.Fatal("ok() should be false after EXIT_SUCCESS")
	}
	registry.SetWorkerStatus(ExitCatastrophic)
	if r.ok() {
		t.Fatal("ok() should be false after EXIT_CATASTROPHIC")
	}
}

func TestOkContinuesWithLiveExtensionsAndNoWorker(t *testing.T) {
	registry := NewRegistry(&fakeEnv{})
	r := newTestRunner(Config{Level: 1}, registry, newFakeLauncher(), newFakeTable(), newFakeClock(0), &fakeShutdown{}, &fakeSink{})
	registry.AddExtension("/opt/ext/a")
	registry.SetWorkerStatus(ExitFailure)

	if !r.ok() {
		t.Fatal("ok() should be true while an extension is still managed")
	}
}

func TestRunFirstLaunchDoesNotBackOff(t *testing.T) {
	registry := NewRegistry(&fakeEnv{})
	launcher := newFakeLauncher()
	clock := newFakeClock(1_700_000_000) // a realistic, non-zero wall clock
	sink := &fakeSink{}
	shutdown := &fakeShutdown{}
	r := newTestRunner(Config{Level: 1, UseWorker: true}, registry, launcher, newFakeTable(), clock, shutdown, sink)

	start := clock.Now()
	var clockBeforeSleep int64
	r.SetIterationHook(func() { clockBeforeSleep = clock.Now() })

	calls := 0
	r.Run(func() bool {
		calls++
		return calls >= 1 // stop right after the first iteration completes
	})

	if launcher.launchCount() != 1 {
		t.Fatalf("expected exactly one launch on the first iteration, got %d", launcher.launchCount())
	}
	if clockBeforeSleep != start {
		t.Fatalf("createWorker() backed off on the very first launch: clock advanced from %d to %d before the interval sleep; Run must seed worker state with ResetWorkerState(0), not the current time", start, clockBeforeSleep)
	}
}

func TestRunStopsWithoutLaunchingAfterFatesBound(t *testing.T) {
	registry := NewRegistry(&fakeEnv{})
	launcher := newFakeLauncher()
	clock := newFakeClock(1000)
	r := newTestRunner(Config{Level: 1, UseWorker: true}, registry, launcher, newFakeTable(), clock, &fakeShutdown{}, &fakeSink{})

	registry.BindFates()
	r.Run(nil)

	if launcher.launchCount() != 0 {
		t.Fatalf("no children should be launched once fates_bound is set before Run starts, got %d launches", launcher.launchCount())
	}
}
