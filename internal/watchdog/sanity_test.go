package watchdog

import "testing"

const selfPid = 100

func TestEvaluateSanityMissingRowIsUnhealthy(t *testing.T) {
	state := &PerformanceState{}
	if v := evaluateSanity(1, ProcessRow{}, false, state, selfPid); v != Unhealthy {
		t.Fatalf("missing row: got %v, want Unhealthy", v)
	}
}

func TestEvaluateSanityHealthyBaseline(t *testing.T) {
	state := &PerformanceState{}
	row := ProcessRow{ParentPID: selfPid, UserTimeTicks: 3, SystemTimeTicks: 1, ResidentBytes: 10 * 1024 * 1024}
	// First call establishes initial_footprint; footprint is 0 on this check.
	if v := evaluateSanity(1, row, true, state, selfPid); v != Healthy {
		t.Fatalf("got %v, want Healthy", v)
	}
	if state.InitialFootprint != row.ResidentBytes {
		t.Fatalf("initial_footprint = %d, want %d", state.InitialFootprint, row.ResidentBytes)
	}
	if state.SustainedLatency != 0 {
		t.Fatalf("sustained_latency = %d, want 0", state.SustainedLatency)
	}
}

func TestEvaluateSanityCPUTripAfterSustainedIntervals(t *testing.T) {
	// level=1: INTERVAL=3, UTILIZATION_LIMIT=80, LATENCY_LIMIT=6.
	// ceil(6/3) = 2: the 2nd consecutive trip reports Unhealthy.
	state := &PerformanceState{}
	// user_time_ticks is a cumulative OS counter; simulate ~90% sustained
	// CPU by growing it by 300 ticks every check (u = 300/iv = 100/s,
	// comfortably past limit(UTILIZATION_LIMIT, L1) = 80).
	rowAt := func(cumulative uint64) ProcessRow {
		return ProcessRow{ParentPID: selfPid, UserTimeTicks: cumulative, ResidentBytes: 1024}
	}

	v1 := evaluateSanity(1, rowAt(300), true, state, selfPid)
	if v1 != Healthy {
		t.Fatalf("check 1: got %v, want Healthy (sustained_latency=1, 1*iv=3 < limit 6)", v1)
	}
	v2 := evaluateSanity(1, rowAt(600), true, state, selfPid)
	if v2 != Unhealthy {
		t.Fatalf("check 2: got %v, want Unhealthy (sustained_latency=2, 2*iv=6 >= limit 6)", v2)
	}
}

func TestEvaluateSanityMemoryTrip(t *testing.T) {
	state := &PerformanceState{}
	baseline := ProcessRow{ParentPID: selfPid, ResidentBytes: 10 * 1024 * 1024}
	if v := evaluateSanity(1, baseline, true, state, selfPid); v != Healthy {
		t.Fatalf("baseline check: got %v, want Healthy", v)
	}
	grown := ProcessRow{ParentPID: selfPid, ResidentBytes: 70 * 1024 * 1024} // +60MB over baseline, limit(L1)=50MB
	if v := evaluateSanity(1, grown, true, state, selfPid); v != Unhealthy {
		t.Fatalf("grown check: got %v, want Unhealthy", v)
	}
}

func TestEvaluateSanityForeignPid(t *testing.T) {
	state := &PerformanceState{}
	row := ProcessRow{ParentPID: 1, ResidentBytes: 1024}
	if v := evaluateSanity(1, row, true, state, selfPid); v != Foreign {
		t.Fatalf("got %v, want Foreign", v)
	}
}

func TestEvaluateSanityResetClearsState(t *testing.T) {
	state := &PerformanceState{SustainedLatency: 5, InitialFootprint: 123, UserTime: 7}
	state.Reset(42)
	if state.SustainedLatency != 0 || state.InitialFootprint != 0 || state.UserTime != 0 {
		t.Fatalf("Reset did not clear counters: %+v", state)
	}
	if state.LastRespawnTime != 42 {
		t.Fatalf("Reset did not stamp last_respawn_time: got %d", state.LastRespawnTime)
	}
}
