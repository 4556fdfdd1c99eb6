package watchdog

// evaluateSanity implements the nine-step Sanity Evaluator (spec
// §4.3). row is the OS-process-table snapshot for child's pid; ok
// is false if the row could not be read, in which case the child is
// reported unhealthy without touching state. selfPid is the
// supervisor's own pid, used by the foreign-pid check.
//
// The ticks/interval division in step 2 is an intentional coarse rate
// approximation, not a delta over actual elapsed time; it is
// preserved verbatim for behavioural parity with the source this was
// ported from and must not be "fixed" into a real delta.
func evaluateSanity(level int, row ProcessRow, ok bool, state *PerformanceState, selfPid int) Verdict {
	if !ok {
		return Unhealthy
	}

	iv := Limit(Interval, level)
	if iv < 1 {
		iv = 1
	}

	u := int64(row.UserTimeTicks) / iv
	s := int64(row.SystemTimeTicks) / iv

	utilLimit := Limit(UtilizationLimit, level)
	if u-int64(state.UserTime) > utilLimit || s-int64(state.SystemTime) > utilLimit {
		state.SustainedLatency++
	} else {
		state.SustainedLatency = 0
	}

	state.UserTime = uint64(u)
	state.SystemTime = uint64(s)

	var footprint uint64
	if state.InitialFootprint == 0 {
		state.InitialFootprint = row.ResidentBytes
	} else if row.ResidentBytes > state.InitialFootprint {
		footprint = row.ResidentBytes - state.InitialFootprint
	}

	if row.ParentPID != selfPid {
		return Foreign
	}

	if state.SustainedLatency > 0 && int64(state.SustainedLatency)*iv >= Limit(LatencyLimit, level) {
		return Unhealthy
	}

	if footprint > MemoryLimitBytes(level) {
		return Unhealthy
	}

	return Healthy
}
