package watchdog

// MaxLevel is the highest watchdog level column in the limit table.
// Levels above MaxLevel clamp to it.
const MaxLevel = 3

// limitTable holds, per LimitKind, the four level columns L0..L3 from
// the watchdog's policy table. Units: memory in MB, utilization in
// percent, durations in seconds.
var limitTable = map[LimitKind][4]int64{
	MemoryLimit:      {80, 50, 30, 1000},
	UtilizationLimit: {90, 80, 60, 1000},
	RespawnLimit:     {20, 20, 20, 5},
	RespawnDelay:     {5, 5, 5, 1},
	LatencyLimit:     {12, 6, 3, 1},
	Interval:         {3, 3, 3, 1},
}

// Limit returns the threshold for kind at the given level, clamping
// level to [0, MaxLevel]. An unknown kind returns 0.
func Limit(kind LimitKind, level int) int64 {
	if level < 0 {
		level = 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	cols, ok := limitTable[kind]
	if !ok {
		return 0
	}
	return cols[level]
}

// MemoryLimitBytes converts the level's MEMORY_LIMIT column (in MB)
// to bytes, matching the sanity evaluator's "footprint > limit * 1
// MiB" comparison.
func MemoryLimitBytes(level int) uint64 {
	const mib = 1024 * 1024
	return uint64(Limit(MemoryLimit, level)) * mib
}
