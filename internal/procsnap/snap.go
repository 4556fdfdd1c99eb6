// Package procsnap is the OS-process-table query collaborator (spec
// §6): given a pid, return {parent_pid, user_time, system_time,
// resident_bytes, path}, backed by gopsutil/v3.
package procsnap

import (
	"github.com/shirou/gopsutil/v3/process"

	"github.com/pathcl/osquery/internal/watchdog"
)

// Table implements watchdog.ProcessTable against the live OS process
// table via gopsutil.
type Table struct{}

// NewTable constructs a Table.
func NewTable() *Table { return &Table{} }

// Row queries pid's {parent_pid, user_time_ticks, system_time_ticks,
// resident_bytes, path}. Ticks here are gopsutil's CPU-seconds
// truncated to an integer count; the sanity evaluator's ticks/interval
// division (spec §4.3 step 2, §9 design note) treats this as a
// coarse-rate approximation regardless of the unit's true granularity.
func (t *Table) Row(pid int) (watchdog.ProcessRow, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return watchdog.ProcessRow{}, err
	}

	ppid, err := proc.Ppid()
	if err != nil {
		return watchdog.ProcessRow{}, err
	}

	times, err := proc.Times()
	if err != nil {
		return watchdog.ProcessRow{}, err
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		return watchdog.ProcessRow{}, err
	}

	exe, _ := proc.Exe() // best-effort; some kernels restrict /proc/pid/exe

	return watchdog.ProcessRow{
		ParentPID:       int(ppid),
		UserTimeTicks:   uint64(times.User),
		SystemTimeTicks: uint64(times.System),
		ResidentBytes:   mem.RSS,
		Path:            exe,
	}, nil
}
