package watchdog

import (
	"time"

	"github.com/pathcl/osquery/pkg/logging"
)

// ParentWatcher is the worker-side companion loop (spec §4.5): it
// runs inside the worker process and requests self-shutdown if the
// supervisor that launched it has died.
type ParentWatcher struct {
	launcher   Launcher
	clock      Clock
	shutdown   ShutdownRequester
	log        *logging.Logger
	level      int
	watcherPid int
}

// NewParentWatcher constructs a watcher for watcherPid (the
// supervisor's pid, learned by the worker at startup, typically its
// own parent pid at the time it was launched).
func NewParentWatcher(launcher Launcher, clock Clock, shutdown ShutdownRequester, log *logging.Logger, level, watcherPid int) *ParentWatcher {
	return &ParentWatcher{launcher: launcher, clock: clock, shutdown: shutdown, log: log, level: level, watcherPid: watcherPid}
}

// Run ticks every limit(INTERVAL) seconds until interrupted reports
// true or the supervisor is found dead, in which case it requests
// self-shutdown and returns.
func (w *ParentWatcher) Run(interrupted Interrupted) {
	period := time.Duration(Limit(Interval, w.level)) * time.Second
	for {
		if interrupted != nil && interrupted() {
			return
		}
		if w.launcher.IsProcessDead(w.watcherPid) {
			if w.log != nil {
				w.log.Warn("supervisor process is gone, requesting self-shutdown", map[string]interface{}{"watcher_pid": w.watcherPid})
			}
			if w.shutdown != nil {
				w.shutdown.RequestShutdown(ExitFailure)
			}
			return
		}
		w.clock.Sleep(period)
	}
}
