// Command osqueryd is the host-instrumentation agent daemon: the
// supervisor binary that launches and monitors a worker process (itself,
// re-exec'd) plus its extensions, or — with --disable_watchdog — runs as
// a single unsupervised process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathcl/osquery/internal/adminhttp"
	"github.com/pathcl/osquery/internal/procexec"
	"github.com/pathcl/osquery/internal/procsnap"
	"github.com/pathcl/osquery/internal/statuslog"
	"github.com/pathcl/osquery/internal/telemetry"
	"github.com/pathcl/osquery/internal/watchdog"
	"github.com/pathcl/osquery/internal/watchdogcfg"
	"github.com/pathcl/osquery/pkg/logging"
	"github.com/pathcl/osquery/pkg/shutdown"
)

// realClock satisfies watchdog.Clock against wall time.
type realClock struct{}

func (realClock) Now() int64        { return time.Now().Unix() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// realEnv satisfies watchdog.EnvAccessor against the process environment.
type realEnv struct{}

func (realEnv) Setenv(key, value string) error { return os.Setenv(key, value) }
func (realEnv) Getenv(key string) (string, bool) { return os.LookupEnv(key) }

func main() {
	flags, err := watchdogcfg.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("osqueryd: parse flags: %v", err)
	}

	logLevel := logging.ParseLevel(flags.LogLevel)
	logger, err := logging.NewFileLogger("osqueryd", "watchdog", logLevel, flags.LogJSON)
	if err != nil {
		log.Fatalf("osqueryd: init logger: %v", err)
	}
	defer logger.Close()

	if os.Getenv("OSQUERY_WORKER") == "true" {
		runWorker(flags, logger)
		return
	}

	cfg, err := watchdogcfg.Load(flags)
	if err != nil {
		logger.Fatal(fmt.Sprintf("load config: %v", err))
	}
	cfg.WorkerArgv = os.Args[1:]

	if cfg.DisableWatchdog {
		logger.Info("watchdog disabled, running worker inline")
		os.Setenv("OSQUERY_WORKER", "true")
		runWorker(flags, logger)
		return
	}

	runSupervisor(flags, cfg, logger)
}

// runSupervisor wires the Supervisor Registry, Loop, and its
// collaborators (spec §4.4, §6) and the additive admin HTTP/telemetry
// endpoint (SPEC_FULL §4.6), then blocks until the loop exits or a
// shutdown signal arrives.
func runSupervisor(flags *watchdogcfg.Flags, cfg *watchdog.Config, logger *logging.Logger) {
	env := realEnv{}
	registry := watchdog.NewRegistry(env)
	launcher := procexec.NewExec(logger)
	table := procsnap.NewTable()
	sink := statuslog.NewSink(logger)
	clock := realClock{}

	shutdownMgr := shutdown.New(15 * time.Second)
	requester := &fatalShutdown{registry: registry, mgr: shutdownMgr}

	runner := watchdog.NewRunner(*cfg, registry, launcher, table, clock, requester, sink, logger, os.Getpid())

	collector := telemetry.NewCollector(registry)
	admin := adminhttp.New(flags.AdminAddr, registry, collector)

	shutdownMgr.Register("admin endpoint", shutdown.StopHTTPServer(admin))
	shutdownMgr.Register("worker and extensions", func(ctx context.Context) error {
		if h := registry.Worker(); h.IsValid() {
			_ = launcher.Kill(h)
		}
		for _, h := range registry.Extensions() {
			if h.IsValid() {
				_ = launcher.Kill(h)
			}
		}
		launcher.CleanupDefunct()
		return nil
	})

	go func() {
		logger.Info(fmt.Sprintf("admin endpoint listening on %s", flags.AdminAddr))
		if err := admin.ListenAndServe(); err != nil {
			logger.Warn(fmt.Sprintf("admin endpoint stopped: %v", err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn(fmt.Sprintf("caught %v, binding fates", sig))
		registry.BindFates()
	}()

	interrupted := func() bool { return registry.FatesBound() }
	runner.SetIterationHook(func() {
		admin.MarkIterated()
		if err := logger.RotateIfNeeded(50 * 1024 * 1024); err != nil {
			logger.Warn(fmt.Sprintf("log rotation check failed: %v", err))
		}
	})

	logger.Info(fmt.Sprintf("supervisor starting, instance=%s level=%d extensions=%d", registry.InstanceID(), cfg.Level, len(cfg.Extensions)))
	runner.Run(interrupted)

	if err := shutdownMgr.Shutdown(); err != nil {
		logger.Warn(fmt.Sprintf("shutdown cleanup reported errors: %v", err))
	}
	logger.Info(fmt.Sprintf("supervisor exited, code=%d", requester.code))
	if requester.code != 0 {
		os.Exit(requester.code)
	}
}

// runWorker runs the agent's primary work loop in-process (the
// "worker"), plus the Parent Watcher companion loop (spec §4.5) when
// the watchdog launched it.
func runWorker(flags *watchdogcfg.Flags, logger *logging.Logger) {
	logger.Info("worker starting")

	if _, waitForExtensions := os.LookupEnv("OSQUERY_EXTENSIONS"); waitForExtensions {
		logger.Info("OSQUERY_EXTENSIONS set, waiting for extension plugins before accepting queries")
	}

	if ppid := os.Getppid(); ppid > 1 && !flags.DisableWatchdog {
		launcher := procexec.NewExec(logger)
		clock := realClock{}
		shutdownReq := &workerShutdown{}
		watcher := watchdog.NewParentWatcher(launcher, clock, shutdownReq, logger, flags.WatchdogLevel, ppid)

		go watcher.Run(func() bool { return shutdownReq.requested })

		logger.Info(fmt.Sprintf("parent watcher monitoring supervisor pid %d", ppid))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("worker shutting down")
	os.Exit(watchdog.ExitSuccess)
}

// fatalShutdown adapts shutdown.Manager + Registry to
// watchdog.ShutdownRequester: a fatal error (spec §7 items 4 and 5)
// binds fates so the loop stops, then exits the process with code
// once the caller's cleanup has had a chance to run.
type fatalShutdown struct {
	registry *watchdog.Registry
	mgr      *shutdown.Manager
	code     int
}

func (f *fatalShutdown) RequestShutdown(code int) {
	f.code = code
	f.registry.BindFates()
}

// workerShutdown lets the Parent Watcher request the worker's own
// exit without a direct os.Exit call inside the watchdog package.
type workerShutdown struct {
	requested bool
}

func (w *workerShutdown) RequestShutdown(code int) {
	w.requested = true
	os.Exit(code)
}
