package watchdogcfg

import (
	"flag"
	"time"

	"github.com/pathcl/osquery/internal/watchdog"
)

// Flags holds the raw daemon flags before manifest expansion, kept
// separate from watchdog.Config so adminhttp/osqueryctl-facing
// concerns (admin_addr, verbose, log options) don't leak into the
// core package's Config.
type Flags struct {
	WatchdogLevel      int
	DisableWatchdog    bool
	ExtensionsManifest string
	ExtensionsSocket   string
	ExtensionsTimeout  int
	ExtensionsInterval int
	AdminAddr          string
	Verbose            bool
	LogLevel           string
	LogJSON            bool
}

// Parse registers and parses the daemon's flags on fs (pass
// flag.CommandLine for the real binary, a fresh flag.FlagSet in
// tests) from args.
func Parse(fs *flag.FlagSet, args []string) (*Flags, error) {
	f := &Flags{}
	fs.IntVar(&f.WatchdogLevel, "watchdog_level", 0, "selects the limit table column (0-3, clamps above 3)")
	fs.BoolVar(&f.DisableWatchdog, "disable_watchdog", false, "run as a single process without the supervisor loop")
	fs.StringVar(&f.ExtensionsManifest, "extensions_manifest", "", "path to a YAML file listing managed extensions")
	fs.StringVar(&f.ExtensionsSocket, "extensions_socket", "", "default extensions socket path")
	fs.IntVar(&f.ExtensionsTimeout, "extensions_timeout", 3, "default extension RPC timeout, seconds")
	fs.IntVar(&f.ExtensionsInterval, "extensions_interval", 3, "default extension health-check interval, seconds")
	fs.StringVar(&f.AdminAddr, "admin_addr", "127.0.0.1:9001", "localhost admin HTTP listen address")
	fs.BoolVar(&f.Verbose, "verbose", false, "enable verbose logging")
	fs.StringVar(&f.LogLevel, "log_level", "info", "minimum log level (debug, info, warn, error)")
	fs.BoolVar(&f.LogJSON, "log_json", false, "emit logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// Load resolves Flags plus an optional extensions manifest into a
// watchdog.Config.
func Load(f *Flags) (*watchdog.Config, error) {
	entries, err := LoadManifest(f.ExtensionsManifest)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Socket == "" {
			entries[i].Socket = f.ExtensionsSocket
		}
		if entries[i].Timeout == 0 {
			entries[i].Timeout = time.Duration(f.ExtensionsTimeout) * time.Second
		}
		if entries[i].Interval == 0 {
			entries[i].Interval = time.Duration(f.ExtensionsInterval) * time.Second
		}
	}

	return &watchdog.Config{
		Level:           f.WatchdogLevel,
		DisableWatchdog: f.DisableWatchdog,
		UseWorker:       !f.DisableWatchdog,
		Extensions:      entries,
		Verbose:         f.Verbose,
	}, nil
}
