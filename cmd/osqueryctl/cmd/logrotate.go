package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pathcl/osquery/pkg/logging"
)

var logrotateTarget string

var logrotateCmd = &cobra.Command{
	Use:   "logrotate",
	Short: "Print a logrotate(8) config for the watchdog or worker log directory",
	Long: `Generate a logrotate configuration for installation under
/etc/logrotate.d, covering either the watchdog's own log file or
the supervised worker's.

Example:
  osqueryctl logrotate --target watchdog > /etc/logrotate.d/osquery-watchdog
  osqueryctl logrotate --target worker`,
	RunE: runLogrotate,
}

func init() {
	rootCmd.AddCommand(logrotateCmd)
	logrotateCmd.Flags().StringVar(&logrotateTarget, "target", "watchdog", "which component's config to generate: watchdog or worker")
}

func runLogrotate(cmd *cobra.Command, args []string) error {
	switch logrotateTarget {
	case "watchdog":
		fmt.Fprintf(os.Stdout, "# current log path: %s\n", logging.GetLogPath("osqueryd", "watchdog"))
		fmt.Fprint(os.Stdout, logging.GenerateWatchdogLogrotate())
	case "worker":
		fmt.Fprintf(os.Stdout, "# current log path: %s\n", logging.GetLogPath("osqueryd", "worker"))
		fmt.Fprint(os.Stdout, logging.GenerateWorkerLogrotate())
	default:
		return fmt.Errorf("unknown target %q, want watchdog or worker", logrotateTarget)
	}
	return nil
}
