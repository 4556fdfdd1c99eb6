package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pathcl/osquery/internal/adminclient"
)

var pollInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the watchdog's status and print changes",
	Long: `Watch polls /status on an interval and prints the worker's PID,
restart count, and fates_bound state whenever they change.

Example:
  osqueryctl watch
  osqueryctl watch --interval 2s`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&pollInterval, "interval", 3*time.Second, "how often to poll /status")
}

type watchKey struct {
	workerPID    int
	restartCount uint64
	fatesBound   bool
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags)
	client := adminclient.New(GetAdminAddr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, stopping", sig)
		cancel()
	}()

	logger.Printf("watching %s every %s, press Ctrl+C to stop", GetAdminAddr(), pollInterval)

	var last watchKey
	first := true
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		snap, err := client.Status()
		if err != nil {
			logger.Printf("poll error: %v", err)
		} else {
			key := watchKey{workerPID: snap.Worker.Pid, restartCount: snap.RestartCount, fatesBound: snap.FatesBound}
			if first || key != last {
				fmt.Printf("%s  worker_pid=%d restart_count=%d fates_bound=%v extensions=%d\n",
					time.Now().Format(time.RFC3339), snap.Worker.Pid, snap.RestartCount, snap.FatesBound, len(snap.Extensions))
				last = key
				first = false
			}
		}

		select {
		case <-ctx.Done():
			logger.Println("watch stopped")
			return nil
		case <-ticker.C:
		}
	}
}
