package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pathcl/osquery/internal/adminclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the watchdog's current worker and extension state",
	Long:  `Fetch /status from a running osqueryd's admin endpoint and render the worker and extension child states.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := adminclient.New(GetAdminAddr())
	snap, err := client.Status()
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}

	if IsJSONOutput() {
		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("instance: %s\n", snap.InstanceID)
	fmt.Printf("fates_bound: %v  restart_count: %d\n\n", snap.FatesBound, snap.RestartCount)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Role", "Path", "PID", "Alive", "Sustained Latency", "Footprint (bytes)")

	workerPID := "-"
	if snap.Worker.Valid {
		workerPID = fmt.Sprintf("%d", snap.Worker.Pid)
	}
	table.Append(
		"worker",
		"-",
		workerPID,
		fmt.Sprintf("%v", snap.Worker.Valid),
		fmt.Sprintf("%d", snap.WorkerState.SustainedLatency),
		fmt.Sprintf("%d", snap.WorkerState.InitialFootprint),
	)

	for path, h := range snap.Extensions {
		pid := "-"
		if h.Valid {
			pid = fmt.Sprintf("%d", h.Pid)
		}
		state := snap.ExtensionStates[path]
		table.Append(
			"extension",
			path,
			pid,
			fmt.Sprintf("%v", h.Valid),
			fmt.Sprintf("%d", state.SustainedLatency),
			fmt.Sprintf("%d", state.InitialFootprint),
		)
	}

	table.Render()
	return nil
}
