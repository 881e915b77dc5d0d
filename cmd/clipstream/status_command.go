package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.QueueStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read queue stats: %w", err)
			}

			running := daemonRunning(filepath.Join(cfg.Paths.DataDir, "clipstreamd.lock"))
			state := "stopped"
			if running {
				state = "running"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon: %s\n", state)
			fmt.Fprintf(out, "Queue database: %s\n\n", cfg.QueueDatabasePath())
			fmt.Fprintln(out, renderTable(
				[]string{"State", "Count"},
				[][]string{
					{"pending", strconv.Itoa(stats.Pending)},
					{"processing", strconv.Itoa(stats.Processing)},
					{"completed", strconv.Itoa(stats.Completed)},
					{"duplicate", strconv.Itoa(stats.Duplicate)},
					{"failed", strconv.Itoa(stats.Failed)},
					{"cancelled", strconv.Itoa(stats.Cancelled)},
					{"total", strconv.Itoa(stats.Total)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

// daemonRunning probes the daemon's file lock. A held lock means a daemon
// process owns it.
func daemonRunning(lockPath string) bool {
	probe := flock.New(lockPath)
	ok, err := probe.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = probe.Unlock()
		return false
	}
	return true
}
