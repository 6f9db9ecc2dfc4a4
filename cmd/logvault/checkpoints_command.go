package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"logvault/internal/checkpoint"
	"logvault/internal/ipc"
	"logvault/internal/logging"
)

func newCheckpointsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoints",
		Short: "Show tracked source files and their backup progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadCheckpointEntries(ctx)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(stdout, "No files tracked yet")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.Source,
					strconv.FormatInt(entry.Offset, 10),
					entry.Destination,
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"Source", "Offset", "Destination"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

// loadCheckpointEntries prefers the daemon's view and falls back to reading
// the checkpoint table directly when no daemon is reachable.
func loadCheckpointEntries(ctx *commandContext) ([]ipc.CheckpointEntry, error) {
	if client, err := ipc.Dial(ctx.socketPath()); err == nil {
		defer client.Close()
		resp, listErr := client.CheckpointList()
		if listErr != nil {
			return nil, listErr
		}
		return resp.Entries, nil
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store := checkpoint.Open(cfg.CheckpointPath(), logging.NewNop())
	entries := store.Entries()
	converted := make([]ipc.CheckpointEntry, 0, len(entries))
	for _, entry := range entries {
		converted = append(converted, ipc.CheckpointEntry{
			Source:      entry.Source,
			Offset:      entry.Record.Offset,
			Destination: entry.Record.Destination,
		})
	}
	return converted, nil
}
