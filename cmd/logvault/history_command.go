package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"logvault/internal/history"
	"logvault/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent backup cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cycles, err := loadCycleHistory(cmd, ctx, limit)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if len(cycles) == 0 {
				fmt.Fprintln(stdout, "No cycles recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(cycles))
			for _, cycle := range cycles {
				errText := cycle.Error
				if errText == "" {
					errText = "-"
				}
				rows = append(rows, []string{
					strconv.FormatInt(cycle.ID, 10),
					cycle.FinishedAt,
					strconv.Itoa(cycle.FilesSeen),
					strconv.Itoa(cycle.FilesProcessed),
					strconv.Itoa(cycle.FilesSkipped),
					strconv.Itoa(cycle.FilesFailed),
					strconv.Itoa(cycle.LinesWritten),
					errText,
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"ID", "Finished", "Seen", "Processed", "Skipped", "Failed", "Written", "Error"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of cycles to show")
	return cmd
}

// loadCycleHistory prefers the daemon's view and falls back to opening the
// history database directly when no daemon is reachable.
func loadCycleHistory(cmd *cobra.Command, ctx *commandContext, limit int) ([]ipc.CycleSummary, error) {
	if client, err := ipc.Dial(ctx.socketPath()); err == nil {
		defer client.Close()
		resp, histErr := client.History(limit)
		if histErr != nil {
			return nil, histErr
		}
		return resp.Cycles, nil
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	defer store.Close()

	cycles, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return nil, err
	}
	summaries := make([]ipc.CycleSummary, 0, len(cycles))
	for _, cycle := range cycles {
		summaries = append(summaries, ipc.CycleSummary{
			ID:             cycle.ID,
			StartedAt:      cycle.StartedAt.Format(time.RFC3339),
			FinishedAt:     cycle.FinishedAt.Format(time.RFC3339),
			FilesSeen:      cycle.FilesSeen,
			FilesProcessed: cycle.FilesProcessed,
			FilesSkipped:   cycle.FilesSkipped,
			FilesFailed:    cycle.FilesFailed,
			LinesRead:      cycle.LinesRead,
			LinesWritten:   cycle.LinesWritten,
			LinesDropped:   cycle.LinesDropped,
			Error:          cycle.Error,
		})
	}
	return summaries, nil
}
