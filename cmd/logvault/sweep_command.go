package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"logvault/internal/backup"
	"logvault/internal/checkpoint"
	"logvault/internal/history"
	"logvault/internal/ipc"
	"logvault/internal/logging"
	"logvault/internal/pipeline"
	"logvault/internal/sanitize"
	"logvault/internal/source"
	"logvault/internal/sweep"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one backup cycle now",
		Long: "Asks the running daemon to sweep immediately. With --local, or when no " +
			"daemon is running, runs a single cycle in this process instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			if !local {
				client, err := ipc.Dial(ctx.socketPath())
				if err == nil {
					defer client.Close()
					resp, sweepErr := client.Sweep()
					if sweepErr != nil {
						return sweepErr
					}
					if resp.Triggered {
						fmt.Fprintln(stdout, "Sweep triggered")
						return nil
					}
					fmt.Fprintln(stdout, resp.Message)
					return nil
				}
			}

			return runLocalSweep(cmd, ctx)
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Run the cycle in this process instead of the daemon")
	return cmd
}

func runLocalSweep(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	checkpoints := checkpoint.Open(cfg.CheckpointPath(), logger)
	hist, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: cycle history disabled: %v\n", err)
		hist = nil
	} else {
		defer hist.Close()
	}

	provider := source.NewDir(cfg.Paths.SourceDir)
	sink := backup.NewDir(cfg.Paths.BackupDir)
	engine := sanitize.New(cfg.Masking)
	p := pipeline.New(checkpoints, provider, sink, engine, logger)
	manager := sweep.NewManager(cfg, p, provider, checkpoints, hist, logger)

	cycle := manager.RunCycle(cmd.Context())

	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Cycle complete: %d seen, %d processed, %d skipped, %d failed, %d lines written\n",
		cycle.FilesSeen, cycle.FilesProcessed, cycle.FilesSkipped, cycle.FilesFailed, cycle.LinesWritten)
	if cycle.Error != "" {
		return errors.New(cycle.Error)
	}
	if cycle.FilesFailed > 0 {
		return fmt.Errorf("%d file(s) failed; see log output above", cycle.FilesFailed)
	}
	return nil
}
