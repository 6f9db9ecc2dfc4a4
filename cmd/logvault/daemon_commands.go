package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"logvault/internal/checkpoint"
	"logvault/internal/daemonctl"
	"logvault/internal/ipc"
	"logvault/internal/logging"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the logvault daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the logvault daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping sweep loop...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and backup status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, ctx)
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the logvault daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			stopResult, stopErr := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if stopErr != nil && !errors.Is(stopErr, daemonctl.ErrDaemonNotRunning) {
				return stopErr
			}
			if stopErr == nil {
				if stopResult.ForcedKill && stopResult.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", stopResult.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx), 10*time.Second)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func runStatus(cmd *cobra.Command, ctx *commandContext) error {
	cfg := ctx.configValue()
	if cfg == nil {
		return errors.New("configuration not available")
	}

	statusResp := &ipc.StatusResponse{}
	if client, err := ipc.Dial(ctx.socketPath()); err == nil {
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			statusResp = resp
		}
		_ = client.Close()
	}

	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if statusResp.Running {
		fmt.Fprintln(stdout, renderStatusLine("Logvault", statusOK, fmt.Sprintf("Running (pid %d)", statusResp.PID), colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Logvault", statusWarn, "Not running (run `logvault start`)", colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Source", directoryStatus(cfg.Paths.SourceDir), cfg.Paths.SourceDir, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Backup", directoryStatus(cfg.Paths.BackupDir), cfg.Paths.BackupDir, colorize))
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Tracked Files", colorize) {
		fmt.Fprintln(stdout, line)
	}
	entries := statusResp.TrackedFiles
	if !statusResp.Running {
		// Offline fallback: read the checkpoint table directly.
		store := checkpoint.Open(cfg.CheckpointPath(), logging.NewNop())
		entries = len(store.Entries())
	}
	fmt.Fprintln(stdout, renderStatusLine("Tracked", statusInfo, strconv.Itoa(entries), colorize))
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Last Cycle", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if statusResp.LastCycle == nil {
		fmt.Fprintln(stdout, "No cycle completed yet")
		return nil
	}
	cycle := statusResp.LastCycle
	rows := [][]string{
		{"Finished", cycle.FinishedAt},
		{"Files seen", strconv.Itoa(cycle.FilesSeen)},
		{"Processed", strconv.Itoa(cycle.FilesProcessed)},
		{"Skipped", strconv.Itoa(cycle.FilesSkipped)},
		{"Failed", strconv.Itoa(cycle.FilesFailed)},
		{"Lines written", strconv.Itoa(cycle.LinesWritten)},
		{"Lines dropped", strconv.Itoa(cycle.LinesDropped)},
	}
	if cycle.Error != "" {
		rows = append(rows, []string{"Error", cycle.Error})
	}
	fmt.Fprintln(stdout, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
	return nil
}

func directoryStatus(dir string) statusKind {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return statusWarn
	}
	return statusOK
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
