// Package daemonrun bootstraps the logvault daemon process: logging, state
// stores, the sweep pipeline, the IPC server, and signal-driven shutdown.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"logvault/internal/backup"
	"logvault/internal/checkpoint"
	"logvault/internal/config"
	"logvault/internal/daemon"
	"logvault/internal/history"
	"logvault/internal/ipc"
	"logvault/internal/logging"
	"logvault/internal/pipeline"
	"logvault/internal/sanitize"
	"logvault/internal/source"
	"logvault/internal/sweep"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the logvault daemon runtime loop and blocks until SIGINT,
// SIGTERM, or context cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.DaemonLogPath()},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	checkpoints := checkpoint.Open(cfg.CheckpointPath(), logger)

	hist, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		// Sweeps still run without history; only cycle records are lost.
		logger.Warn("open history database; cycle history disabled",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state directory permissions or delete the history database"),
		)
		hist = nil
	}

	provider := source.NewDir(cfg.Paths.SourceDir)
	sink := backup.NewDir(cfg.Paths.BackupDir)
	engine := sanitize.New(cfg.Masking)
	p := pipeline.New(checkpoints, provider, sink, engine, logger)
	manager := sweep.NewManager(cfg, p, provider, checkpoints, hist, logger)

	d, err := daemon.New(cfg, checkpoints, hist, manager, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for another running instance and state directory access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("logvault daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
