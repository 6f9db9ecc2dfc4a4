// Package daemon coordinates the background sweep loop and enforces
// single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"logvault/internal/checkpoint"
	"logvault/internal/config"
	"logvault/internal/history"
	"logvault/internal/logging"
	"logvault/internal/sweep"
)

// Daemon owns the sweep manager lifecycle and the instance lock.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	manager     *sweep.Manager
	checkpoints *checkpoint.Store
	history     *history.Store

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	LockPath       string
	CheckpointPath string
	HistoryDBPath  string
	Sweep          sweep.StatusSummary
}

// New constructs a daemon with initialized dependencies. The history store may
// be nil when the history database could not be opened.
func New(cfg *config.Config, checkpoints *checkpoint.Store, hist *history.Store, manager *sweep.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || checkpoints == nil || manager == nil {
		return nil, errors.New("daemon requires config, checkpoint store, and sweep manager")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:         cfg,
		logger:      logging.WithComponent(logger, "daemon"),
		manager:     manager,
		checkpoints: checkpoints,
		history:     hist,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the sweep loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another logvault daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start sweep loop: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("logvault daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops the sweep loop and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("logvault daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// SweepNow requests an immediate cycle.
func (d *Daemon) SweepNow() bool {
	if !d.running.Load() {
		return false
	}
	d.manager.TriggerSweep()
	return true
}

// Checkpoints returns the tracked sources sorted by identity.
func (d *Daemon) Checkpoints() []checkpoint.Entry {
	return d.checkpoints.Entries()
}

// History returns the most recent sweep cycles, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Cycle, error) {
	if d.history == nil {
		return nil, errors.New("history store unavailable")
	}
	return d.history.Recent(ctx, limit)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		LockPath:       d.lockPath,
		CheckpointPath: d.checkpoints.Path(),
		Sweep:          d.manager.Status(),
	}
	if d.history != nil {
		status.HistoryDBPath = d.history.Path()
	}
	return status
}
