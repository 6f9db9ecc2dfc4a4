// Package sweep coordinates backup cycles: it enumerates the visible source
// files once per cycle, runs the per-file pipeline under a concurrency bound,
// and isolates per-file failures so one bad file never stops its siblings.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"logvault/internal/checkpoint"
	"logvault/internal/config"
	"logvault/internal/history"
	"logvault/internal/logging"
	"logvault/internal/pipeline"
	"logvault/internal/source"
)

// Manager owns the cycle loop and the per-cycle orchestration.
type Manager struct {
	cfg         *config.Config
	pipeline    *pipeline.Pipeline
	provider    source.Provider
	checkpoints *checkpoint.Store
	history     *history.Store
	logger      *slog.Logger

	interval      time.Duration
	errorInterval time.Duration
	concurrency   int

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastCycle *history.Cycle

	sweepNow chan struct{}
}

// StatusSummary is a point-in-time view of the manager for operators.
type StatusSummary struct {
	Running      bool
	TrackedFiles int
	LastCycle    *history.Cycle
}

// NewManager wires a sweep manager. The history store may be nil; cycle
// outcomes are then only logged.
func NewManager(cfg *config.Config, p *pipeline.Pipeline, provider source.Provider, checkpoints *checkpoint.Store, hist *history.Store, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:           cfg,
		pipeline:      p,
		provider:      provider,
		checkpoints:   checkpoints,
		history:       hist,
		logger:        logging.WithComponent(logger, "sweep"),
		interval:      time.Duration(cfg.Workflow.SweepInterval) * time.Second,
		errorInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		concurrency:   cfg.Workflow.MaxConcurrency,
		sweepNow:      make(chan struct{}, 1),
	}
}

// TriggerSweep requests an immediate cycle without waiting for the interval.
// Safe to call whether or not the loop is running; coalesces repeated calls.
func (m *Manager) TriggerSweep() {
	select {
	case m.sweepNow <- struct{}{}:
	default:
	}
}

// Status reports the current loop state and the most recent cycle.
func (m *Manager) Status() StatusSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := StatusSummary{Running: m.running, LastCycle: m.lastCycle}
	if m.checkpoints != nil {
		summary.TrackedFiles = len(m.checkpoints.Entries())
	}
	return summary
}

func (m *Manager) setLastCycle(cycle history.Cycle) {
	m.mu.Lock()
	m.lastCycle = &cycle
	m.mu.Unlock()
}
