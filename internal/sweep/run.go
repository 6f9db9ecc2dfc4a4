package sweep

import (
	"context"
	"errors"
	"time"
)

// Start begins the background cycle loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("sweep loop already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates the loop and waits for the in-flight cycle to wind down.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		cycle := m.RunCycle(ctx)
		if ctx.Err() != nil {
			return
		}

		wait := m.interval
		if cycle.Error != "" {
			wait = m.errorInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		case <-m.sweepNow:
		}
	}
}
