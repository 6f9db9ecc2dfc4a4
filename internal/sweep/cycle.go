package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"logvault/internal/history"
	"logvault/internal/logging"
	"logvault/internal/pipeline"
	"logvault/internal/source"
)

// RunCycle performs one sweep: snapshot enumeration, bounded-parallel file
// processing, and history recording. It never returns an error; everything
// that goes wrong is captured in the cycle record and logged, because no
// failure may terminate the cycle driver.
func (m *Manager) RunCycle(ctx context.Context) history.Cycle {
	cycle := history.Cycle{StartedAt: time.Now().UTC()}

	descriptors, err := m.provider.List()
	if err != nil {
		cycle.Error = err.Error()
		cycle.FinishedAt = time.Now().UTC()
		m.logger.Error("enumerate source files",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check source directory permissions"),
		)
		m.finishCycle(ctx, &cycle)
		return cycle
	}
	cycle.FilesSeen = len(descriptors)

	results := make([]history.FileResult, len(descriptors))
	statsList := make([]pipeline.Stats, len(descriptors))
	started := make([]bool, len(descriptors))

	semaphore := make(chan struct{}, m.concurrency)
	var wg sync.WaitGroup

	for i, desc := range descriptors {
		// Cancellation stops new files; in-flight ones finish their
		// natural line-loop exit.
		if ctx.Err() != nil {
			break
		}
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		started[i] = true
		wg.Add(1)
		go func(i int, desc source.Descriptor) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[i], statsList[i] = m.processOne(ctx, desc)
		}(i, desc)
	}
	wg.Wait()

	for i := range descriptors {
		if !started[i] {
			continue
		}
		cycle.Files = append(cycle.Files, results[i])
		stats := statsList[i]
		cycle.LinesRead += stats.LinesRead
		cycle.LinesWritten += stats.LinesWritten
		cycle.LinesDropped += stats.LinesDropped
		switch results[i].Outcome {
		case history.OutcomeProcessed:
			cycle.FilesProcessed++
		case history.OutcomeSkipped:
			cycle.FilesSkipped++
		case history.OutcomeFailed:
			cycle.FilesFailed++
		}
	}

	cycle.FinishedAt = time.Now().UTC()
	m.finishCycle(ctx, &cycle)
	return cycle
}

// processOne runs the pipeline for one file with full isolation: any error or
// panic is converted into a failed result for this file only.
func (m *Manager) processOne(ctx context.Context, desc source.Descriptor) (result history.FileResult, stats pipeline.Stats) {
	result = history.FileResult{Source: desc.Name}

	defer func() {
		if r := recover(); r != nil {
			result.Outcome = history.OutcomeFailed
			result.Error = fmt.Sprintf("panic: %v", r)
			m.logger.Error("file pass panicked",
				logging.String(logging.FieldSource, desc.Name),
				logging.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	stats, err := m.pipeline.Process(ctx, desc)
	result.LinesWritten = stats.LinesWritten

	switch {
	case errors.Is(err, context.Canceled):
		result.Outcome = history.OutcomeSkipped
		result.Error = "cancelled"
	case err != nil:
		result.Outcome = history.OutcomeFailed
		result.Error = err.Error()
		m.logger.Error("file pass failed; siblings continue, retry next cycle",
			logging.String(logging.FieldSource, desc.Name),
			logging.Error(err),
		)
	case stats.NoNewData:
		result.Outcome = history.OutcomeSkipped
	default:
		result.Outcome = history.OutcomeProcessed
		m.logger.Info("file backed up",
			logging.String(logging.FieldSource, desc.Name),
			logging.String(logging.FieldDest, stats.Destination),
			logging.Int64(logging.FieldOffset, stats.EndOffset),
			logging.Int("lines_written", stats.LinesWritten),
			logging.Int("lines_dropped", stats.LinesDropped),
		)
	}
	return result, stats
}

func (m *Manager) finishCycle(ctx context.Context, cycle *history.Cycle) {
	m.logger.Info("cycle finished",
		logging.Int("files_seen", cycle.FilesSeen),
		logging.Int("files_processed", cycle.FilesProcessed),
		logging.Int("files_skipped", cycle.FilesSkipped),
		logging.Int("files_failed", cycle.FilesFailed),
		logging.Int("lines_written", cycle.LinesWritten),
		logging.Duration("elapsed", cycle.FinishedAt.Sub(cycle.StartedAt)),
	)

	if m.history == nil {
		m.setLastCycle(*cycle)
		return
	}
	id, err := m.history.RecordCycle(context.WithoutCancel(ctx), *cycle)
	if err != nil {
		// History is observability, not correctness; the sweep itself
		// succeeded and checkpoints already advanced.
		m.logger.Warn("record cycle history", logging.Error(err))
	} else {
		cycle.ID = id
	}
	m.setLastCycle(*cycle)
}
