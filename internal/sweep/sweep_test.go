package sweep_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"logvault/internal/backup"
	"logvault/internal/checkpoint"
	"logvault/internal/config"
	"logvault/internal/history"
	"logvault/internal/logging"
	"logvault/internal/pipeline"
	"logvault/internal/sanitize"
	"logvault/internal/source"
	"logvault/internal/sweep"
	"logvault/internal/testsupport"
)

type harness struct {
	cfg         *config.Config
	checkpoints *checkpoint.Store
	manager     *sweep.Manager
}

func newHarness(t *testing.T, cfg *config.Config, sink backup.Sink) *harness {
	t.Helper()
	checkpoints := checkpoint.Open(cfg.CheckpointPath(), logging.NewNop())
	provider := source.NewDir(cfg.Paths.SourceDir)
	if sink == nil {
		sink = backup.NewDir(cfg.Paths.BackupDir)
	}
	engine := sanitize.New(cfg.Masking)
	p := pipeline.New(checkpoints, provider, sink, engine, logging.NewNop())
	manager := sweep.NewManager(cfg, p, provider, checkpoints, nil, logging.NewNop())
	return &harness{cfg: cfg, checkpoints: checkpoints, manager: manager}
}

func TestRunCycleProcessesAllFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	for i := 0; i < 3; i++ {
		testsupport.WriteSourceFile(t, cfg, fmt.Sprintf("app-%d.log", i), fmt.Sprintf(`{"n":%d}`, i)+"\n")
	}
	h := newHarness(t, cfg, nil)

	cycle := h.manager.RunCycle(context.Background())
	if cycle.FilesSeen != 3 || cycle.FilesProcessed != 3 {
		t.Fatalf("unexpected cycle: %+v", cycle)
	}
	if cycle.LinesWritten != 3 {
		t.Fatalf("lines written = %d, want 3", cycle.LinesWritten)
	}
}

func TestRunCycleSecondPassSkips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteSourceFile(t, cfg, "app.log", `{"n":1}`+"\n")
	h := newHarness(t, cfg, nil)

	h.manager.RunCycle(context.Background())
	second := h.manager.RunCycle(context.Background())
	if second.FilesSkipped != 1 || second.FilesProcessed != 0 {
		t.Fatalf("unexpected second cycle: %+v", second)
	}
}

// poisonSink fails appends whose content carries the poison marker.
type poisonSink struct {
	inner backup.Sink
}

func (s *poisonSink) Append(destination string, content []byte) error {
	if strings.Contains(string(content), "poison") {
		return errors.New("backup target rejected write")
	}
	return s.inner.Append(destination, content)
}

func (s *poisonSink) Ensure(destination string) error {
	return s.inner.Ensure(destination)
}

func TestRunCycleIsolatesFailingFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteSourceFile(t, cfg, "bad.log", `{"msg":"poison"}`+"\n")
	testsupport.WriteSourceFile(t, cfg, "good.log", `{"msg":"fine"}`+"\n")
	h := newHarness(t, cfg, &poisonSink{inner: backup.NewDir(cfg.Paths.BackupDir)})

	cycle := h.manager.RunCycle(context.Background())
	if cycle.FilesFailed != 1 {
		t.Fatalf("expected 1 failed file, got %+v", cycle)
	}
	if cycle.FilesProcessed != 1 {
		t.Fatalf("sibling must still complete, got %+v", cycle)
	}

	// The good file's checkpoint advanced, the bad file's did not.
	good, err := h.checkpoints.Get("good.log")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if good.Offset == 0 {
		t.Fatal("good file checkpoint did not advance")
	}
	bad, err := h.checkpoints.Get("bad.log")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if bad.Offset != 0 {
		t.Fatalf("bad file checkpoint advanced to %d past an unwritten line", bad.Offset)
	}
}

// countingSink tracks the maximum number of concurrent appends.
type countingSink struct {
	inner  backup.Sink
	active atomic.Int32
	peak   atomic.Int32
}

func (s *countingSink) Append(destination string, content []byte) error {
	current := s.active.Add(1)
	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	defer s.active.Add(-1)
	return s.inner.Append(destination, content)
}

func (s *countingSink) Ensure(destination string) error {
	return s.inner.Ensure(destination)
}

func TestRunCycleHonorsConcurrencyBound(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConcurrency(2))
	for i := 0; i < 6; i++ {
		testsupport.WriteSourceFile(t, cfg, fmt.Sprintf("app-%d.log", i), fmt.Sprintf(`{"n":%d}`, i)+"\n")
	}
	sink := &countingSink{inner: backup.NewDir(cfg.Paths.BackupDir)}
	h := newHarness(t, cfg, sink)

	cycle := h.manager.RunCycle(context.Background())
	if cycle.FilesProcessed != 6 {
		t.Fatalf("expected all files processed, got %+v", cycle)
	}
	if peak := sink.peak.Load(); peak > 2 {
		t.Fatalf("concurrency bound violated: %d simultaneous pipelines", peak)
	}
}

func TestRunCycleRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteSourceFile(t, cfg, "app.log", `{"n":1}`+"\n")

	hist, err := history.Open(filepath.Join(cfg.Paths.StateDir, "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer hist.Close()

	checkpoints := checkpoint.Open(cfg.CheckpointPath(), logging.NewNop())
	provider := source.NewDir(cfg.Paths.SourceDir)
	sink := backup.NewDir(cfg.Paths.BackupDir)
	p := pipeline.New(checkpoints, provider, sink, sanitize.New(cfg.Masking), logging.NewNop())
	manager := sweep.NewManager(cfg, p, provider, checkpoints, hist, logging.NewNop())

	manager.RunCycle(context.Background())

	cycles, err := hist.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(cycles) != 1 || cycles[0].FilesProcessed != 1 {
		t.Fatalf("unexpected history: %+v", cycles)
	}
}

func TestStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteSourceFile(t, cfg, "app.log", `{"n":1}`+"\n")
	h := newHarness(t, cfg, nil)

	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.manager.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail while running")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if status := h.manager.Status(); status.LastCycle != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no cycle completed before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.manager.Stop()
	if status := h.manager.Status(); status.Running {
		t.Fatal("manager still reports running after Stop")
	}
}

func TestTriggerSweepCoalesces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := newHarness(t, cfg, nil)

	// Must not block even when called repeatedly with no loop draining it.
	for i := 0; i < 10; i++ {
		h.manager.TriggerSweep()
	}
}
