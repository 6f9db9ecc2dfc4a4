package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"logvault/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	id, err := store.RecordCycle(ctx, history.Cycle{
		StartedAt:      now.Add(-2 * time.Second),
		FinishedAt:     now,
		FilesSeen:      3,
		FilesProcessed: 2,
		FilesSkipped:   1,
		LinesRead:      40,
		LinesWritten:   35,
		LinesDropped:   5,
		Files: []history.FileResult{
			{Source: "a.log", Outcome: history.OutcomeProcessed, LinesWritten: 20},
			{Source: "b.log", Outcome: history.OutcomeProcessed, LinesWritten: 15},
			{Source: "c.log", Outcome: history.OutcomeSkipped},
		},
	})
	if err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected assigned cycle id")
	}

	cycles, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}
	cycle := cycles[0]
	if cycle.FilesSeen != 3 || cycle.LinesWritten != 35 {
		t.Fatalf("unexpected cycle row: %+v", cycle)
	}
	if len(cycle.Files) != 3 {
		t.Fatalf("expected 3 file results, got %d", len(cycle.Files))
	}
	if cycle.Files[0].Source != "a.log" || cycle.Files[0].Outcome != history.OutcomeProcessed {
		t.Fatalf("unexpected first file result: %+v", cycle.Files[0])
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.RecordCycle(ctx, history.Cycle{
			StartedAt:  time.Now().UTC(),
			FinishedAt: time.Now().UTC(),
			FilesSeen:  i,
		}); err != nil {
			t.Fatalf("RecordCycle failed: %v", err)
		}
	}

	cycles, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(cycles) != 2 {
		t.Fatalf("expected 2 cycles, got %d", len(cycles))
	}
	if cycles[0].ID <= cycles[1].ID {
		t.Fatalf("expected newest first, got ids %d then %d", cycles[0].ID, cycles[1].ID)
	}
}

func TestFailedCycleKeepsError(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.RecordCycle(ctx, history.Cycle{
		StartedAt:   time.Now().UTC(),
		FinishedAt:  time.Now().UTC(),
		FilesSeen:   1,
		FilesFailed: 1,
		Error:       "enumeration failed",
		Files: []history.FileResult{
			{Source: "bad.log", Outcome: history.OutcomeFailed, Error: "backup target offline"},
		},
	}); err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}

	cycles, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if cycles[0].Error != "enumeration failed" {
		t.Fatalf("cycle error = %q", cycles[0].Error)
	}
	if cycles[0].Files[0].Error != "backup target offline" {
		t.Fatalf("file error = %q", cycles[0].Files[0].Error)
	}
}
