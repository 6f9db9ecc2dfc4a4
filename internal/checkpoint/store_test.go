package checkpoint_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"logvault/internal/checkpoint"
	"logvault/internal/logging"
)

func newStore(t *testing.T) (*checkpoint.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoints.json")
	return checkpoint.Open(path, logging.NewNop()), path
}

func TestGetCreatesRecordOnFirstSight(t *testing.T) {
	store, path := newStore(t)

	record, err := store.Get("app.log")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.Offset != 0 {
		t.Fatalf("new record offset = %d, want 0", record.Offset)
	}
	if record.Destination == "" {
		t.Fatal("new record must be assigned a destination identity")
	}

	// Creation must persist synchronously.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted table: %v", err)
	}
	var table map[string]checkpoint.Record
	if err := json.Unmarshal(data, &table); err != nil {
		t.Fatalf("parse persisted table: %v", err)
	}
	if table["app.log"].Destination != record.Destination {
		t.Fatalf("persisted destination %q does not match returned %q",
			table["app.log"].Destination, record.Destination)
	}
}

func TestGetReturnsSameDestinationForever(t *testing.T) {
	store, _ := newStore(t)

	first, err := store.Get("app.log")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := store.Save("app.log", 128); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second, err := store.Get("app.log")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if second.Destination != first.Destination {
		t.Fatalf("destination changed from %q to %q", first.Destination, second.Destination)
	}
	if second.Offset != 128 {
		t.Fatalf("offset = %d, want 128", second.Offset)
	}
}

func TestDistinctSourcesGetDistinctDestinations(t *testing.T) {
	store, _ := newStore(t)

	a, err := store.Get("a.log")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	b, err := store.Get("b.log")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if a.Destination == b.Destination {
		t.Fatalf("two sources share destination %q", a.Destination)
	}
}

func TestSaveWithoutGetFailsNotFound(t *testing.T) {
	store, _ := newStore(t)

	err := store.Save("never-seen.log", 10)
	if !errors.Is(err, checkpoint.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReopenRestoresTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.json")

	store := checkpoint.Open(path, logging.NewNop())
	record, err := store.Get("app.log")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := store.Save("app.log", 4096); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened := checkpoint.Open(path, logging.NewNop())
	restored, err := reopened.Get("app.log")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if restored.Offset != 4096 || restored.Destination != record.Destination {
		t.Fatalf("restored record %+v does not match saved %+v offset 4096", restored, record)
	}
}

func TestCorruptTableStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt table: %v", err)
	}

	store := checkpoint.Open(path, logging.NewNop())
	if entries := store.Entries(); len(entries) != 0 {
		t.Fatalf("corrupt table must load empty, got %d entries", len(entries))
	}

	// The store must still be usable after a corrupt load.
	if _, err := store.Get("app.log"); err != nil {
		t.Fatalf("Get after corrupt load failed: %v", err)
	}
}

func TestEntriesSortedBySource(t *testing.T) {
	store, _ := newStore(t)
	for _, name := range []string{"c.log", "a.log", "b.log"} {
		if _, err := store.Get(name); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}

	entries := store.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"a.log", "b.log", "c.log"} {
		if entries[i].Source != want {
			t.Fatalf("entries[%d] = %q, want %q", i, entries[i].Source, want)
		}
	}
}
