package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"logvault/internal/logging"
)

// ErrNotFound indicates Save was called for a source that Get never created.
var ErrNotFound = errors.New("checkpoint not found")

// Record tracks how much of one source file has been backed up and where.
type Record struct {
	Offset      int64  `json:"offset"`
	Destination string `json:"destination"`
}

// Entry pairs a source identity with its record for listings.
type Entry struct {
	Source string
	Record Record
}

// Store maps source-file identities to checkpoint records. The on-disk table
// is rewritten as a whole after every mutation; the in-memory copy is the same
// table and never diverges after a successful write.
type Store struct {
	mu     sync.Mutex
	path   string
	table  map[string]Record
	logger *slog.Logger
}

// Open loads the persisted table from path. A missing file yields an empty
// table. A corrupt file also yields an empty table: prior progress is
// forgotten and files will be re-processed from the start, which duplicates
// backup output but never loses it.
func Open(path string, logger *slog.Logger) *Store {
	store := &Store{
		path:   path,
		table:  make(map[string]Record),
		logger: logging.WithComponent(logger, "checkpoint"),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			store.logger.Warn("read checkpoint table; starting empty, all files will be re-processed",
				logging.Error(err), logging.String("path", path))
		}
		return store
	}

	var table map[string]Record
	if err := json.Unmarshal(data, &table); err != nil {
		store.logger.Warn("parse checkpoint table; starting empty, all files will be re-processed",
			logging.Error(err), logging.String("path", path))
		return store
	}
	if table != nil {
		store.table = table
	}
	return store
}

// Get returns the checkpoint for a source identity, creating one with offset 0
// and a fresh destination identity on first sight. Creation persists the table
// before returning.
func (s *Store) Get(source string) (Record, error) {
	if source == "" {
		return Record{}, errors.New("source identity is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.table[source]; ok {
		return record, nil
	}

	record := Record{Offset: 0, Destination: newDestinationID()}
	s.table[source] = record
	s.persistLocked()
	return record, nil
}

// Save overwrites the offset for an existing record and persists the whole
// table. Callers must have called Get for the source first. Persistence
// failures are logged and swallowed: the in-memory offset still advances and
// the next mutation retries the write.
func (s *Store) Save(source string, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.table[source]
	if !ok {
		return fmt.Errorf("save checkpoint for %q: %w", source, ErrNotFound)
	}
	record.Offset = offset
	s.table[source] = record
	s.persistLocked()
	return nil
}

// Entries returns a snapshot of the table sorted by source identity.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.table))
	for source, record := range s.table {
		entries = append(entries, Entry{Source: source, Record: record})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Source < entries[j].Source })
	return entries
}

// Path returns the location of the persisted table.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) persistLocked() {
	data, err := json.MarshalIndent(s.table, "", "  ")
	if err != nil {
		s.logger.Warn("encode checkpoint table; progress not durable until next successful write",
			logging.Error(err))
		return
	}

	tmp := s.path + ".tmp"
	if err := writeAndRename(tmp, s.path, data); err != nil {
		s.logger.Warn("persist checkpoint table; progress not durable until next successful write",
			logging.Error(err), logging.String("path", s.path))
	}
}

func writeAndRename(tmp, final string, data []byte) error {
	if dir := filepath.Dir(final); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

// newDestinationID produces a time-ordered, collision-resistant identity for a
// backup artifact. UUIDv7 sorts by creation time, which helps operators match
// artifacts to the period a source first appeared.
func newDestinationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
