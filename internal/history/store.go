package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; operators clear the history database after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// FileOutcome classifies what one pass over one file did.
type FileOutcome string

const (
	OutcomeProcessed FileOutcome = "processed"
	OutcomeSkipped   FileOutcome = "skipped"
	OutcomeFailed    FileOutcome = "failed"
)

// FileResult is the per-file portion of a cycle record.
type FileResult struct {
	Source       string
	Outcome      FileOutcome
	LinesWritten int
	Error        string
}

// Cycle aggregates one sweep over all visible files.
type Cycle struct {
	ID             int64
	StartedAt      time.Time
	FinishedAt     time.Time
	FilesSeen      int
	FilesProcessed int
	FilesSkipped   int
	FilesFailed    int
	LinesRead      int
	LinesWritten   int
	LinesDropped   int
	Error          string
	Files          []FileResult
}

// Store persists cycle history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the history database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecordCycle inserts a cycle and its per-file results in one transaction and
// returns the assigned id.
func (s *Store) RecordCycle(ctx context.Context, cycle Cycle) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cycle tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO cycles (
            started_at, finished_at, files_seen, files_processed, files_skipped,
            files_failed, lines_read, lines_written, lines_dropped, error
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cycle.StartedAt.UTC().Format(time.RFC3339Nano),
		cycle.FinishedAt.UTC().Format(time.RFC3339Nano),
		cycle.FilesSeen,
		cycle.FilesProcessed,
		cycle.FilesSkipped,
		cycle.FilesFailed,
		cycle.LinesRead,
		cycle.LinesWritten,
		cycle.LinesDropped,
		nullableString(cycle.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("insert cycle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	for _, file := range cycle.Files {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cycle_files (cycle_id, source, outcome, lines_written, error)
             VALUES (?, ?, ?, ?, ?)`,
			id, file.Source, string(file.Outcome), file.LinesWritten, nullableString(file.Error),
		); err != nil {
			return 0, fmt.Errorf("insert cycle file %q: %w", file.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cycle: %w", err)
	}
	return id, nil
}

// Recent returns the newest cycles, most recent first, including their
// per-file results.
func (s *Store) Recent(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, files_seen, files_processed, files_skipped,
                files_failed, lines_read, lines_written, lines_dropped, error
         FROM cycles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var (
			cycle      Cycle
			startedAt  string
			finishedAt string
			cycleErr   sql.NullString
		)
		if err := rows.Scan(&cycle.ID, &startedAt, &finishedAt, &cycle.FilesSeen,
			&cycle.FilesProcessed, &cycle.FilesSkipped, &cycle.FilesFailed,
			&cycle.LinesRead, &cycle.LinesWritten, &cycle.LinesDropped, &cycleErr); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cycle.StartedAt = parseTimestamp(startedAt)
		cycle.FinishedAt = parseTimestamp(finishedAt)
		cycle.Error = cycleErr.String
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}

	for i := range cycles {
		files, err := s.cycleFiles(ctx, cycles[i].ID)
		if err != nil {
			return nil, err
		}
		cycles[i].Files = files
	}
	return cycles, nil
}

func (s *Store) cycleFiles(ctx context.Context, cycleID int64) ([]FileResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, outcome, lines_written, error FROM cycle_files
         WHERE cycle_id = ? ORDER BY id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("query cycle files: %w", err)
	}
	defer rows.Close()

	var files []FileResult
	for rows.Next() {
		var (
			file    FileResult
			outcome string
			fileErr sql.NullString
		)
		if err := rows.Scan(&file.Source, &outcome, &file.LinesWritten, &fileErr); err != nil {
			return nil, fmt.Errorf("scan cycle file: %w", err)
		}
		file.Outcome = FileOutcome(outcome)
		file.Error = fileErr.String
		files = append(files, file)
	}
	return files, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
