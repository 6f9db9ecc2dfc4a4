// Package backup appends sanitized content to destination artifacts.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink writes sanitized lines to backup artifacts addressed by destination
// identity. Appends are durable when the call returns; failures surface as
// errors rather than silent no-ops.
type Sink interface {
	Append(destination string, content []byte) error
	// Ensure creates an empty artifact if none exists yet.
	Ensure(destination string) error
}

// DirSink stores each destination as <identity>.log inside one directory.
type DirSink struct {
	dir string
}

// NewDir constructs a sink writing into the given directory.
func NewDir(dir string) *DirSink {
	return &DirSink{dir: dir}
}

// ArtifactPath returns the file a destination identity maps to.
func (s *DirSink) ArtifactPath(destination string) string {
	return filepath.Join(s.dir, destination+".log")
}

// Append opens the artifact in append mode, creating it on first use, and
// writes content in a single call.
func (s *DirSink) Append(destination string, content []byte) error {
	file, err := s.open(destination)
	if err != nil {
		return err
	}
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		return fmt.Errorf("append to backup %q: %w", destination, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close backup %q: %w", destination, err)
	}
	return nil
}

// Ensure creates the artifact without writing anything.
func (s *DirSink) Ensure(destination string) error {
	file, err := s.open(destination)
	if err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close backup %q: %w", destination, err)
	}
	return nil
}

func (s *DirSink) open(destination string) (*os.File, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory %q: %w", s.dir, err)
	}
	file, err := os.OpenFile(s.ArtifactPath(destination), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open backup %q: %w", destination, err)
	}
	return file, nil
}
