// Package source enumerates and opens the application log files to back up.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Descriptor identifies one candidate file and its size at enumeration time.
// Descriptors are re-derived every cycle and never persisted.
type Descriptor struct {
	Name   string
	Length int64
}

// Provider supplies the pipeline with candidate files and positioned readers.
type Provider interface {
	// List returns a snapshot of the currently visible source files.
	List() ([]Descriptor, error)
	// OpenAt opens a source positioned at the given byte offset. The reader
	// must tolerate a concurrent writer appending to the same file.
	OpenAt(name string, offset int64) (io.ReadCloser, error)
}

// DirProvider serves *.log files from a single directory, non-recursive.
type DirProvider struct {
	dir string
}

// NewDir constructs a provider over the given directory.
func NewDir(dir string) *DirProvider {
	return &DirProvider{dir: dir}
}

// List enumerates the directory. A missing source directory is reported as an
// empty listing so a not-yet-created log directory does not fail the cycle.
func (p *DirProvider) List() ([]Descriptor, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list source directory %q: %w", p.dir, err)
	}

	var descriptors []Descriptor
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// The file vanished between ReadDir and Info; next cycle
			// re-enumerates anyway.
			continue
		}
		descriptors = append(descriptors, Descriptor{Name: entry.Name(), Length: info.Size()})
	}

	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors, nil
}

// OpenAt opens the named source file seeked to offset.
func (p *DirProvider) OpenAt(name string, offset int64) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(p.dir, name))
	if err != nil {
		return nil, fmt.Errorf("open source %q: %w", name, err)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("seek source %q to %d: %w", name, offset, err)
	}
	return file, nil
}
