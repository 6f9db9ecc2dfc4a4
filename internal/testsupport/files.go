package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"logvault/internal/config"
)

// WriteSourceFile creates or replaces a file in the test source directory.
func WriteSourceFile(t testing.TB, cfg *config.Config, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(cfg.Paths.SourceDir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write source file %s: %v", name, err)
	}
}

// AppendSourceFile appends to a file in the test source directory.
func AppendSourceFile(t testing.TB, cfg *config.Config, name, content string) {
	t.Helper()
	file, err := os.OpenFile(filepath.Join(cfg.Paths.SourceDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open source file %s: %v", name, err)
	}
	defer file.Close()
	if _, err := file.WriteString(content); err != nil {
		t.Fatalf("append source file %s: %v", name, err)
	}
}
