// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"logvault/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SourceDir = filepath.Join(base, "logs")
	cfg.Paths.BackupDir = filepath.Join(base, "backup")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "applogs")
	cfg.Workflow.SweepInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1

	if err := os.MkdirAll(cfg.Paths.SourceDir, 0o755); err != nil {
		t.Fatalf("mkdir source dir: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMasking overrides the masking policy on the test config.
func WithMasking(masking config.Masking) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Masking = masking
	}
}

// WithConcurrency overrides the per-cycle concurrency bound.
func WithConcurrency(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxConcurrency = n
	}
}
