package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validate checks configuration values and returns the first problem found
// with enough context for the operator to fix it.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.SourceDir) == "" {
		return errors.New("paths.source_dir is required")
	}
	if strings.TrimSpace(c.Paths.BackupDir) == "" {
		return errors.New("paths.backup_dir is required")
	}
	if c.Paths.SourceDir == c.Paths.BackupDir {
		return errors.New("paths.backup_dir must differ from paths.source_dir")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir is required")
	}

	if c.Workflow.SweepInterval <= 0 {
		return fmt.Errorf("workflow.sweep_interval must be positive, got %d", c.Workflow.SweepInterval)
	}
	if c.Workflow.MaxConcurrency <= 0 {
		return fmt.Errorf("workflow.max_concurrency must be at least 1, got %d", c.Workflow.MaxConcurrency)
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return fmt.Errorf("workflow.error_retry_interval must be positive, got %d", c.Workflow.ErrorRetryInterval)
	}

	if utf8.RuneCountInString(c.Masking.MaskChar) != 1 {
		return fmt.Errorf("masking.mask_char must be a single character, got %q", c.Masking.MaskChar)
	}
	for field, rule := range c.Masking.Partial {
		if rule.VisibleStart < 0 || rule.VisibleEnd < 0 {
			return fmt.Errorf("masking.partial.%s: visible_start and visible_end must not be negative", field)
		}
	}
	if len(c.Masking.LevelMap) > 0 && c.Masking.LevelField == "" {
		return errors.New("masking.level_field is required when masking.level_map is set")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}
