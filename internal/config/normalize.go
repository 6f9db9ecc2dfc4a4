package config

import "strings"

// normalize expands paths, trims string values, and canonicalizes the masking
// policy so lookups downstream are exact-match.
func (c *Config) normalize() error {
	var err error
	if c.Paths.SourceDir, err = expandPath(strings.TrimSpace(c.Paths.SourceDir)); err != nil {
		return err
	}
	if c.Paths.BackupDir, err = expandPath(strings.TrimSpace(c.Paths.BackupDir)); err != nil {
		return err
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return err
	}

	c.Masking.FullMask = trimAndDedupe(c.Masking.FullMask)
	c.Masking.SkipIfContains = trimAndDedupe(c.Masking.SkipIfContains)
	c.Masking.SkipFields = trimAndDedupe(c.Masking.SkipFields)
	c.Masking.LevelField = strings.TrimSpace(c.Masking.LevelField)
	c.Masking.RedactionToken = strings.TrimSpace(c.Masking.RedactionToken)
	if c.Masking.RedactionToken == "" {
		c.Masking.RedactionToken = defaultRedactionToken
	}
	if strings.TrimSpace(c.Masking.MaskChar) == "" {
		c.Masking.MaskChar = defaultMaskChar
	}

	if len(c.Masking.Partial) > 0 {
		partial := make(map[string]PartialRule, len(c.Masking.Partial))
		for field, rule := range c.Masking.Partial {
			trimmed := strings.TrimSpace(field)
			if trimmed == "" {
				continue
			}
			partial[trimmed] = rule
		}
		c.Masking.Partial = partial
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

func trimAndDedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
