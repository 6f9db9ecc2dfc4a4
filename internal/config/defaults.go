package config

const (
	defaultSourceDir          = "~/logs"
	defaultBackupDir          = "~/.local/share/logvault/backup"
	defaultStateDir           = "~/.local/share/logvault/state"
	defaultLogDir             = "~/.local/share/logvault/logs"
	defaultSweepInterval      = 60
	defaultMaxConcurrency     = 4
	defaultErrorRetryInterval = 10
	defaultLevelField         = "level"
	defaultRedactionToken     = "[REDACTED]"
	defaultMaskChar           = "*"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SourceDir: defaultSourceDir,
			BackupDir: defaultBackupDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Workflow: Workflow{
			SweepInterval:      defaultSweepInterval,
			MaxConcurrency:     defaultMaxConcurrency,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Masking: Masking{
			LevelField:     defaultLevelField,
			RedactionToken: defaultRedactionToken,
			MaskChar:       defaultMaskChar,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
