package config

const (
	defaultIncomingDir = "~/.local/share/convertd/incoming"
	defaultOutputDir   = "~/.local/share/convertd/output"
	defaultLogDir      = "~/.local/share/convertd/logs"

	defaultLogLevel  = "info"
	defaultLogFormat = "console"

	defaultPendingTimeoutMinutes      = 120
	defaultProcessingTimeoutMinutes   = 120
	defaultSweepIntervalMinutes       = 5
	defaultSweepDeadlineSeconds       = 60
	defaultValidationThresholdMinutes = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IncomingDir: defaultIncomingDir,
			OutputDir:   defaultOutputDir,
			LogDir:      defaultLogDir,
		},
		Log: Log{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Monitor: Monitor{
			PendingTimeoutMinutes:      defaultPendingTimeoutMinutes,
			ProcessingTimeoutMinutes:   defaultProcessingTimeoutMinutes,
			SweepIntervalMinutes:       defaultSweepIntervalMinutes,
			SweepDeadlineSeconds:       defaultSweepDeadlineSeconds,
			ValidationThresholdMinutes: defaultValidationThresholdMinutes,
		},
	}
}
