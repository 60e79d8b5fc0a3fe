package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports configuration problems that would prevent the daemon from
// operating. All problems are collected into a single error.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.IncomingDir) == "" {
		problems = append(problems, "paths.incoming_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		problems = append(problems, "paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be console or json, got %q", c.Log.Format))
	}

	if c.Monitor.PendingTimeoutMinutes <= 0 {
		problems = append(problems, "monitor.pending_timeout_minutes must be positive")
	}
	if c.Monitor.ProcessingTimeoutMinutes <= 0 {
		problems = append(problems, "monitor.processing_timeout_minutes must be positive")
	}
	if c.Monitor.SweepIntervalMinutes <= 0 {
		problems = append(problems, "monitor.sweep_interval_minutes must be positive")
	}
	if c.Monitor.SweepDeadlineSeconds <= 0 {
		problems = append(problems, "monitor.sweep_deadline_seconds must be positive")
	}
	if c.Monitor.ValidationThresholdMinutes <= 0 {
		problems = append(problems, "monitor.validation_threshold_minutes must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
