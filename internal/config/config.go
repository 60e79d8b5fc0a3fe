package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	IncomingDir string `toml:"incoming_dir"`
	OutputDir   string `toml:"output_dir"`
	LogDir      string `toml:"log_dir"`
}

// Log contains logger configuration.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Monitor contains health monitor timing configuration. All values are
// interpreted as minutes except SweepDeadlineSeconds.
type Monitor struct {
	PendingTimeoutMinutes      int `toml:"pending_timeout_minutes"`
	ProcessingTimeoutMinutes   int `toml:"processing_timeout_minutes"`
	SweepIntervalMinutes       int `toml:"sweep_interval_minutes"`
	SweepDeadlineSeconds       int `toml:"sweep_deadline_seconds"`
	ValidationThresholdMinutes int `toml:"validation_threshold_minutes"`
}

// Config is the root configuration document.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Log     Log     `toml:"log"`
	Monitor Monitor `toml:"monitor"`
}

// PendingTimeout returns the pending stage budget as a duration.
func (m Monitor) PendingTimeout() time.Duration {
	return time.Duration(m.PendingTimeoutMinutes) * time.Minute
}

// ProcessingTimeout returns the processing stage budget as a duration.
func (m Monitor) ProcessingTimeout() time.Duration {
	return time.Duration(m.ProcessingTimeoutMinutes) * time.Minute
}

// SweepInterval returns the interval between health sweeps.
func (m Monitor) SweepInterval() time.Duration {
	return time.Duration(m.SweepIntervalMinutes) * time.Minute
}

// SweepDeadline returns the soft deadline applied to a single sweep.
func (m Monitor) SweepDeadline() time.Duration {
	return time.Duration(m.SweepDeadlineSeconds) * time.Second
}

// ValidationThreshold returns the age beyond which a pending job is repaired.
func (m Monitor) ValidationThreshold() time.Duration {
	return time.Duration(m.ValidationThresholdMinutes) * time.Minute
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return "~/.config/convertd/config.toml"
}

// Load reads configuration from path, layering the file over defaults. A
// missing file at the default location is not an error; the defaults are
// returned along with found=false.
func Load(path string) (*Config, string, bool, error) {
	resolved, err := ExpandPath(firstNonEmpty(path, DefaultPath()))
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && strings.TrimSpace(path) == "" {
			if err := cfg.normalize(); err != nil {
				return nil, resolved, false, err
			}
			return &cfg, resolved, false, nil
		}
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, resolved, true, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, true, err
	}
	return &cfg, resolved, true, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) (string, error) {
	resolved, err := ExpandPath(firstNonEmpty(path, DefaultPath()))
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(resolved); err == nil {
		return resolved, fmt.Errorf("config file already exists at %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return resolved, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(sampleConfig), 0o644); err != nil {
		return resolved, fmt.Errorf("write sample config: %w", err)
	}
	return resolved, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.IncomingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.IncomingDir, err = ExpandPath(c.Paths.IncomingDir); err != nil {
		return err
	}
	if c.Paths.OutputDir, err = ExpandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	return nil
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return trimmed, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
