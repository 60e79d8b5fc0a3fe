// Package config loads and validates convertd configuration from TOML.
//
// Configuration is grouped into sections mirroring the daemon's subsystems:
// paths for artifact and log directories, log for logger tuning, and monitor
// for the health monitor's stage timeouts and sweep cadence. Default() returns
// repository defaults; Load layers a TOML file on top of them and validates
// the result. EnsureDirectories creates the directories a store or logger
// needs before first use.
package config
