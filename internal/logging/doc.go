// Package logging builds the slog loggers used across convertd.
//
// Loggers are constructed from config with either a compact console handler
// or JSON output, and every subsystem tags its records with a component
// attribute via NewComponentLogger. Attr helpers keep call sites short and
// the field name constants keep keys consistent between subsystems.
package logging
