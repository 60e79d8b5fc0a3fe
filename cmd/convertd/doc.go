// Command convertd is the media conversion job service CLI and daemon.
//
// The serve subcommand runs the long-lived daemon with the background health
// monitor. The remaining subcommands operate on the job store directly and
// are intended for operators.
package main
