// Package monitor runs the background health sweep over non-terminal jobs.
//
// A Monitor is either stopped or running. Start performs one immediate sweep
// and then schedules recurring sweeps on a ticker; each sweep runs under a
// soft deadline so one slow remediation cannot stall the schedule. Stuck jobs
// are failed through the status manager, which re-validates the transition,
// so a job that completed between scan and fix is skipped rather than
// overwritten. Per-job remediation errors are collected, never propagated as
// a sweep failure.
package monitor
