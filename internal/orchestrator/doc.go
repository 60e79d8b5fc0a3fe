// Package orchestrator composes the job store, admission queue, status
// manager, and artifact storage into the operations callers use.
//
// It is the only entry point for creating, retrying, cancelling, deleting,
// and listing jobs, and it enforces the cross-cutting checks the individual
// components do not know about: ownership, input artifact presence, and the
// ordering of delete cleanup. The external conversion worker reports back
// through the Mark* operations.
package orchestrator
