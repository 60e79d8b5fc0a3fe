// Package admission provides the in-memory FIFO gate between submitted jobs
// and the external conversion worker.
//
// The queue tracks two disjoint sets under one lock: job IDs waiting for a
// worker slot, in submission order, and IDs currently checked out for
// processing. It coordinates admission only; it never runs work itself, and
// its contents are process-local. The orchestrator rebuilds it from pending
// store rows at daemon start.
package admission
