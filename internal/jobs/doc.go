// Package jobs defines the conversion job model and its SQLite-backed store.
//
// A Job tracks one submitted conversion from creation through a terminal
// status. The package owns the status enum, the allowed-transition table, and
// the persistence invariants: completed_at is set exactly when a job enters a
// terminal status, output_ref is kept only for completed jobs, and
// error_message only for failed ones. The Store manages connections, schema
// initialization, and the create/read/update/delete operations the rest of
// the daemon builds on.
//
// Treat this package as the single source of truth for job semantics; when
// you add statuses or fields, update schema.sql and bump schemaVersion.
package jobs
