// Package status is the single authority for job status changes.
//
// The Manager validates every requested transition against the state machine
// in the jobs package, persists the change, and appends to an in-memory
// per-job history log. Mutations for the same job ID are serialized with a
// per-ID lock so validate, persist, and log behave atomically per job; a
// history entry is only appended after the store confirms the update, so
// History never shows a transition that didn't durably land.
//
// The in-memory history map is the fast path; confirmed transitions are also
// written through to the store's durable log, and LoadHistory falls back to
// it for jobs recorded before this process started.
package status
