package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CancelledReason is the error message recorded when a user cancels a job.
// Cancellation has no dedicated terminal status; cancelled jobs are failed
// with this message so callers can still tell them apart.
const CancelledReason = "cancelled by user"

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// validTransitions is the full state machine. Completed is terminal; failed
// jobs may only re-enter the pipeline through retry.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {StatusPending},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no automatic outgoing edges.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Description returns a human-readable summary of a status.
func (s Status) Description() string {
	switch s {
	case StatusPending:
		return "Waiting in queue for processing"
	case StatusProcessing:
		return "Currently being processed"
	case StatusCompleted:
		return "Successfully completed"
	case StatusFailed:
		return "Processing failed"
	default:
		return "Unknown status"
	}
}

// Job represents a conversion job persisted in SQLite.
type Job struct {
	ID           int64
	OwnerID      int64
	Status       Status
	InputRef     string
	OutputRef    string
	ErrorMessage string
	SizeBytes    int64
	Settings     string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// CanRetry reports whether the job is eligible for a retry request.
func (j *Job) CanRetry() bool {
	return j.Status == StatusFailed
}

// CanCancel reports whether the job is eligible for a cancel request.
func (j *Job) CanCancel() bool {
	return j.Status == StatusPending || j.Status == StatusProcessing
}

// ProgressMessage returns the user-facing message for the job's current state.
func (j *Job) ProgressMessage() string {
	if j.Status == StatusFailed && j.ErrorMessage != "" {
		return j.ErrorMessage
	}
	switch j.Status {
	case StatusPending:
		return "Waiting in queue..."
	case StatusProcessing:
		return "Processing media..."
	case StatusCompleted:
		return "Processing completed successfully"
	case StatusFailed:
		return "Processing failed"
	default:
		return "Unknown status"
	}
}

// Transition is one recorded edge in a job's status history. A creation
// record carries an empty From.
type Transition struct {
	From      Status
	To        Status
	Timestamp time.Time
	Reason    string
}
