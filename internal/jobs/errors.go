package jobs

import (
	"errors"
	"fmt"
)

// Caller-facing error taxonomy. Every facade operation returns one of these
// (wrapped with context) or succeeds.
var (
	ErrNotFound          = errors.New("job not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidState      = errors.New("operation not valid for current job status")
	ErrInputMissing      = errors.New("input artifact missing")
	ErrStoreUnavailable  = errors.New("job store unavailable")
)

// InvalidTransitionError carries the rejected edge for diagnostics.
type InvalidTransitionError struct {
	JobID int64
	From  Status
	To    Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s for job %d", e.From, e.To, e.JobID)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
