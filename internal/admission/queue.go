package admission

import (
	"log/slog"
	"sync"

	"convertd/internal/logging"
)

// Stats is a snapshot of queue membership counts.
type Stats struct {
	Queued          int
	Processing      int
	TotalInProgress int
}

// Queue is a FIFO of job IDs awaiting a worker slot plus the set of IDs
// currently checked out. Both are guarded by one mutex so Stats reflects a
// consistent view.
type Queue struct {
	mu         sync.Mutex
	pending    []int64
	processing map[int64]struct{}
	logger     *slog.Logger
}

// New constructs an empty queue.
func New(logger *slog.Logger) *Queue {
	return &Queue{
		processing: make(map[int64]struct{}),
		logger:     logging.NewComponentLogger(logger, "admission"),
	}
}

// Enqueue appends a job ID to the tail. Enqueueing an ID that is already
// queued or checked out is a no-op; the return value reports whether the ID
// was added.
func (q *Queue) Enqueue(jobID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.queuedLocked(jobID) {
		return false
	}
	if _, ok := q.processing[jobID]; ok {
		return false
	}
	q.pending = append(q.pending, jobID)
	q.logger.Debug("job enqueued", logging.JobID(jobID), logging.Int("queued", len(q.pending)))
	return true
}

// Dequeue removes and returns the head ID, moving it into the processing
// set. It does not block; ok is false when the queue is empty.
func (q *Queue) Dequeue() (jobID int64, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return 0, false
	}
	jobID = q.pending[0]
	q.pending = q.pending[1:]
	q.processing[jobID] = struct{}{}
	q.logger.Debug("job dequeued", logging.JobID(jobID), logging.Int("queued", len(q.pending)))
	return jobID, true
}

// Peek returns the head ID without removing it.
func (q *Queue) Peek() (jobID int64, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return 0, false
	}
	return q.pending[0], true
}

// MarkCompleted removes the ID from the processing set. Calling it for an ID
// that is not checked out is harmless.
func (q *Queue) MarkCompleted(jobID int64) {
	q.release(jobID)
}

// MarkFailed removes the ID from the processing set. Calling it for an ID
// that is not checked out is harmless.
func (q *Queue) MarkFailed(jobID int64) {
	q.release(jobID)
}

func (q *Queue) release(jobID int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, jobID)
}

// Remove deletes the ID from the FIFO body if present, otherwise from the
// processing set. It reports whether any removal occurred. Removed IDs are
// never re-admitted automatically.
func (q *Queue) Remove(jobID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, queued := range q.pending {
		if queued == jobID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	if _, ok := q.processing[jobID]; ok {
		delete(q.processing, jobID)
		return true
	}
	return false
}

// IsProcessing reports whether the ID is currently checked out.
func (q *Queue) IsProcessing(jobID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.processing[jobID]
	return ok
}

// Stats returns current membership counts.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Queued:          len(q.pending),
		Processing:      len(q.processing),
		TotalInProgress: len(q.pending) + len(q.processing),
	}
}

func (q *Queue) queuedLocked(jobID int64) bool {
	for _, queued := range q.pending {
		if queued == jobID {
			return true
		}
	}
	return false
}
