package orchestrator

import (
	"context"

	"convertd/internal/admission"
	"convertd/internal/jobs"
	"convertd/internal/logging"
	"convertd/internal/status"
)

// DequeueNext hands the next queued job to the external worker, moving its ID
// into the processing set. Returns (nil, nil) when the queue is empty. A
// dequeued ID with no backing store row is a queue inconsistency: it is
// logged, purged, and the call degrades to an empty result.
func (o *Orchestrator) DequeueNext(ctx context.Context) (*jobs.Job, error) {
	jobID, ok := o.queue.Dequeue()
	if !ok {
		return nil, nil
	}

	job, err := o.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		o.logger.Error("queue inconsistency: dequeued job missing from store", logging.JobID(jobID))
		o.queue.MarkFailed(jobID)
		return nil, nil
	}
	return job, nil
}

// MarkProcessing records that the worker has started on a job.
func (o *Orchestrator) MarkProcessing(ctx context.Context, jobID int64) (*jobs.Job, error) {
	return o.manager.Transition(ctx, jobID, jobs.StatusProcessing, status.Change{Reason: "worker started"})
}

// MarkCompleted records a successful conversion and releases the job's
// processing slot.
func (o *Orchestrator) MarkCompleted(ctx context.Context, jobID int64, outputRef string) (*jobs.Job, error) {
	job, err := o.manager.Transition(ctx, jobID, jobs.StatusCompleted, status.Change{
		OutputRef: outputRef,
		Reason:    "worker completed",
	})
	o.queue.MarkCompleted(jobID)
	return job, err
}

// MarkFailed records a failed conversion and releases the job's processing
// slot. The slot is released even when the transition is rejected, so a
// duplicate or late callback cannot leak queue membership.
func (o *Orchestrator) MarkFailed(ctx context.Context, jobID int64, errorMessage string) (*jobs.Job, error) {
	job, err := o.manager.Transition(ctx, jobID, jobs.StatusFailed, status.Change{
		ErrorMessage: errorMessage,
		Reason:       "worker reported failure",
	})
	o.queue.MarkFailed(jobID)
	return job, err
}

// QueueStats returns a snapshot of admission queue membership.
func (o *Orchestrator) QueueStats() admission.Stats {
	return o.queue.Stats()
}

// NextInQueue returns the head of the queue without dequeuing it.
func (o *Orchestrator) NextInQueue() (int64, bool) {
	return o.queue.Peek()
}

// IsProcessing reports whether a job is currently checked out by the worker.
func (o *Orchestrator) IsProcessing(jobID int64) bool {
	return o.queue.IsProcessing(jobID)
}

// RestoreQueue re-admits persisted pending jobs after a restart, in creation
// order. Queue membership is process-local, so this runs once at daemon
// start.
func (o *Orchestrator) RestoreQueue(ctx context.Context) (int, error) {
	pending, err := o.store.ListByStatus(ctx, jobs.StatusPending)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, job := range pending {
		if o.queue.Enqueue(job.ID) {
			restored++
		}
	}
	if restored > 0 {
		o.logger.Info("admission queue restored", logging.Int("jobs", restored))
	}
	return restored, nil
}
