package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"convertd/internal/admission"
	"convertd/internal/artifacts"
	"convertd/internal/jobs"
	"convertd/internal/logging"
	"convertd/internal/status"
)

// Orchestrator is the facade over the job lifecycle subsystem.
type Orchestrator struct {
	store     *jobs.Store
	queue     *admission.Queue
	manager   *status.Manager
	artifacts *artifacts.Storage
	logger    *slog.Logger
}

// New constructs an orchestrator from explicitly owned components.
func New(store *jobs.Store, queue *admission.Queue, manager *status.Manager, storage *artifacts.Storage, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		queue:     queue,
		manager:   manager,
		artifacts: storage,
		logger:    logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// Manager exposes the status manager for derived queries.
func (o *Orchestrator) Manager() *status.Manager {
	return o.manager
}

// CreateJob verifies the input artifact, persists a new pending job, records
// its creation, and admits it to the queue.
func (o *Orchestrator) CreateJob(ctx context.Context, ownerID int64, inputRef, settings string, sizeBytes int64) (*jobs.Job, error) {
	if !o.artifacts.Exists(inputRef) {
		return nil, fmt.Errorf("input %q: %w", inputRef, jobs.ErrInputMissing)
	}
	if sizeBytes <= 0 {
		sizeBytes = o.artifacts.Size(inputRef)
	}

	job, err := o.store.Create(ctx, ownerID, inputRef, settings, sizeBytes)
	if err != nil {
		return nil, err
	}

	o.manager.RecordCreated(ctx, job)
	o.queue.Enqueue(job.ID)

	o.logger.Info("job created",
		logging.JobID(job.ID),
		logging.Int64(logging.FieldOwnerID, ownerID),
		logging.Int64("size_bytes", sizeBytes),
	)
	return job, nil
}

// RetryJob moves a failed job back to pending and re-admits it to the queue.
func (o *Orchestrator) RetryJob(ctx context.Context, jobID, ownerID int64) (*jobs.Job, error) {
	job, err := o.ownedJob(ctx, jobID, ownerID)
	if err != nil {
		return nil, err
	}
	if job.Status != jobs.StatusFailed {
		return nil, fmt.Errorf("retry job %d: only failed jobs can be retried (status %s): %w",
			jobID, job.Status, jobs.ErrInvalidState)
	}
	if !o.artifacts.Exists(job.InputRef) {
		return nil, fmt.Errorf("retry job %d: input %q: %w", jobID, job.InputRef, jobs.ErrInputMissing)
	}

	updated, err := o.manager.Transition(ctx, jobID, jobs.StatusPending, status.Change{Reason: "retry requested"})
	if err != nil {
		return nil, err
	}
	o.queue.Enqueue(jobID)

	o.logger.Info("job queued for retry", logging.JobID(jobID))
	return updated, nil
}

// CancelJob fails a non-completed job on the user's behalf. Pending jobs are
// withdrawn from the queue first; a checked-out job's processing membership
// is cleared defensively so the worker's late callback cannot leak it.
func (o *Orchestrator) CancelJob(ctx context.Context, jobID, ownerID int64) (*jobs.Job, error) {
	job, err := o.ownedJob(ctx, jobID, ownerID)
	if err != nil {
		return nil, err
	}
	if job.Status == jobs.StatusCompleted {
		return nil, fmt.Errorf("cancel job %d: cannot cancel completed job: %w", jobID, jobs.ErrInvalidState)
	}

	if job.Status == jobs.StatusPending {
		o.queue.Remove(jobID)
	}

	updated, err := o.manager.Transition(ctx, jobID, jobs.StatusFailed, status.Change{
		ErrorMessage: jobs.CancelledReason,
		Reason:       "cancel requested",
	})
	if err != nil {
		return nil, err
	}
	o.queue.MarkFailed(jobID)

	o.logger.Info("job cancelled", logging.JobID(jobID), logging.Int64(logging.FieldOwnerID, ownerID))
	return updated, nil
}

// DeleteJob removes a job entirely: queue membership, artifacts
// (best-effort), in-memory history, and finally the store record. The record
// goes last so a crash mid-delete leaves it recoverable rather than
// orphaning artifacts with no record.
func (o *Orchestrator) DeleteJob(ctx context.Context, jobID, ownerID int64) error {
	job, err := o.ownedJob(ctx, jobID, ownerID)
	if err != nil {
		return err
	}

	if job.Status == jobs.StatusPending {
		o.queue.Remove(jobID)
	}

	if job.InputRef != "" {
		o.artifacts.Delete(job.InputRef)
	}
	if job.OutputRef != "" {
		o.artifacts.Delete(job.OutputRef)
	}

	o.manager.ClearHistory(jobID)

	if _, err := o.store.Delete(ctx, jobID); err != nil {
		return err
	}

	o.logger.Info("job deleted", logging.JobID(jobID), logging.Int64(logging.FieldOwnerID, ownerID))
	return nil
}

func (o *Orchestrator) ownedJob(ctx context.Context, jobID, ownerID int64) (*jobs.Job, error) {
	job, err := o.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %d: %w", jobID, jobs.ErrNotFound)
	}
	if job.OwnerID != ownerID {
		return nil, fmt.Errorf("job %d: %w", jobID, jobs.ErrAccessDenied)
	}
	return job, nil
}
