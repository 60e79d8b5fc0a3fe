package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"convertd/internal/admission"
	"convertd/internal/artifacts"
	"convertd/internal/config"
	"convertd/internal/jobs"
	"convertd/internal/logging"
	"convertd/internal/orchestrator"
	"convertd/internal/status"
	"convertd/internal/testsupport"
)

type fixture struct {
	cfg   *config.Config
	store *jobs.Store
	queue *admission.Queue
	orch  *orchestrator.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	queue := admission.New(logger)
	orch := orchestrator.New(store, queue, status.NewManager(store, logger), artifacts.NewStorage(logger), logger)
	return &fixture{cfg: cfg, store: store, queue: queue, orch: orch}
}

func (f *fixture) submit(t *testing.T, ownerID int64, name string, size int) *jobs.Job {
	t.Helper()
	input := testsupport.WriteArtifact(t, f.cfg.Paths.IncomingDir, name, size)
	job, err := f.orch.CreateJob(context.Background(), ownerID, input, "", 0)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	return job
}

func TestCreateJobAdmitsAndRecordsHistory(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, 1, "movie.mkv", 4096)

	if job.Status != jobs.StatusPending {
		t.Fatalf("status = %s, want pending", job.Status)
	}
	if job.SizeBytes != 4096 {
		t.Fatalf("size detected as %d, want 4096", job.SizeBytes)
	}
	if head, ok := f.orch.NextInQueue(); !ok || head != job.ID {
		t.Fatalf("queue head = (%d, %v), want (%d, true)", head, ok, job.ID)
	}

	history := f.orch.Manager().History(job.ID)
	if len(history) != 1 || history[0].Reason != "created" {
		t.Fatalf("unexpected history: %#v", history)
	}
}

func TestCreateJobRejectsMissingInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.CreateJob(context.Background(), 1, "/nowhere/missing.mkv", "", 0)
	if !errors.Is(err, jobs.ErrInputMissing) {
		t.Fatalf("expected ErrInputMissing, got %v", err)
	}
	if stats := f.orch.QueueStats(); stats.TotalInProgress != 0 {
		t.Fatalf("rejected job reached the queue: %#v", stats)
	}
}

func TestWorkerLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.submit(t, 1, "movie.mkv", 1024)

	next, err := f.orch.DequeueNext(ctx)
	if err != nil {
		t.Fatalf("DequeueNext failed: %v", err)
	}
	if next == nil || next.ID != job.ID {
		t.Fatalf("unexpected dequeued job: %#v", next)
	}
	if !f.orch.IsProcessing(job.ID) {
		t.Fatal("job should be in the processing set")
	}

	if _, err := f.orch.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}

	completed, err := f.orch.MarkCompleted(ctx, job.ID, "/out/movie.mp4")
	if err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if completed.Status != jobs.StatusCompleted || completed.OutputRef != "/out/movie.mp4" {
		t.Fatalf("unexpected completed job: %#v", completed)
	}
	if f.orch.IsProcessing(job.ID) {
		t.Fatal("processing slot not released")
	}

	if more, err := f.orch.DequeueNext(ctx); err != nil || more != nil {
		t.Fatalf("empty queue should yield (nil, nil), got (%#v, %v)", more, err)
	}
}

func TestMarkFailedReleasesSlotEvenWhenRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.submit(t, 1, "movie.mkv", 1024)

	if _, err := f.orch.DequeueNext(ctx); err != nil {
		t.Fatalf("DequeueNext failed: %v", err)
	}
	if _, err := f.orch.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if _, err := f.orch.MarkCompleted(ctx, job.ID, "/out/movie.mp4"); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	// A late failure callback for a completed job is rejected by the state
	// machine but must still release queue membership.
	_, err := f.orch.MarkFailed(ctx, job.ID, "late callback")
	if !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if f.orch.IsProcessing(job.ID) {
		t.Fatal("late callback leaked processing membership")
	}
}

func TestDequeueNextPurgesMissingJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.submit(t, 1, "movie.mkv", 1024)

	// Delete the store row behind the queue's back.
	if _, err := f.store.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	next, err := f.orch.DequeueNext(ctx)
	if err != nil {
		t.Fatalf("DequeueNext failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected degradation to empty result, got %#v", next)
	}
	if stats := f.orch.QueueStats(); stats.TotalInProgress != 0 {
		t.Fatalf("inconsistent entry not purged: %#v", stats)
	}
}

func TestRetryJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.submit(t, 1, "movie.mkv", 1024)

	// Only failed jobs can be retried.
	if _, err := f.orch.RetryJob(ctx, job.ID, 1); !errors.Is(err, jobs.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	if _, err := f.orch.DequeueNext(ctx); err != nil {
		t.Fatalf("DequeueNext failed: %v", err)
	}
	if _, err := f.orch.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if _, err := f.orch.MarkFailed(ctx, job.ID, "encoder crashed"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	// Wrong owner is rejected before state checks.
	if _, err := f.orch.RetryJob(ctx, job.ID, 2); !errors.Is(err, jobs.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	retried, err := f.orch.RetryJob(ctx, job.ID, 1)
	if err != nil {
		t.Fatalf("RetryJob failed: %v", err)
	}
	if retried.Status != jobs.StatusPending {
		t.Fatalf("status = %s, want pending", retried.Status)
	}
	if retried.ErrorMessage != "" {
		t.Fatalf("retry kept error message %q", retried.ErrorMessage)
	}
	if head, ok := f.orch.NextInQueue(); !ok || head != job.ID {
		t.Fatalf("retried job not re-admitted: (%d, %v)", head, ok)
	}
}

func TestRetryJobRequiresInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.submit(t, 1, "movie.mkv", 1024)

	if _, err := f.orch.DequeueNext(ctx); err != nil {
		t.Fatalf("DequeueNext failed: %v", err)
	}
	if _, err := f.orch.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if _, err := f.orch.MarkFailed(ctx, job.ID, "encoder crashed"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	if err := os.Remove(job.InputRef); err != nil {
		t.Fatalf("remove input: %v", err)
	}

	if _, err := f.orch.RetryJob(ctx, job.ID, 1); !errors.Is(err, jobs.ErrInputMissing) {
		t.Fatalf("expected ErrInputMissing, got %v", err)
	}
}

func TestCancelPendingJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.submit(t, 1, "movie.mkv", 1024)

	cancelled, err := f.orch.CancelJob(ctx, job.ID, 1)
	if err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	if cancelled.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", cancelled.Status)
	}
	if cancelled.ErrorMessage != jobs.CancelledReason {
		t.Fatalf("error message = %q, want %q", cancelled.ErrorMessage, jobs.CancelledReason)
	}
	if stats := f.orch.QueueStats(); stats.TotalInProgress != 0 {
		t.Fatalf("cancelled job still in queue: %#v", stats)
	}
}

func TestCancelProcessingJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.submit(t, 1, "movie.mkv", 1024)

	if _, err := f.orch.DequeueNext(ctx); err != nil {
		t.Fatalf("DequeueNext failed: %v", err)
	}
	if _, err := f.orch.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}

	cancelled, err := f.orch.CancelJob(ctx, job.ID, 1)
	if err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	if cancelled.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", cancelled.Status)
	}
	if cancelled.ErrorMessage != jobs.CancelledReason {
		t.Fatalf("error message = %q, want %q", cancelled.ErrorMessage, jobs.CancelledReason)
	}
	if f.orch.IsProcessing(job.ID) {
		t.Fatal("processing slot not released")
	}
	if stats := f.orch.QueueStats(); stats.TotalInProgress != 0 {
		t.Fatalf("cancelled job still tracked: %#v", stats)
	}
}

func TestCancelCompletedJobRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.submit(t, 1, "movie.mkv", 1024)

	if _, err := f.orch.DequeueNext(ctx); err != nil {
		t.Fatalf("DequeueNext failed: %v", err)
	}
	if _, err := f.orch.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if _, err := f.orch.MarkCompleted(ctx, job.ID, "/out/movie.mp4"); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	if _, err := f.orch.CancelJob(ctx, job.ID, 1); !errors.Is(err, jobs.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestDeleteJobPurgesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.submit(t, 1, "movie.mkv", 1024)

	if err := f.orch.DeleteJob(ctx, job.ID, 1); err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}

	if _, err := os.Stat(job.InputRef); !os.IsNotExist(err) {
		t.Fatal("input artifact not removed")
	}
	gone, err := f.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if gone != nil {
		t.Fatalf("store record survived delete: %#v", gone)
	}
	if len(f.orch.Manager().History(job.ID)) != 0 {
		t.Fatal("history survived delete")
	}
	if stats := f.orch.QueueStats(); stats.TotalInProgress != 0 {
		t.Fatalf("queue entry survived delete: %#v", stats)
	}
}

func TestDeleteJobAccessDenied(t *testing.T) {
	f := newFixture(t)
	job := f.submit(t, 1, "movie.mkv", 1024)

	if err := f.orch.DeleteJob(context.Background(), job.ID, 99); !errors.Is(err, jobs.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestRestoreQueueReadmitsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.submit(t, 1, "first.mkv", 100)
	second := f.submit(t, 1, "second.mkv", 100)

	// Simulate a restart: fresh queue, same store.
	logger := logging.NewNop()
	restarted := orchestrator.New(f.store, admission.New(logger),
		status.NewManager(f.store, logger), artifacts.NewStorage(logger), logger)

	restored, err := restarted.RestoreQueue(ctx)
	if err != nil {
		t.Fatalf("RestoreQueue failed: %v", err)
	}
	if restored != 2 {
		t.Fatalf("restored = %d, want 2", restored)
	}
	if head, ok := restarted.NextInQueue(); !ok || head != first.ID {
		t.Fatalf("queue head = (%d, %v), want (%d, true)", head, ok, first.ID)
	}

	// Idempotent on repeat.
	again, err := restarted.RestoreQueue(ctx)
	if err != nil {
		t.Fatalf("second RestoreQueue failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("second restore re-admitted %d jobs", again)
	}

	// Submission order survives the restart.
	if _, err := restarted.DequeueNext(ctx); err != nil {
		t.Fatalf("DequeueNext failed: %v", err)
	}
	if head, ok := restarted.NextInQueue(); !ok || head != second.ID {
		t.Fatalf("second in line = (%d, %v), want (%d, true)", head, ok, second.ID)
	}
}
