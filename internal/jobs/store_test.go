package jobs_test

import (
	"context"
	"errors"
	"testing"

	"convertd/internal/jobs"
	"convertd/internal/testsupport"
)

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Create(ctx, 7, "/media/in/movie.mkv", `{"preset":"hq"}`, 2048)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != jobs.StatusPending {
		t.Fatalf("new job status = %s, want pending", job.Status)
	}
	if job.CompletedAt != nil {
		t.Fatal("new job must not carry completed_at")
	}
	if job.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.OwnerID != 7 || fetched.InputRef != "/media/in/movie.mkv" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
	if fetched.SizeBytes != 2048 {
		t.Fatalf("size_bytes = %d, want 2048", fetched.SizeBytes)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetByID(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for missing job, got %#v", job)
	}
}

func TestUpdateStatusSetsCompletedAtOnlyForTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, 1, "/in/a.mkv", 100)

	if err := store.UpdateStatus(ctx, job.ID, jobs.StatusProcessing, "", ""); err != nil {
		t.Fatalf("UpdateStatus to processing failed: %v", err)
	}
	processing, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if processing.CompletedAt != nil {
		t.Fatal("processing job must not carry completed_at")
	}

	if err := store.UpdateStatus(ctx, job.ID, jobs.StatusCompleted, "/out/a.mp4", ""); err != nil {
		t.Fatalf("UpdateStatus to completed failed: %v", err)
	}
	completed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if completed.CompletedAt == nil {
		t.Fatal("completed job must carry completed_at")
	}
	if completed.OutputRef != "/out/a.mp4" {
		t.Fatalf("output_ref = %q, want /out/a.mp4", completed.OutputRef)
	}
}

func TestUpdateStatusScrubsFieldsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, 1, "/in/b.mkv", 100)

	// output_ref is only meaningful on completed jobs, error_message only on
	// failed ones.
	if err := store.UpdateStatus(ctx, job.ID, jobs.StatusFailed, "/out/should-drop.mp4", "disk full"); err != nil {
		t.Fatalf("UpdateStatus to failed: %v", err)
	}
	failed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.OutputRef != "" {
		t.Fatalf("failed job kept output_ref %q", failed.OutputRef)
	}
	if failed.ErrorMessage != "disk full" {
		t.Fatalf("error_message = %q, want disk full", failed.ErrorMessage)
	}
	if failed.CompletedAt == nil {
		t.Fatal("failed job must carry completed_at")
	}

	if err := store.UpdateStatus(ctx, job.ID, jobs.StatusPending, "", "stale error"); err != nil {
		t.Fatalf("UpdateStatus back to pending: %v", err)
	}
	pending, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if pending.ErrorMessage != "" {
		t.Fatalf("pending job kept error_message %q", pending.ErrorMessage)
	}
	if pending.CompletedAt != nil {
		t.Fatal("pending job must not carry completed_at")
	}
}

func TestUpdateStatusMissingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	err := store.UpdateStatus(context.Background(), 4242, jobs.StatusProcessing, "", "")
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByOwnerNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := testsupport.NewJob(t, store, 3, "/in/1.mkv", 10)
	second := testsupport.NewJob(t, store, 3, "/in/2.mkv", 20)
	testsupport.NewJob(t, store, 4, "/in/other-owner.mkv", 30)

	list, err := store.ListByOwner(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs for owner 3, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest first, got %d then %d", list[0].ID, list[1].ID)
	}
}

func TestListByStatusOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewJob(t, store, 1, "/in/1.mkv", 10)
	second := testsupport.NewJob(t, store, 1, "/in/2.mkv", 20)
	done := testsupport.NewJob(t, store, 1, "/in/3.mkv", 30)
	if err := store.UpdateStatus(ctx, done.ID, jobs.StatusProcessing, "", ""); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	pending, err := store.ListByStatus(ctx, jobs.StatusPending)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("unexpected pending listing: %#v", pending)
	}

	active, err := store.ListByStatus(ctx, jobs.StatusPending, jobs.StatusProcessing)
	if err != nil {
		t.Fatalf("ListByStatus multi failed: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected 3 active jobs, got %d", len(active))
	}

	none, err := store.ListByStatus(ctx)
	if err != nil {
		t.Fatalf("ListByStatus with no statuses failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty result, got %d", len(none))
	}
}

func TestDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, 1, "/in/del.mkv", 10)

	removed, err := store.Delete(ctx, job.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !removed {
		t.Fatal("expected a row to be removed")
	}

	removed, err = store.Delete(ctx, job.ID)
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if removed {
		t.Fatal("expected no row on second delete")
	}
}

func TestStatsPerOwner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.NewJob(t, store, 1, "/in/a.mkv", 10)
	testsupport.NewJob(t, store, 1, "/in/b.mkv", 10)
	testsupport.NewJob(t, store, 2, "/in/c.mkv", 10)
	if err := store.UpdateStatus(ctx, a.ID, jobs.StatusProcessing, "", ""); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	stats, err := store.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[jobs.StatusPending] != 1 || stats[jobs.StatusProcessing] != 1 {
		t.Fatalf("unexpected owner stats: %#v", stats)
	}

	all, err := store.Stats(ctx, 0)
	if err != nil {
		t.Fatalf("Stats all failed: %v", err)
	}
	if all[jobs.StatusPending] != 2 {
		t.Fatalf("unexpected global stats: %#v", all)
	}
}

func TestTransitionsPersistAndCascade(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, 1, "/in/a.mkv", 10)

	edges := []jobs.Transition{
		{To: jobs.StatusPending, Reason: "created"},
		{From: jobs.StatusPending, To: jobs.StatusProcessing, Reason: "worker started"},
	}
	for _, edge := range edges {
		if err := store.AppendTransition(ctx, job.ID, edge); err != nil {
			t.Fatalf("AppendTransition failed: %v", err)
		}
	}

	recorded, err := store.ListTransitions(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(recorded) != 2 {
		t.Fatalf("recorded %d transitions, want 2", len(recorded))
	}
	if recorded[0].From != "" || recorded[0].To != jobs.StatusPending || recorded[0].Reason != "created" {
		t.Fatalf("unexpected first edge: %#v", recorded[0])
	}
	if recorded[1].From != jobs.StatusPending || recorded[1].To != jobs.StatusProcessing {
		t.Fatalf("unexpected second edge: %#v", recorded[1])
	}
	if recorded[0].Timestamp.IsZero() {
		t.Fatal("expected timestamps to be assigned")
	}

	// Deleting the job removes its transitions via the foreign key cascade.
	if _, err := store.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	remaining, err := store.ListTransitions(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListTransitions after delete failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("transitions survived job delete: %#v", remaining)
	}
}
