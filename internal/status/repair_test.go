package status_test

import (
	"context"
	"testing"
	"time"

	"convertd/internal/jobs"
	"convertd/internal/logging"
	"convertd/internal/status"
	"convertd/internal/testsupport"
)

func TestValidateAndRepairFailsStalePendingJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := status.NewManager(store, logging.NewNop())

	ctx := context.Background()
	stale := testsupport.NewJob(t, store, 1, "/in/stale.mkv", 100)
	fresh := testsupport.NewJob(t, store, 1, "/in/fresh.mkv", 100)
	testsupport.BackdateJob(t, cfg, stale.ID, 2*time.Hour)

	report, err := manager.ValidateAndRepair(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ValidateAndRepair failed: %v", err)
	}
	if report.Fixed != 1 {
		t.Fatalf("fixed = %d, want 1", report.Fixed)
	}
	if len(report.Issues) != 1 {
		t.Fatalf("issues = %v, want exactly one", report.Issues)
	}

	repaired, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if repaired.Status != jobs.StatusFailed {
		t.Fatalf("stale job status = %s, want failed", repaired.Status)
	}
	if repaired.ErrorMessage != status.RepairTimeoutMessage {
		t.Fatalf("error message = %q", repaired.ErrorMessage)
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != jobs.StatusPending {
		t.Fatalf("fresh job status = %s, want pending", untouched.Status)
	}
}

func TestValidateAndRepairIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := status.NewManager(store, logging.NewNop())

	ctx := context.Background()
	stale := testsupport.NewJob(t, store, 1, "/in/stale.mkv", 100)
	testsupport.BackdateJob(t, cfg, stale.ID, 2*time.Hour)

	first, err := manager.ValidateAndRepair(ctx, time.Hour)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if first.Fixed != 1 {
		t.Fatalf("first pass fixed = %d, want 1", first.Fixed)
	}

	second, err := manager.ValidateAndRepair(ctx, time.Hour)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.Fixed != 0 || len(second.Issues) != 0 {
		t.Fatalf("second pass should find nothing, got %#v", second)
	}
}
