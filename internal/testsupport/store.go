package testsupport

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"convertd/internal/config"
	"convertd/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *jobs.Store, ownerID int64, inputRef string, sizeBytes int64) *jobs.Job {
	t.Helper()

	job, err := store.Create(context.Background(), ownerID, inputRef, "", sizeBytes)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}

// BackdateJob rewrites a job's created_at so timeout logic can be exercised
// without waiting. It opens its own connection to the test database.
func BackdateJob(t testing.TB, cfg *config.Config, jobID int64, age time.Duration) {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(cfg.Paths.LogDir, "jobs.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	createdAt := time.Now().UTC().Add(-age).Format(time.RFC3339Nano)
	if _, err := db.Exec(`UPDATE jobs SET created_at = ? WHERE id = ?`, createdAt, jobID); err != nil {
		t.Fatalf("backdate job %d: %v", jobID, err)
	}
}
