package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"convertd/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Create inserts a new pending job and returns the persisted record.
func (s *Store) Create(ctx context.Context, ownerID int64, inputRef, settings string, sizeBytes int64) (*Job, error) {
	now := time.Now().UTC()

	var size any
	if sizeBytes > 0 {
		size = sizeBytes
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (owner_id, status, input_ref, settings, size_bytes, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		ownerID,
		StatusPending,
		nullableString(inputRef),
		nullableString(settings),
		size,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, storeError("insert job", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storeError("last insert id", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing row returns (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("get job", err)
	}
	return job, nil
}

// ListByOwner returns an owner's jobs, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE owner_id = ? ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, storeError("list by owner", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListByStatus returns jobs matching any of the provided statuses, oldest
// first so queue admission preserves submission order.
func (s *Store) ListByStatus(ctx context.Context, statuses ...Status) ([]*Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (`+placeholders+`) ORDER BY created_at, id`,
		args...,
	)
	if err != nil {
		return nil, storeError("list by status", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// UpdateStatus persists a status change along with the fields tied to it:
// completed_at is set when entering a terminal status and cleared otherwise,
// output_ref is kept only for completed jobs, and error_message only for
// failed ones.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status, outputRef, errorMessage string) error {
	var completedAt any
	if status.IsTerminal() {
		completedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if status != StatusCompleted {
		outputRef = ""
	}
	if status != StatusFailed {
		errorMessage = ""
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, output_ref = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		status,
		nullableString(outputRef),
		nullableErrorMessage(status, errorMessage),
		completedAt,
		id,
	)
	if err != nil {
		return storeError("update status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeError("rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a job by identifier, reporting whether a row was removed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, storeError("delete job", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeError("rows affected", err)
	}
	return affected > 0, nil
}

// Stats returns a count of an owner's jobs grouped by status. Pass ownerID 0
// for all owners.
func (s *Store) Stats(ctx context.Context, ownerID int64) (map[Status]int, error) {
	query := `SELECT status, COUNT(1) FROM jobs GROUP BY status`
	args := []any{}
	if ownerID != 0 {
		query = `SELECT status, COUNT(1) FROM jobs WHERE owner_id = ? GROUP BY status`
		args = append(args, ownerID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("job stats", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, storeError("scan stats", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, storeError("scan job", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

const jobColumns = "id, owner_id, status, input_ref, output_ref, error_message, size_bytes, settings, created_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		ownerID      int64
		statusStr    string
		inputRef     sql.NullString
		outputRef    sql.NullString
		errorMessage sql.NullString
		sizeBytes    sql.NullInt64
		settings     sql.NullString
		createdRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&ownerID,
		&statusStr,
		&inputRef,
		&outputRef,
		&errorMessage,
		&sizeBytes,
		&settings,
		&createdRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        id,
		OwnerID:   ownerID,
		Status:    Status(statusStr),
		InputRef:  inputRef.String,
		OutputRef: outputRef.String,
		Settings:  settings.String,
	}
	if errorMessage.Valid {
		job.ErrorMessage = errorMessage.String
	}
	if sizeBytes.Valid {
		job.SizeBytes = sizeBytes.Int64
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// nullableErrorMessage keeps an empty-but-present error message for failed
// jobs so the column distinguishes "failed with empty message" from unset.
func nullableErrorMessage(status Status, message string) any {
	if status == StatusFailed {
		return message
	}
	if message == "" {
		return nil
	}
	return message
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
