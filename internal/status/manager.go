package status

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"convertd/internal/jobs"
	"convertd/internal/logging"
)

// Notifier receives a callback after every durably recorded status change.
type Notifier interface {
	StatusChanged(job *jobs.Job, from, to jobs.Status, reason string)
}

// Change carries the optional fields of a transition request.
type Change struct {
	OutputRef    string
	ErrorMessage string
	Reason       string
}

// Manager owns the job state machine, the per-job transition history, and the
// observer hook.
type Manager struct {
	store    *jobs.Store
	logger   *slog.Logger
	notifier Notifier

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	historyMu sync.RWMutex
	history   map[int64][]jobs.Transition
}

// NewManager constructs a Manager with a logging notifier.
func NewManager(store *jobs.Store, logger *slog.Logger) *Manager {
	m := newManager(store, logger)
	m.notifier = &logNotifier{logger: m.logger}
	return m
}

// NewManagerWithNotifier constructs a Manager with a custom notifier.
func NewManagerWithNotifier(store *jobs.Store, logger *slog.Logger, notifier Notifier) *Manager {
	m := newManager(store, logger)
	m.notifier = notifier
	return m
}

func newManager(store *jobs.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		logger:  logging.NewComponentLogger(logger, "status"),
		locks:   make(map[int64]*sync.Mutex),
		history: make(map[int64][]jobs.Transition),
	}
}

// Transition validates and applies a status change, returning the updated
// job. The history entry is appended only after the store update succeeds.
func (m *Manager) Transition(ctx context.Context, jobID int64, next jobs.Status, change Change) (*jobs.Job, error) {
	lock := m.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := m.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %d: %w", jobID, jobs.ErrNotFound)
	}

	from := job.Status
	if !jobs.CanTransition(from, next) {
		return nil, &jobs.InvalidTransitionError{JobID: jobID, From: from, To: next}
	}

	if err := m.store.UpdateStatus(ctx, jobID, next, change.OutputRef, change.ErrorMessage); err != nil {
		return nil, err
	}

	transition := jobs.Transition{
		From:      from,
		To:        next,
		Timestamp: time.Now().UTC(),
		Reason:    change.Reason,
	}
	m.appendHistory(ctx, jobID, transition)

	updated, err := m.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	m.logger.Info("job status transitioned",
		logging.JobID(jobID),
		logging.String("from", string(from)),
		logging.String(logging.FieldStatus, string(next)),
		logging.String(logging.FieldReason, change.Reason),
	)
	if m.notifier != nil && updated != nil {
		m.notifier.StatusChanged(updated, from, next, change.Reason)
	}
	return updated, nil
}

// RecordCreated appends the creation entry to a new job's history. The entry
// carries an empty From status.
func (m *Manager) RecordCreated(ctx context.Context, job *jobs.Job) {
	if job == nil {
		return
	}
	m.appendHistory(ctx, job.ID, jobs.Transition{
		To:        jobs.StatusPending,
		Timestamp: time.Now().UTC(),
		Reason:    "created",
	})
}

// History returns the ordered transition log for a job, or an empty slice if
// none has been recorded in this process.
func (m *Manager) History(jobID int64) []jobs.Transition {
	m.historyMu.RLock()
	defer m.historyMu.RUnlock()

	entries := m.history[jobID]
	cp := make([]jobs.Transition, len(entries))
	copy(cp, entries)
	return cp
}

// LoadHistory returns the transition log, falling back to the durable store
// for jobs whose history predates this process.
func (m *Manager) LoadHistory(ctx context.Context, jobID int64) ([]jobs.Transition, error) {
	if entries := m.History(jobID); len(entries) > 0 {
		return entries, nil
	}
	return m.store.ListTransitions(ctx, jobID)
}

// ClearHistory discards the in-memory transition log for a job. It takes the
// per-job lock so an in-flight transition finishes first, and the lock entry
// itself is retained: removing it would let a racing Transition mint a fresh
// mutex and run unserialized against the old one.
func (m *Manager) ClearHistory(jobID int64) {
	lock := m.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	m.historyMu.Lock()
	delete(m.history, jobID)
	m.historyMu.Unlock()
}

// appendHistory records a confirmed transition in memory and writes it
// through to the store. A failed durable append degrades to in-memory only;
// the status change itself is already committed.
func (m *Manager) appendHistory(ctx context.Context, jobID int64, transition jobs.Transition) {
	m.historyMu.Lock()
	m.history[jobID] = append(m.history[jobID], transition)
	m.historyMu.Unlock()

	if err := m.store.AppendTransition(ctx, jobID, transition); err != nil {
		m.logger.Warn("durable history append failed",
			logging.JobID(jobID),
			logging.Error(err),
		)
	}
}

func (m *Manager) lockFor(jobID int64) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	lock, ok := m.locks[jobID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[jobID] = lock
	}
	return lock
}

type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) StatusChanged(job *jobs.Job, from, to jobs.Status, reason string) {
	n.logger.Info("status change notification",
		logging.JobID(job.ID),
		logging.Int64(logging.FieldOwnerID, job.OwnerID),
		logging.String(logging.FieldStatus, string(to)),
		logging.String(logging.FieldReason, reason),
	)
}
