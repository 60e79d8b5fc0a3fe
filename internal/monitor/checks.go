package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"convertd/internal/jobs"
	"convertd/internal/logging"
	"convertd/internal/status"
)

// HealthCheck records the outcome of auditing one job.
type HealthCheck struct {
	JobID     int64
	Status    jobs.Status
	Healthy   bool
	Issues    []string
	CheckedAt time.Time
}

// SweepStats aggregates the health of all currently audited jobs.
type SweepStats struct {
	TotalJobs     int
	HealthyJobs   int
	UnhealthyJobs int
	StuckJobs     int
	LastSweep     time.Time
}

// CleanupReport summarizes a forced cleanup pass.
type CleanupReport struct {
	Cleaned int
	Errors  []string
}

// RunHealthCheck audits all non-terminal jobs, failing stuck ones through the
// status manager. A single job's failed remediation never aborts the sweep.
func (m *Monitor) RunHealthCheck(ctx context.Context) ([]HealthCheck, error) {
	sweepCtx := ctx
	if m.sweepDeadline > 0 {
		var cancel context.CancelFunc
		sweepCtx, cancel = context.WithTimeout(ctx, m.sweepDeadline)
		defer cancel()
	}

	sweepID := uuid.NewString()[:8]
	logger := m.logger.With(logging.String(logging.FieldSweepID, sweepID))

	candidates, err := m.store.ListByStatus(sweepCtx, jobs.StatusPending, jobs.StatusProcessing)
	if err != nil {
		return nil, err
	}

	checks := make([]HealthCheck, 0, len(candidates))
	for _, job := range candidates {
		check := m.CheckJobHealth(job)
		checks = append(checks, check)

		if check.Healthy {
			continue
		}
		logger.Info("unhealthy job detected",
			logging.JobID(job.ID),
			logging.String(logging.FieldStatus, string(job.Status)),
			logging.String("issues", strings.Join(check.Issues, "; ")),
		)
		reason := "monitor: timeout detected"
		message := "job timed out: " + strings.Join(check.Issues, "; ")
		if _, err := m.manager.Transition(sweepCtx, job.ID, jobs.StatusFailed, status.Change{
			ErrorMessage: message,
			Reason:       reason,
		}); err != nil {
			// The job may have legitimately moved on between scan and fix.
			logger.Warn("remediation skipped",
				logging.JobID(job.ID),
				logging.Error(err),
			)
		}
	}

	m.mu.Lock()
	m.lastSweep = time.Now().UTC()
	m.mu.Unlock()

	return checks, nil
}

// CheckJobHealth classifies a single job against its stage time budget
// without side effects.
func (m *Monitor) CheckJobHealth(job *jobs.Job) HealthCheck {
	now := time.Now().UTC()
	check := HealthCheck{
		JobID:     job.ID,
		Status:    job.Status,
		CheckedAt: now,
	}

	age := now.Sub(job.CreatedAt)
	switch {
	case job.Status == jobs.StatusPending && age > m.pendingTimeout:
		check.Issues = append(check.Issues,
			fmt.Sprintf("job has been pending for %.1f hours (timeout: %s)", age.Hours(), m.pendingTimeout))
	case job.Status == jobs.StatusProcessing && age > m.processingTimeout:
		check.Issues = append(check.Issues,
			fmt.Sprintf("job has been processing for %.1f hours (timeout: %s)", age.Hours(), m.processingTimeout))
	}

	check.Healthy = len(check.Issues) == 0
	return check
}

// DetectStuck returns the currently stuck jobs without remediating them.
func (m *Monitor) DetectStuck(ctx context.Context) ([]*jobs.Job, error) {
	candidates, err := m.store.ListByStatus(ctx, jobs.StatusPending, jobs.StatusProcessing)
	if err != nil {
		return nil, err
	}

	var stuck []*jobs.Job
	for _, job := range candidates {
		if !m.CheckJobHealth(job).Healthy {
			stuck = append(stuck, job)
		}
	}
	return stuck, nil
}

// ForceCleanupStuck fails every currently stuck job immediately, bypassing
// the sweep schedule. Per-job errors are collected into the report.
func (m *Monitor) ForceCleanupStuck(ctx context.Context) (CleanupReport, error) {
	report := CleanupReport{}

	stuck, err := m.DetectStuck(ctx)
	if err != nil {
		return report, err
	}

	for _, job := range stuck {
		_, err := m.manager.Transition(ctx, job.ID, jobs.StatusFailed, status.Change{
			ErrorMessage: "job force-cleaned by monitor",
			Reason:       "monitor: force cleanup",
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("job %d: %v", job.ID, err))
			continue
		}
		report.Cleaned++
		m.logger.Info("force-cleaned stuck job", logging.JobID(job.ID))
	}

	return report, nil
}

// Stats returns a snapshot of monitored job health.
func (m *Monitor) Stats(ctx context.Context) (SweepStats, error) {
	candidates, err := m.store.ListByStatus(ctx, jobs.StatusPending, jobs.StatusProcessing)
	if err != nil {
		return SweepStats{}, err
	}

	stats := SweepStats{TotalJobs: len(candidates)}
	for _, job := range candidates {
		if m.CheckJobHealth(job).Healthy {
			stats.HealthyJobs++
		} else {
			stats.UnhealthyJobs++
			stats.StuckJobs++
		}
	}

	m.mu.Lock()
	stats.LastSweep = m.lastSweep
	m.mu.Unlock()

	return stats, nil
}
