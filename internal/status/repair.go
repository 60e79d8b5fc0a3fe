package status

import (
	"context"
	"fmt"
	"time"

	"convertd/internal/jobs"
	"convertd/internal/logging"
)

// RepairTimeoutMessage is recorded on jobs failed by ValidateAndRepair.
const RepairTimeoutMessage = "job timed out - was pending too long"

// RepairReport summarizes one validate-and-repair pass.
type RepairReport struct {
	Fixed  int
	Issues []string
}

// ValidateAndRepair scans for jobs stuck in pending beyond threshold and
// force-fails them. Running it again with no newly stuck jobs fixes nothing,
// since repaired jobs are terminal and no longer match the scan.
func (m *Manager) ValidateAndRepair(ctx context.Context, threshold time.Duration) (RepairReport, error) {
	report := RepairReport{}

	pending, err := m.store.ListByStatus(ctx, jobs.StatusPending)
	if err != nil {
		return report, err
	}

	now := time.Now().UTC()
	for _, job := range pending {
		age := now.Sub(job.CreatedAt)
		if age <= threshold {
			continue
		}

		report.Issues = append(report.Issues,
			fmt.Sprintf("job %d has been %s for %.1f hours", job.ID, job.Status, age.Hours()))

		_, err := m.Transition(ctx, job.ID, jobs.StatusFailed, Change{
			ErrorMessage: RepairTimeoutMessage,
			Reason:       "auto-repair: validation timeout",
		})
		if err != nil {
			m.logger.Warn("repair transition failed",
				logging.JobID(job.ID),
				logging.Error(err),
			)
			continue
		}
		report.Fixed++
	}

	return report, nil
}
