package status

import (
	"time"

	"convertd/internal/jobs"
)

const (
	// processingBaseMinutes is the flat estimate for a job already being
	// worked on, before the size adjustment.
	processingBaseMinutes = 15

	// estimateBytesPerMinute adds one minute of estimate per 10 MB of input.
	estimateBytesPerMinute = 10 * 1024 * 1024

	// processingProgress is the coarse midpoint reported while a job is in
	// flight. There is no fine-grained progress tracking.
	processingProgress = 50
)

// EstimateCompletion returns a point-in-time completion estimate for a
// non-terminal job, or nil when no meaningful estimate exists (terminal
// status, or a zero computed estimate).
func EstimateCompletion(job *jobs.Job, now time.Time) *time.Time {
	if job == nil || job.IsTerminal() {
		return nil
	}

	minutes := 0
	if job.Status == jobs.StatusProcessing {
		minutes = processingBaseMinutes
	}
	if job.SizeBytes > 0 {
		minutes += int((job.SizeBytes + estimateBytesPerMinute - 1) / estimateBytesPerMinute)
	}
	if minutes == 0 {
		return nil
	}

	estimate := now.Add(time.Duration(minutes) * time.Minute)
	return &estimate
}

// Progress maps a job's status to a coarse completion percentage.
func Progress(job *jobs.Job) int {
	if job == nil {
		return 0
	}
	switch job.Status {
	case jobs.StatusProcessing:
		return processingProgress
	case jobs.StatusCompleted:
		return 100
	default:
		return 0
	}
}
