package orchestrator

import (
	"context"
	"strings"
	"time"

	"convertd/internal/jobs"
	"convertd/internal/status"
)

// Filters narrows a job listing. Zero values mean "no constraint".
type Filters struct {
	Status        jobs.Status
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Search        string
}

// Page selects a 1-indexed slice of the filtered listing. Callers cap Size.
type Page struct {
	Number int
	Size   int
}

// PageInfo describes the returned slice relative to the filtered set.
type PageInfo struct {
	CurrentPage int
	TotalPages  int
	TotalJobs   int
	HasNext     bool
	HasPrev     bool
}

// ListStats aggregates the filtered, pre-pagination set.
type ListStats struct {
	Total           int
	ByStatus        map[jobs.Status]int
	TotalSizeBytes  int64
	OldestCreatedAt time.Time
	NewestCreatedAt time.Time
}

// JobList is one page of an owner's jobs plus aggregates over the whole
// filtered set.
type JobList struct {
	Jobs  []*jobs.Job
	Page  PageInfo
	Stats ListStats
}

// Details is the enhanced view of a single job.
type Details struct {
	Job                 *jobs.Job
	History             []jobs.Transition
	EstimatedCompletion *time.Time
	Progress            int
	Description         string
}

// ListJobs returns one page of an owner's jobs matching the filters, newest
// first, with aggregate statistics computed over the filtered set before
// pagination.
func (o *Orchestrator) ListJobs(ctx context.Context, ownerID int64, filters Filters, page Page) (*JobList, error) {
	all, err := o.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	filtered := applyFilters(all, filters)

	if page.Number < 1 {
		page.Number = 1
	}
	if page.Size < 1 {
		page.Size = 10
	}

	total := len(filtered)
	totalPages := (total + page.Size - 1) / page.Size
	offset := (page.Number - 1) * page.Size

	var slice []*jobs.Job
	if offset < total {
		end := offset + page.Size
		if end > total {
			end = total
		}
		slice = filtered[offset:end]
	}

	return &JobList{
		Jobs: slice,
		Page: PageInfo{
			CurrentPage: page.Number,
			TotalPages:  totalPages,
			TotalJobs:   total,
			HasNext:     page.Number < totalPages,
			HasPrev:     page.Number > 1 && total > 0,
		},
		Stats: computeListStats(filtered),
	}, nil
}

// JobDetails returns a job with its transition history and derived queries.
func (o *Orchestrator) JobDetails(ctx context.Context, jobID, ownerID int64) (*Details, error) {
	job, err := o.ownedJob(ctx, jobID, ownerID)
	if err != nil {
		return nil, err
	}

	history, err := o.manager.LoadHistory(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &Details{
		Job:                 job,
		History:             history,
		EstimatedCompletion: status.EstimateCompletion(job, time.Now().UTC()),
		Progress:            status.Progress(job),
		Description:         job.Status.Description(),
	}, nil
}

// OwnerStats returns an owner's per-status job counts from the store.
func (o *Orchestrator) OwnerStats(ctx context.Context, ownerID int64) (map[jobs.Status]int, error) {
	return o.store.Stats(ctx, ownerID)
}

func applyFilters(list []*jobs.Job, filters Filters) []*jobs.Job {
	search := strings.ToLower(strings.TrimSpace(filters.Search))

	filtered := make([]*jobs.Job, 0, len(list))
	for _, job := range list {
		if filters.Status != "" && job.Status != filters.Status {
			continue
		}
		if !filters.CreatedAfter.IsZero() && job.CreatedAt.Before(filters.CreatedAfter) {
			continue
		}
		if !filters.CreatedBefore.IsZero() && job.CreatedAt.After(filters.CreatedBefore) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(job.InputRef), search) &&
			!strings.Contains(strings.ToLower(job.OutputRef), search) {
			continue
		}
		filtered = append(filtered, job)
	}
	return filtered
}

func computeListStats(list []*jobs.Job) ListStats {
	stats := ListStats{
		Total:    len(list),
		ByStatus: make(map[jobs.Status]int, 4),
	}
	for _, status := range jobs.AllStatuses() {
		stats.ByStatus[status] = 0
	}

	for _, job := range list {
		stats.ByStatus[job.Status]++
		stats.TotalSizeBytes += job.SizeBytes
		if stats.OldestCreatedAt.IsZero() || job.CreatedAt.Before(stats.OldestCreatedAt) {
			stats.OldestCreatedAt = job.CreatedAt
		}
		if job.CreatedAt.After(stats.NewestCreatedAt) {
			stats.NewestCreatedAt = job.CreatedAt
		}
	}
	return stats
}
