package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"convertd/internal/jobs"
	"convertd/internal/orchestrator"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage conversion jobs",
	}

	jobsCmd.AddCommand(newJobsSubmitCommand(ctx))
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsDeleteCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))

	return jobsCmd
}

func newJobsSubmitCommand(ctx *commandContext) *cobra.Command {
	var settings string
	var sizeBytes int64

	cmd := &cobra.Command{
		Use:   "submit <input-path>",
		Short: "Submit a conversion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(orch *orchestrator.Orchestrator) error {
				job, err := orch.CreateJob(cmd.Context(), ctx.ownerID(), args[0], settings, sizeBytes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d queued (%s)\n", job.ID, formatSize(job.SizeBytes))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&settings, "settings", "", "Conversion settings payload")
	cmd.Flags().Int64Var(&sizeBytes, "size", 0, "Input size in bytes (detected when omitted)")
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var search string
	var pageNumber int
	var pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := orchestrator.Filters{Search: search}
			if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
				status, ok := jobs.ParseStatus(trimmed)
				if !ok {
					return fmt.Errorf("unknown status %q", trimmed)
				}
				filters.Status = status
			}

			return ctx.withOrchestrator(func(orch *orchestrator.Orchestrator) error {
				list, err := orch.ListJobs(cmd.Context(), ctx.ownerID(), filters, orchestrator.Page{
					Number: pageNumber,
					Size:   pageSize,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(list.Jobs) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}

				rows := make([][]string, 0, len(list.Jobs))
				for _, job := range list.Jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						statusLabel(job.Status),
						job.InputRef,
						formatSize(job.SizeBytes),
						formatTime(job.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{title: "ID", rightAlign: true},
					{title: "Status"},
					{title: "Input"},
					{title: "Size", rightAlign: true},
					{title: "Created"},
				}, rows))
				fmt.Fprintf(out, "Page %d of %d (%d jobs, %s total)\n",
					list.Page.CurrentPage, list.Page.TotalPages,
					list.Stats.Total, formatSize(list.Stats.TotalSizeBytes))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().StringVar(&search, "search", "", "Match against input and output references")
	cmd.Flags().IntVar(&pageNumber, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "Jobs per page")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show job details and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}

			return ctx.withOrchestrator(func(orch *orchestrator.Orchestrator) error {
				details, err := orch.JobDetails(cmd.Context(), jobID, ctx.ownerID())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				job := details.Job
				fmt.Fprintf(out, "Job %d\n", job.ID)
				fmt.Fprintf(out, "  Status:   %s (%s)\n", colorizedStatusLabel(job.Status, shouldColorize(out)), details.Description)
				fmt.Fprintf(out, "  Message:  %s\n", job.ProgressMessage())
				fmt.Fprintf(out, "  Progress: %d%%\n", details.Progress)
				fmt.Fprintf(out, "  Input:    %s\n", job.InputRef)
				if job.OutputRef != "" {
					fmt.Fprintf(out, "  Output:   %s\n", job.OutputRef)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "  Error:    %s\n", job.ErrorMessage)
				}
				fmt.Fprintf(out, "  Size:     %s\n", formatSize(job.SizeBytes))
				fmt.Fprintf(out, "  Created:  %s\n", formatTime(job.CreatedAt))
				if job.CompletedAt != nil {
					fmt.Fprintf(out, "  Finished: %s\n", formatTime(*job.CompletedAt))
				}
				if details.EstimatedCompletion != nil {
					fmt.Fprintf(out, "  Estimate: %s\n", formatTime(*details.EstimatedCompletion))
				}

				if job.CanRetry() {
					fmt.Fprintln(out, "  This job can be retried with `convertd jobs retry`.")
				}
				if job.CanCancel() {
					fmt.Fprintln(out, "  This job can be cancelled with `convertd jobs cancel`.")
				}

				if len(details.History) > 0 {
					fmt.Fprintln(out, "  History:")
					for _, tr := range details.History {
						from := string(tr.From)
						if from == "" {
							from = "-"
						}
						fmt.Fprintf(out, "    %s  %s -> %s", formatTime(tr.Timestamp), from, tr.To)
						if tr.Reason != "" {
							fmt.Fprintf(out, " (%s)", tr.Reason)
						}
						fmt.Fprintln(out)
					}
				}
				return nil
			})
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Requeue a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(func(orch *orchestrator.Orchestrator) error {
				job, err := orch.RetryJob(cmd.Context(), jobID, ctx.ownerID())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d requeued\n", job.ID)
				return nil
			})
		},
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(func(orch *orchestrator.Orchestrator) error {
				job, err := orch.CancelJob(cmd.Context(), jobID, ctx.ownerID())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d cancelled\n", job.ID)
				return nil
			})
		},
	}
}

func newJobsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(func(orch *orchestrator.Orchestrator) error {
				if err := orch.DeleteJob(cmd.Context(), jobID, ctx.ownerID()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d deleted\n", jobID)
				return nil
			})
		},
	}
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-status job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(orch *orchestrator.Orchestrator) error {
				stats, err := orch.OwnerStats(cmd.Context(), ctx.ownerID())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(stats))
				total := 0
				for _, status := range jobs.AllStatuses() {
					count := stats[status]
					total += count
					rows = append(rows, []string{statusLabel(status), strconv.Itoa(count)})
				}
				rows = append(rows, []string{"Total", strconv.Itoa(total)})

				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{title: "Status"},
					{title: "Count", rightAlign: true},
				}, rows))
				return nil
			})
		},
	}
}

func parseJobID(arg string) (int64, error) {
	jobID, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || jobID < 1 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return jobID, nil
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
