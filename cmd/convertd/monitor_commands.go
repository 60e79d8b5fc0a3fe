package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"convertd/internal/jobs"
	"convertd/internal/logging"
	"convertd/internal/monitor"
	"convertd/internal/status"
)

func newMonitorCommand(ctx *commandContext) *cobra.Command {
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Health monitor utilities",
	}

	monitorCmd.AddCommand(newMonitorSweepCommand(ctx))
	monitorCmd.AddCommand(newMonitorStuckCommand(ctx))
	monitorCmd.AddCommand(newMonitorCleanupCommand(ctx))
	monitorCmd.AddCommand(newMonitorRepairCommand(ctx))

	return monitorCmd
}

// withMonitor builds a one-shot monitor against the local store. These
// commands run the same checks the serve loop runs on its ticker.
func (c *commandContext) withMonitor(fn func(*monitor.Monitor) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger := logging.NewNop()
	store, err := jobs.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(monitor.New(cfg.Monitor, store, status.NewManager(store, logger), logger))
}

func newMonitorSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one health sweep over active jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withMonitor(func(mon *monitor.Monitor) error {
				checks, err := mon.RunHealthCheck(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(checks) == 0 {
					fmt.Fprintln(out, "No active jobs")
					return nil
				}

				rows := make([][]string, 0, len(checks))
				unhealthy := 0
				for _, check := range checks {
					issues := ""
					if len(check.Issues) > 0 {
						unhealthy++
						issues = check.Issues[0]
					}
					rows = append(rows, []string{
						strconv.FormatInt(check.JobID, 10),
						statusLabel(check.Status),
						yesNo(check.Healthy),
						issues,
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{title: "ID", rightAlign: true},
					{title: "Status"},
					{title: "Healthy"},
					{title: "Issue"},
				}, rows))
				fmt.Fprintf(out, "%d checked, %d unhealthy\n", len(checks), unhealthy)
				return nil
			})
		},
	}
}

func newMonitorStuckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stuck",
		Short: "List jobs past their stage timeout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withMonitor(func(mon *monitor.Monitor) error {
				stuck, err := mon.DetectStuck(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(stuck) == 0 {
					fmt.Fprintln(out, "No stuck jobs")
					return nil
				}

				rows := make([][]string, 0, len(stuck))
				for _, job := range stuck {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						statusLabel(job.Status),
						job.InputRef,
						formatTime(job.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{title: "ID", rightAlign: true},
					{title: "Status"},
					{title: "Input"},
					{title: "Created"},
				}, rows))
				return nil
			})
		},
	}
}

func newMonitorCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Force stuck jobs into the failed state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withMonitor(func(mon *monitor.Monitor) error {
				report, err := mon.ForceCleanupStuck(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d jobs cleaned\n", report.Cleaned)
				for _, cleanupErr := range report.Errors {
					fmt.Fprintf(out, "  %s\n", cleanupErr)
				}
				return nil
			})
		},
	}
}

func newMonitorRepairCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Fail pending jobs older than the validation threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger := logging.NewNop()
			store, err := jobs.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			manager := status.NewManager(store, logger)
			report, err := manager.ValidateAndRepair(cmd.Context(), cfg.Monitor.ValidationThreshold())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d jobs repaired\n", report.Fixed)
			for _, issue := range report.Issues {
				fmt.Fprintf(out, "  %s\n", issue)
			}
			return nil
		},
	}
}
