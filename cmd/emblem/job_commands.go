package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"emblem/internal/api"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and manage job history",
	}

	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobProgressCommand(ctx))
	jobCmd.AddCommand(newJobRetryCommand(ctx))
	jobCmd.AddCommand(newJobCancelCommand(ctx))
	jobCmd.AddCommand(newJobDeleteCommand(ctx))
	jobCmd.AddCommand(newJobPruneCommand(ctx))

	return jobCmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var schedule string
	var search string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List execution history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ListJobs(cmd.Context(), api.JobQuery{
					Statuses:   statuses,
					ScheduleID: schedule,
					Search:     search,
					Limit:      limit,
					Offset:     offset,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
					return nil
				}
				out := renderTable(
					[]string{"ID", "Trigger", "Status", "Items", "Started", "Duration", "Message"},
					jobRows(resp.Jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d jobs\n", len(resp.Jobs), resp.Total)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Filter by schedule id")
	cmd.Flags().StringVar(&search, "search", "", "Match against job messages")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "show <jobID>",
		Short: "Show one job with a page of its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				detail, err := client.GetJob(cmd.Context(), args[0], limit, offset)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, detail)
				}
				printJob(cmd, &detail.Job)
				if len(detail.Items) > 0 {
					out := renderTable(
						[]string{"Item", "Status", "Completed", "Error"},
						itemRows(detail.Items),
						nil,
					)
					fmt.Fprintln(cmd.OutOrStdout(), out)
					fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d items\n", len(detail.Items), detail.ItemTotal)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum items to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Items to skip")
	return cmd
}

func newJobProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <jobID>",
		Short: "Show per-item outcome counts for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				progress, err := client.JobProgress(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, progress)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:       %s (%s)\n", progress.JobID, statusLabel(progress.Status))
				fmt.Fprintf(out, "Total:     %d\n", progress.Total)
				fmt.Fprintf(out, "Queued:    %d\n", progress.Queued)
				fmt.Fprintf(out, "Running:   %d\n", progress.Running)
				fmt.Fprintf(out, "Success:   %d\n", progress.Success)
				fmt.Fprintf(out, "Failed:    %d\n", progress.Failed)
				fmt.Fprintf(out, "Completed: %d of %d\n", progress.Completed, progress.Total)
				return nil
			})
		},
	}
}

func newJobRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <jobID>",
		Short: "Re-run a finished job with its original settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.RetryJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued retry job %s\n", job.ID)
				return nil
			})
		},
	}
}

func newJobCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jobID>",
		Short: "Cancel a running job; in-flight items finish first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.CancelJob(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s\n", args[0])
				return nil
			})
		},
	}
}

func newJobDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <jobID>",
		Short: "Delete one finished job and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.DeleteJob(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", args[0])
				return nil
			})
		},
	}
}

func newJobPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished jobs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.PruneJobs(cmd.Context(), olderThanDays)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d jobs older than %d days\n", resp.Deleted, olderThanDays)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", 30, "Delete jobs that finished more than this many days ago")
	return cmd
}

func printJob(cmd *cobra.Command, j *api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:       %s\n", j.ID)
	if j.ScheduleID != "" {
		fmt.Fprintf(out, "Schedule:  %s\n", j.ScheduleID)
	}
	fmt.Fprintf(out, "Trigger:   %s\n", statusLabel(j.Trigger))
	fmt.Fprintf(out, "Status:    %s\n", statusLabel(j.Status))
	if j.Message != "" {
		fmt.Fprintf(out, "Message:   %s\n", j.Message)
	}
	if j.ErrorDetails != "" {
		fmt.Fprintf(out, "Error:     %s\n", j.ErrorDetails)
	}
	fmt.Fprintf(out, "Badges:    %s\n", formatBadges(j.Badges))
	fmt.Fprintf(out, "Items:     %s\n", formatResult(j.Result))
	fmt.Fprintf(out, "Started:   %s\n", shortTime(j.StartedAt))
	if j.CompletedAt != "" {
		fmt.Fprintf(out, "Completed: %s (%s)\n", shortTime(j.CompletedAt), formatDuration(j.DurationSeconds))
	}
}
