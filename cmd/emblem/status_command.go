package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"emblem/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, scheduler, and job history health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				printStatus(cmd, status)
				return nil
			})
		},
	}
}

func printStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	daemonKind := statusOK
	if !status.Running {
		daemonKind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", daemonKind, fmt.Sprintf("pid %d", status.PID), colorize))

	schedulerKind := statusOK
	schedulerMsg := fmt.Sprintf("%d enabled schedules", status.Scheduler.EnabledSchedules)
	if !status.Scheduler.TickRunning {
		schedulerKind = statusError
		schedulerMsg = "tick loop stopped"
	} else if status.Scheduler.AliveSince != "" {
		schedulerMsg = fmt.Sprintf("%s, alive since %s", schedulerMsg, shortTime(status.Scheduler.AliveSince))
	}
	fmt.Fprintln(out, renderStatusLine("Scheduler", schedulerKind, schedulerMsg, colorize))

	jobsKind := statusInfo
	if status.Scheduler.ActiveJobs > 0 {
		jobsKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Active jobs", jobsKind, fmt.Sprintf("%d", status.Scheduler.ActiveJobs), colorize))

	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))

	if len(status.JobStats) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Job history:")
	names := make([]string, 0, len(status.JobStats))
	for name := range status.JobStats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s%-10s %d\n", statusIndent, statusLabel(name), status.JobStats[name])
	}
}
