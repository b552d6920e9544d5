package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"emblem/internal/api"
	"emblem/internal/badges"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage processing schedules",
	}

	scheduleCmd.AddCommand(newScheduleListCommand(ctx))
	scheduleCmd.AddCommand(newScheduleShowCommand(ctx))
	scheduleCmd.AddCommand(newScheduleCreateCommand(ctx))
	scheduleCmd.AddCommand(newScheduleUpdateCommand(ctx))
	scheduleCmd.AddCommand(newScheduleToggleCommand(ctx, "enable", "Enable a schedule", true))
	scheduleCmd.AddCommand(newScheduleToggleCommand(ctx, "disable", "Disable a schedule", false))
	scheduleCmd.AddCommand(newSchedulePauseCommand(ctx, "pause", "Pause firing without losing cadence", true))
	scheduleCmd.AddCommand(newSchedulePauseCommand(ctx, "resume", "Resume a paused schedule", false))
	scheduleCmd.AddCommand(newScheduleDeleteCommand(ctx))
	scheduleCmd.AddCommand(newScheduleRunCommand(ctx))

	return scheduleCmd
}

func newScheduleListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ListSchedules(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				if len(resp.Schedules) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No schedules defined")
					return nil
				}
				out := renderTable(
					[]string{"Name", "Cron", "Timezone", "State", "Badges", "Last Run", "Next Run"},
					scheduleRows(resp.Schedules),
					nil,
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func newScheduleShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <schedule>",
		Short: "Show one schedule by id or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				schedule, err := client.GetSchedule(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, schedule)
				}
				printSchedule(cmd, schedule)
				return nil
			})
		},
	}
}

func newScheduleCreateCommand(ctx *commandContext) *cobra.Command {
	var cronExpr string
	var timezone string
	var categories []string
	var libraries []string
	var forceRefresh bool
	var disabled bool

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildBadgeOptions(categories, libraries, forceRefresh)
			if err != nil {
				return err
			}
			enabled := !disabled
			req := api.ScheduleRequest{
				Name:     args[0],
				CronExpr: cronExpr,
				Timezone: timezone,
				Enabled:  &enabled,
				Badges:   opts,
			}
			return ctx.withClient(func(client *api.Client) error {
				schedule, err := client.CreateSchedule(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, schedule)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created schedule %s (%s)\n", schedule.Name, schedule.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression, five fields (required)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone for the cron expression")
	cmd.Flags().StringSliceVar(&categories, "badge", nil, "Badge category to render: audio, resolution, review, awards (repeatable)")
	cmd.Flags().StringSliceVar(&libraries, "library", nil, "Restrict processing to a library (repeatable, default all)")
	cmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "Re-render posters that already carry badges")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule without enabling it")
	_ = cmd.MarkFlagRequired("cron")
	_ = cmd.MarkFlagRequired("badge")
	return cmd
}

func newScheduleUpdateCommand(ctx *commandContext) *cobra.Command {
	var name string
	var cronExpr string
	var timezone string
	var categories []string
	var libraries []string
	var forceRefresh bool

	cmd := &cobra.Command{
		Use:   "update <schedule>",
		Short: "Update schedule fields; omitted flags keep current values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ScheduleRequest{
				Name:     name,
				CronExpr: cronExpr,
				Timezone: timezone,
			}
			if cmd.Flags().Changed("badge") || cmd.Flags().Changed("library") || cmd.Flags().Changed("force-refresh") {
				opts, err := buildBadgeOptions(categories, libraries, forceRefresh)
				if err != nil {
					return err
				}
				req.Badges = opts
			}
			return ctx.withClient(func(client *api.Client) error {
				schedule, err := client.UpdateSchedule(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, schedule)
				}
				printSchedule(cmd, schedule)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New schedule name")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "New cron expression")
	cmd.Flags().StringVar(&timezone, "timezone", "", "New IANA timezone")
	cmd.Flags().StringSliceVar(&categories, "badge", nil, "Replace badge categories (repeatable)")
	cmd.Flags().StringSliceVar(&libraries, "library", nil, "Replace library restriction (repeatable)")
	cmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "Re-render posters that already carry badges")
	return cmd
}

func newScheduleToggleCommand(ctx *commandContext, use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <schedule>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				schedule, err := client.SetScheduleEnabled(cmd.Context(), args[0], enabled)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, schedule)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s enabled: %s\n", schedule.Name, yesNo(schedule.Enabled))
				return nil
			})
		},
	}
}

func newSchedulePauseCommand(ctx *commandContext, use, short string, paused bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <schedule>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				schedule, err := client.SetSchedulePaused(cmd.Context(), args[0], paused)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, schedule)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s paused: %s\n", schedule.Name, yesNo(schedule.Paused))
				return nil
			})
		},
	}
}

func newScheduleDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <schedule>",
		Short: "Delete a schedule; its job history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.DeleteSchedule(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted schedule %s\n", args[0])
				return nil
			})
		},
	}
}

func newScheduleRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <schedule>",
		Short: "Trigger a schedule immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.RunSchedule(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s\n", job.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Follow it with `emblem job show %s`\n", job.ID)
				return nil
			})
		},
	}
}

func buildBadgeOptions(categories, libraries []string, forceRefresh bool) (*badges.Options, error) {
	opts := badges.Options{
		ForceRefresh:      forceRefresh,
		TargetDirectories: libraries,
	}
	for _, category := range categories {
		switch strings.ToLower(strings.TrimSpace(category)) {
		case "audio":
			opts.Audio.Enabled = true
		case "resolution":
			opts.Resolution.Enabled = true
		case "review":
			opts.Review.Enabled = true
		case "awards":
			opts.Awards.Enabled = true
		default:
			return nil, fmt.Errorf("unknown badge category %q (expected audio, resolution, review, or awards)", category)
		}
	}
	return &opts, nil
}

func printSchedule(cmd *cobra.Command, s *api.ScheduleView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:      %s\n", s.Name)
	fmt.Fprintf(out, "ID:        %s\n", s.ID)
	fmt.Fprintf(out, "Cron:      %s\n", s.CronExpr)
	fmt.Fprintf(out, "Timezone:  %s\n", s.Timezone)
	fmt.Fprintf(out, "Enabled:   %s\n", yesNo(s.Enabled))
	fmt.Fprintf(out, "Paused:    %s\n", yesNo(s.Paused))
	fmt.Fprintf(out, "Badges:    %s\n", formatBadges(s.Badges))
	if len(s.Badges.TargetDirectories) > 0 {
		fmt.Fprintf(out, "Libraries: %s\n", strings.Join(s.Badges.TargetDirectories, ", "))
	}
	fmt.Fprintf(out, "Last run:  %s\n", shortTime(s.LastRun))
	fmt.Fprintf(out, "Next run:  %s\n", shortTime(s.NextRun))
}
