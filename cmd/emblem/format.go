package main

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"emblem/internal/api"
	"emblem/internal/badges"
)

var statusTitler = cases.Title(language.English)

// statusLabel renders an API status or trigger value for table output.
func statusLabel(value string) string {
	if value == "" {
		return "-"
	}
	return statusTitler.String(value)
}

// shortTime trims an API timestamp down to minute precision for tables. The
// raw value is passed through when it does not parse.
func shortTime(value string) string {
	if value == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04")
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}

func formatBadges(opts badges.Options) string {
	names := opts.EnabledCategories()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func formatResult(result api.ResultView) string {
	if result.Total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", result.Success, result.Total)
}

func scheduleRows(schedules []api.ScheduleView) [][]string {
	rows := make([][]string, 0, len(schedules))
	for _, s := range schedules {
		state := "enabled"
		switch {
		case !s.Enabled:
			state = "disabled"
		case s.Paused:
			state = "paused"
		}
		rows = append(rows, []string{
			s.Name,
			s.CronExpr,
			s.Timezone,
			statusLabel(state),
			formatBadges(s.Badges),
			shortTime(s.LastRun),
			shortTime(s.NextRun),
		})
	}
	return rows
}

func jobRows(jobs []api.JobView) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			statusLabel(j.Trigger),
			statusLabel(j.Status),
			formatResult(j.Result),
			shortTime(j.StartedAt),
			formatDuration(j.DurationSeconds),
			j.Message,
		})
	}
	return rows
}

func itemRows(items []api.JobItemView) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.Name,
			statusLabel(item.Status),
			shortTime(item.CompletedAt),
			item.Error,
		})
	}
	return rows
}
