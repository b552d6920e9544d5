package api

import (
	"time"

	"emblem/internal/store"
)

// FromSchedule converts a schedule record to its API representation.
func FromSchedule(schedule *store.Schedule) ScheduleView {
	if schedule == nil {
		return ScheduleView{}
	}
	view := ScheduleView{
		ID:        schedule.ID,
		Name:      schedule.Name,
		CronExpr:  schedule.CronExpr,
		Timezone:  schedule.Timezone,
		Enabled:   schedule.Enabled,
		Paused:    schedule.Paused,
		Badges:    schedule.Options,
		CreatedAt: FormatTime(schedule.CreatedAt),
		UpdatedAt: FormatTime(schedule.UpdatedAt),
	}
	if schedule.LastRun != nil {
		view.LastRun = FormatTime(*schedule.LastRun)
	}
	if schedule.NextRun != nil {
		view.NextRun = FormatTime(*schedule.NextRun)
	}
	return view
}

// FromSchedules converts a slice of schedule records into API DTOs.
func FromSchedules(schedules []*store.Schedule) []ScheduleView {
	if len(schedules) == 0 {
		return nil
	}
	out := make([]ScheduleView, 0, len(schedules))
	for _, schedule := range schedules {
		out = append(out, FromSchedule(schedule))
	}
	return out
}

// FromJob converts a job record to its API representation.
func FromJob(job *store.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		ID:           job.ID,
		ScheduleID:   job.ScheduleID,
		Trigger:      string(job.Trigger),
		Status:       string(job.Status),
		Message:      job.Message,
		ErrorDetails: job.ErrorDetails,
		Badges:       job.Options,
		Result: ResultView{
			Total:   job.Result.Total,
			Success: job.Result.Success,
			Failed:  job.Result.Failed,
		},
		StartedAt: FormatTime(job.StartedAt),
	}
	if job.CompletedAt != nil {
		view.CompletedAt = FormatTime(*job.CompletedAt)
		view.DurationSeconds = job.Duration().Seconds()
	}
	return view
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(jobs []*store.Job) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromItem converts a job item record to its API representation.
func FromItem(item *store.JobItem) JobItemView {
	if item == nil {
		return JobItemView{}
	}
	view := JobItemView{
		ID:     item.ID,
		Name:   item.Name,
		Status: string(item.Status),
		Error:  item.Error,
	}
	if item.StartedAt != nil {
		view.StartedAt = FormatTime(*item.StartedAt)
	}
	if item.CompletedAt != nil {
		view.CompletedAt = FormatTime(*item.CompletedAt)
	}
	return view
}

// FromItems converts a slice of item records into API DTOs.
func FromItems(items []*store.JobItem) []JobItemView {
	if len(items) == 0 {
		return nil
	}
	out := make([]JobItemView, 0, len(items))
	for _, item := range items {
		out = append(out, FromItem(item))
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns an empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
