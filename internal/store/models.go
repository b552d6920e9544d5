package store

import (
	"strings"
	"time"

	"emblem/internal/badges"
)

// JobStatus represents the lifecycle of a job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
	JobPartial JobStatus = "partial"
)

var jobStatuses = []JobStatus{JobQueued, JobRunning, JobSuccess, JobFailed, JobPartial}

// Terminal reports whether the status ends a job's lifecycle.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSuccess, JobFailed, JobPartial:
		return true
	default:
		return false
	}
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range jobStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ItemStatus represents the lifecycle of one unit of work inside a job.
type ItemStatus string

const (
	ItemQueued  ItemStatus = "queued"
	ItemRunning ItemStatus = "running"
	ItemSuccess ItemStatus = "success"
	ItemFailed  ItemStatus = "failed"
)

// Terminal reports whether the status ends an item's lifecycle.
func (s ItemStatus) Terminal() bool {
	return s == ItemSuccess || s == ItemFailed
}

// TriggerType records how a job came to exist.
type TriggerType string

const (
	TriggerScheduled TriggerType = "scheduled"
	TriggerManual    TriggerType = "manual"
	TriggerRetry     TriggerType = "retry"
)

// InterruptedMessage is the error recorded when running state is reconciled
// after a daemon restart.
const InterruptedMessage = "interrupted by restart"

// CancelledMessage is the error recorded on items skipped by a cancel request.
const CancelledMessage = "job cancelled"

// ResultCounts summarizes item outcomes for a job.
type ResultCounts struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// AggregateStatus derives a job's terminal status from its item outcome
// counts. It depends only on the terminal-state multiset, never on
// completion order.
func AggregateStatus(counts ResultCounts) JobStatus {
	switch {
	case counts.Failed == 0:
		return JobSuccess
	case counts.Success == 0:
		return JobFailed
	default:
		return JobPartial
	}
}

// Schedule is a named automation rule evaluated by the cron scheduler.
type Schedule struct {
	ID        string
	Name      string
	CronExpr  string
	Timezone  string
	Enabled   bool
	Paused    bool
	Options   badges.Options
	CreatedAt time.Time
	UpdatedAt time.Time
	LastRun   *time.Time
	NextRun   *time.Time
}

// Job is one execution instance, created by a schedule firing or a manual
// trigger. Options are snapshotted at trigger time.
type Job struct {
	ID           string
	ScheduleID   string // empty for ad hoc jobs
	Trigger      TriggerType
	Status       JobStatus
	Message      string
	ErrorDetails string
	Options      badges.Options
	Result       ResultCounts
	StartedAt    time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Duration returns elapsed execution time, zero while the job is live.
func (j *Job) Duration() time.Duration {
	if j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}

// JobItem is one unit of work within a job.
type JobItem struct {
	ID          string
	JobID       string
	Name        string
	Status      ItemStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// Progress captures per-outcome item counts for one job, suitable for
// short-interval polling.
type Progress struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}
