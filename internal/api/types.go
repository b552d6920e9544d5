package api

import "emblem/internal/badges"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ScheduleView describes a schedule in a transport-friendly format.
type ScheduleView struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CronExpr  string         `json:"cronExpr"`
	Timezone  string         `json:"timezone"`
	Enabled   bool           `json:"enabled"`
	Paused    bool           `json:"paused"`
	Badges    badges.Options `json:"badges"`
	LastRun   string         `json:"lastRun,omitempty"`
	NextRun   string         `json:"nextRun,omitempty"`
	CreatedAt string         `json:"createdAt,omitempty"`
	UpdatedAt string         `json:"updatedAt,omitempty"`
}

// ScheduleRequest carries a schedule create or update. Pointer fields are
// optional on update; absent fields keep their current value.
type ScheduleRequest struct {
	Name     string          `json:"name"`
	CronExpr string          `json:"cronExpr"`
	Timezone string          `json:"timezone"`
	Enabled  *bool           `json:"enabled,omitempty"`
	Badges   *badges.Options `json:"badges,omitempty"`
}

// ScheduleListResponse wraps a collection of schedules.
type ScheduleListResponse struct {
	Schedules []ScheduleView `json:"schedules"`
}

// ResultView summarizes item outcome counts for a job.
type ResultView struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// JobView describes one execution record.
type JobView struct {
	ID              string         `json:"id"`
	ScheduleID      string         `json:"scheduleId,omitempty"`
	Trigger         string         `json:"trigger"`
	Status          string         `json:"status"`
	Message         string         `json:"message,omitempty"`
	ErrorDetails    string         `json:"errorDetails,omitempty"`
	Badges          badges.Options `json:"badges"`
	Result          ResultView     `json:"result"`
	StartedAt       string         `json:"startedAt,omitempty"`
	CompletedAt     string         `json:"completedAt,omitempty"`
	DurationSeconds float64        `json:"durationSeconds,omitempty"`
}

// JobItemView describes one unit of work within a job.
type JobItemView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"startedAt,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// JobDetail is a job plus one page of its items.
type JobDetail struct {
	Job       JobView       `json:"job"`
	Items     []JobItemView `json:"items"`
	ItemTotal int           `json:"itemTotal"`
}

// JobListResponse is a page of job history plus the total match count.
type JobListResponse struct {
	Jobs  []JobView `json:"jobs"`
	Total int       `json:"total"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// ProgressView reports per-outcome item counts for one live or finished job.
type ProgressView struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Queued    int    `json:"queued"`
	Running   int    `json:"running"`
	Success   int    `json:"success"`
	Failed    int    `json:"failed"`
	Completed int    `json:"completed"`
}

// SchedulerStatus reports cron loop health.
type SchedulerStatus struct {
	TickRunning      bool   `json:"tickRunning"`
	AliveSince       string `json:"aliveSince,omitempty"`
	EnabledSchedules int    `json:"enabledSchedules"`
	ActiveJobs       int    `json:"activeJobs"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	DatabasePath string          `json:"databasePath"`
	LockFilePath string          `json:"lockFilePath"`
	Scheduler    SchedulerStatus `json:"scheduler"`
	JobStats     map[string]int  `json:"jobStats"`
}

// PruneRequest asks the daemon to delete old terminal jobs.
type PruneRequest struct {
	OlderThanDays int `json:"olderThanDays"`
}

// PruneResponse reports how many jobs a prune removed.
type PruneResponse struct {
	Deleted int64 `json:"deleted"`
}

// ErrorResponse is the JSON body of every non-2xx daemon answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
