package api

import (
	"context"
	"fmt"
	"os"
	"time"

	"emblem/internal/store"
)

// SchedulerProbe reports cron tick loop health.
type SchedulerProbe interface {
	Running() (bool, time.Time)
}

// RunnerProbe reports how many jobs the process is executing.
type RunnerProbe interface {
	Active() int
}

// StatusService answers read-only status queries. Every call re-reads the
// store so short-interval polling always observes monotonic job state.
type StatusService struct {
	store        *store.Store
	scheduler    SchedulerProbe
	runner       RunnerProbe
	databasePath string
	lockPath     string
}

// NewStatusService constructs a StatusService. The probes may be nil when no
// scheduler or runner is attached (CLI-side reads).
func NewStatusService(st *store.Store, scheduler SchedulerProbe, runner RunnerProbe, databasePath, lockPath string) *StatusService {
	return &StatusService{
		store:        st,
		scheduler:    scheduler,
		runner:       runner,
		databasePath: databasePath,
		lockPath:     lockPath,
	}
}

// ListJobs returns a filtered page of job history, newest first.
func (s *StatusService) ListJobs(ctx context.Context, filter store.JobFilter, page store.Page) (JobListResponse, error) {
	jobs, total, err := s.store.ListJobs(ctx, filter, page)
	if err != nil {
		return JobListResponse{}, err
	}
	return JobListResponse{Jobs: FromJobs(jobs), Total: total}, nil
}

// JobDetail returns one job plus a page of its items.
func (s *StatusService) JobDetail(ctx context.Context, id string, page store.Page) (*JobDetail, error) {
	job, err := s.requireJob(ctx, id)
	if err != nil {
		return nil, err
	}
	items, total, err := s.store.ListItems(ctx, id, page)
	if err != nil {
		return nil, err
	}
	return &JobDetail{
		Job:       FromJob(job),
		Items:     FromItems(items),
		ItemTotal: total,
	}, nil
}

// Progress returns per-outcome item counts for one job.
func (s *StatusService) Progress(ctx context.Context, id string) (*ProgressView, error) {
	job, err := s.requireJob(ctx, id)
	if err != nil {
		return nil, err
	}
	progress, err := s.store.JobProgress(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ProgressView{
		JobID:     job.ID,
		Status:    string(job.Status),
		Total:     progress.Total,
		Queued:    progress.Queued,
		Running:   progress.Running,
		Success:   progress.Success,
		Failed:    progress.Failed,
		Completed: progress.Completed,
	}, nil
}

// Overview aggregates daemon runtime state for the status endpoint.
func (s *StatusService) Overview(ctx context.Context) (DaemonStatus, error) {
	stats, err := s.store.JobStats(ctx)
	if err != nil {
		return DaemonStatus{}, err
	}
	enabled, err := s.store.CountEnabledSchedules(ctx)
	if err != nil {
		return DaemonStatus{}, err
	}

	counts := make(map[string]int, len(stats))
	for status, count := range stats {
		counts[string(status)] = count
	}

	status := DaemonStatus{
		Running:      true,
		PID:          os.Getpid(),
		DatabasePath: s.databasePath,
		LockFilePath: s.lockPath,
		JobStats:     counts,
		Scheduler: SchedulerStatus{
			EnabledSchedules: enabled,
		},
	}
	if s.scheduler != nil {
		running, since := s.scheduler.Running()
		status.Scheduler.TickRunning = running
		if running {
			status.Scheduler.AliveSince = FormatTime(since)
		}
	}
	if s.runner != nil {
		status.Scheduler.ActiveJobs = s.runner.Active()
	}
	return status, nil
}

func (s *StatusService) requireJob(ctx context.Context, id string) (*store.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	return job, nil
}
