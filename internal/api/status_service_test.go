package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"emblem/internal/api"
	"emblem/internal/store"
	"emblem/internal/testsupport"
)

type stubScheduler struct {
	running bool
	since   time.Time
}

func (s stubScheduler) Running() (bool, time.Time) { return s.running, s.since }

type stubRunner struct{ active int }

func (s stubRunner) Active() int { return s.active }

func newStatusService(t *testing.T, st *store.Store) *api.StatusService {
	t.Helper()
	return api.NewStatusService(st, stubScheduler{running: true, since: time.Now().UTC()}, stubRunner{active: 1}, "/data/emblem.db", "/data/emblemd.lock")
}

func TestJobDetailIncludesItemPage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newStatusService(t, st)
	ctx := context.Background()

	schedule := testsupport.NewSchedule(t, st, "Nightly", "0 2 * * *")
	job := testsupport.NewJob(t, st, schedule.ID, store.TriggerScheduled, schedule.Options)
	if _, err := st.CreateItems(ctx, job.ID, []string{"Arrival", "Dune", "Severance"}); err != nil {
		t.Fatalf("CreateItems: %v", err)
	}

	detail, err := svc.JobDetail(ctx, job.ID, store.Page{Limit: 2})
	if err != nil {
		t.Fatalf("JobDetail: %v", err)
	}
	if detail.Job.ID != job.ID || detail.Job.Trigger != "scheduled" {
		t.Fatalf("unexpected job view %+v", detail.Job)
	}
	if len(detail.Items) != 2 || detail.ItemTotal != 3 {
		t.Fatalf("expected paged items 2 of 3, got %d of %d", len(detail.Items), detail.ItemTotal)
	}

	if _, err := svc.JobDetail(ctx, "no-such-job", store.Page{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestProgressCountsOutcomes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newStatusService(t, st)
	ctx := context.Background()

	schedule := testsupport.NewSchedule(t, st, "Nightly", "0 2 * * *")
	job := testsupport.NewJob(t, st, schedule.ID, store.TriggerScheduled, schedule.Options)
	items, err := st.CreateItems(ctx, job.ID, []string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	if err := st.UpdateItemStatus(ctx, items[0].ID, store.ItemSuccess, ""); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}
	if err := st.UpdateItemStatus(ctx, items[1].ID, store.ItemFailed, "boom"); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}
	if err := st.UpdateItemStatus(ctx, items[2].ID, store.ItemRunning, ""); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}

	progress, err := svc.Progress(ctx, job.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if progress.Total != 4 || progress.Success != 1 || progress.Failed != 1 || progress.Running != 1 || progress.Queued != 1 {
		t.Fatalf("unexpected progress %+v", progress)
	}
	if progress.Completed != 2 {
		t.Fatalf("completed = %d, want 2", progress.Completed)
	}
}

func TestListJobsFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newStatusService(t, st)
	ctx := context.Background()

	schedule := testsupport.NewSchedule(t, st, "Nightly", "0 2 * * *")
	scheduled := testsupport.NewJob(t, st, schedule.ID, store.TriggerScheduled, schedule.Options)
	manual := testsupport.NewJob(t, st, "", store.TriggerManual, schedule.Options)
	if err := st.UpdateJobStatus(ctx, manual.ID, store.JobFailed, store.JobUpdate{Message: "boom"}); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	byStatus, err := svc.ListJobs(ctx, store.JobFilter{Statuses: []store.JobStatus{store.JobFailed}}, store.Page{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if byStatus.Total != 1 || len(byStatus.Jobs) != 1 || byStatus.Jobs[0].ID != manual.ID {
		t.Fatalf("status filter broken: %+v", byStatus)
	}

	bySchedule, err := svc.ListJobs(ctx, store.JobFilter{ScheduleID: schedule.ID}, store.Page{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if bySchedule.Total != 1 || bySchedule.Jobs[0].ID != scheduled.ID {
		t.Fatalf("schedule filter broken: %+v", bySchedule)
	}
}

func TestOverviewReportsSchedulerAndCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newStatusService(t, st)
	ctx := context.Background()

	schedule := testsupport.NewSchedule(t, st, "Nightly", "0 2 * * *")
	testsupport.NewJob(t, st, schedule.ID, store.TriggerScheduled, schedule.Options)

	status, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if !status.Running || status.PID == 0 {
		t.Fatalf("unexpected daemon status %+v", status)
	}
	if !status.Scheduler.TickRunning || status.Scheduler.AliveSince == "" {
		t.Fatalf("scheduler status missing: %+v", status.Scheduler)
	}
	if status.Scheduler.EnabledSchedules != 1 || status.Scheduler.ActiveJobs != 1 {
		t.Fatalf("counts wrong: %+v", status.Scheduler)
	}
	if status.JobStats["queued"] != 1 {
		t.Fatalf("job stats wrong: %+v", status.JobStats)
	}
	if status.DatabasePath != "/data/emblem.db" || status.LockFilePath != "/data/emblemd.lock" {
		t.Fatalf("paths wrong: %+v", status)
	}
}
