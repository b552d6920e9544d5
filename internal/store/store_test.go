package store_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"emblem/internal/badges"
	"emblem/internal/store"
	"emblem/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	schedule := testsupport.NewSchedule(t, st, "Nightly", "0 2 * * *", "movies")
	if schedule.ID == "" {
		t.Fatal("expected schedule ID to be assigned")
	}

	fetched, err := st.GetSchedule(context.Background(), schedule.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if fetched == nil || fetched.Name != "Nightly" {
		t.Fatalf("unexpected fetched schedule: %#v", fetched)
	}
	if fetched.Options.TargetDirectories[0] != "movies" {
		t.Fatalf("expected options round trip, got %#v", fetched.Options)
	}
}

func TestScheduleNameUnique(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.NewSchedule(t, st, "Nightly", "0 2 * * *")
	dup := &store.Schedule{Name: "Nightly", CronExpr: "0 3 * * *", Timezone: "UTC"}
	if err := st.CreateSchedule(context.Background(), dup); err == nil {
		t.Fatal("expected unique constraint violation for duplicate name")
	}
}

func TestJobLifecycleSetsCompletedAtOnlyWhenTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, st, "", store.TriggerManual, badges.Options{Audio: badges.Audio{Enabled: true}})
	if job.Status != store.JobQueued {
		t.Fatalf("new job should be queued, got %s", job.Status)
	}

	if err := st.UpdateJobStatus(ctx, job.ID, store.JobRunning, store.JobUpdate{}); err != nil {
		t.Fatalf("UpdateJobStatus running: %v", err)
	}
	fetched, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.CompletedAt != nil {
		t.Fatal("running job must not carry completed_at")
	}

	result := store.ResultCounts{Total: 2, Success: 2}
	if err := st.UpdateJobStatus(ctx, job.ID, store.JobSuccess, store.JobUpdate{Message: "Processed 2 items", Result: &result}); err != nil {
		t.Fatalf("UpdateJobStatus success: %v", err)
	}
	fetched, err = st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if fetched.CompletedAt == nil || fetched.Status != store.JobSuccess {
		t.Fatalf("terminal job must carry completed_at: %#v", fetched)
	}
	if fetched.Result.Success != 2 || fetched.Message != "Processed 2 items" {
		t.Fatalf("unexpected result fields: %#v", fetched)
	}
	if fetched.Duration() <= 0 {
		t.Fatal("expected positive duration for completed job")
	}
}

func TestTerminalJobRejectsFurtherTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, st, "", store.TriggerManual, badges.Options{})
	if err := st.UpdateJobStatus(ctx, job.ID, store.JobFailed, store.JobUpdate{ErrorDetails: "boom"}); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}
	err := st.UpdateJobStatus(ctx, job.ID, store.JobRunning, store.JobUpdate{})
	if !errors.Is(err, store.ErrFinalized) {
		t.Fatalf("expected ErrFinalized, got %v", err)
	}
}

func TestUpdateJobStatusMissingIDSignalsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	err := st.UpdateJobStatus(context.Background(), "no-such-job", store.JobRunning, store.JobUpdate{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteJobCascadesToItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, st, "", store.TriggerManual, badges.Options{})
	items, err := st.CreateItems(ctx, job.ID, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	removed, err := st.DeleteJob(ctx, job.ID)
	if err != nil || !removed {
		t.Fatalf("DeleteJob: removed=%v err=%v", removed, err)
	}
	for _, item := range items {
		got, err := st.GetItem(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetItem: %v", err)
		}
		if got != nil {
			t.Fatalf("expected item %s removed with its job", item.ID)
		}
	}
}

func TestCreateItemsRequiresExistingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := st.CreateItems(context.Background(), "no-such-job", []string{"a"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestItemTransitionsAndFinalization(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, st, "", store.TriggerManual, badges.Options{})
	items, err := st.CreateItems(ctx, job.ID, []string{"poster-1"})
	if err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	itemID := items[0].ID

	if err := st.UpdateItemStatus(ctx, itemID, store.ItemRunning, ""); err != nil {
		t.Fatalf("UpdateItemStatus running: %v", err)
	}
	got, err := st.GetItem(ctx, itemID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.StartedAt == nil || got.CompletedAt != nil {
		t.Fatalf("running item should have started_at only: %#v", got)
	}

	if err := st.UpdateItemStatus(ctx, itemID, store.ItemFailed, "render timeout"); err != nil {
		t.Fatalf("UpdateItemStatus failed: %v", err)
	}
	got, err = st.GetItem(ctx, itemID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.CompletedAt == nil || got.Error != "render timeout" {
		t.Fatalf("failed item should carry completion and error: %#v", got)
	}

	err = st.UpdateItemStatus(ctx, itemID, store.ItemSuccess, "")
	if !errors.Is(err, store.ErrFinalized) {
		t.Fatalf("terminal item must reject resurrection, got %v", err)
	}
}

func TestListJobsFilterAndPagination(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	schedule := testsupport.NewSchedule(t, st, "Weekly", "0 4 * * 0")
	for i := 0; i < 5; i++ {
		job := testsupport.NewJob(t, st, schedule.ID, store.TriggerScheduled, badges.Options{})
		if i%2 == 0 {
			if err := st.UpdateJobStatus(ctx, job.ID, store.JobFailed, store.JobUpdate{Message: fmt.Sprintf("run %d failed", i)}); err != nil {
				t.Fatalf("UpdateJobStatus: %v", err)
			}
		}
	}
	testsupport.NewJob(t, st, "", store.TriggerManual, badges.Options{})

	jobs, total, err := st.ListJobs(ctx, store.JobFilter{Statuses: []store.JobStatus{store.JobFailed}}, store.Page{Limit: 2})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if total != 3 || len(jobs) != 2 {
		t.Fatalf("expected total 3 page 2, got total=%d page=%d", total, len(jobs))
	}

	jobs, total, err = st.ListJobs(ctx, store.JobFilter{ScheduleID: schedule.ID}, store.Page{})
	if err != nil {
		t.Fatalf("ListJobs by schedule: %v", err)
	}
	if total != 5 || len(jobs) != 5 {
		t.Fatalf("expected 5 schedule jobs, got total=%d len=%d", total, len(jobs))
	}

	_, total, err = st.ListJobs(ctx, store.JobFilter{Search: "run 2"}, store.Page{})
	if err != nil {
		t.Fatalf("ListJobs search: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one search match, got %d", total)
	}
}

func TestJobProgressCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, st, "", store.TriggerManual, badges.Options{})
	items, err := st.CreateItems(ctx, job.ID, []string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	if err := st.UpdateItemStatus(ctx, items[0].ID, store.ItemSuccess, ""); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}
	if err := st.UpdateItemStatus(ctx, items[1].ID, store.ItemFailed, "x"); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}
	if err := st.UpdateItemStatus(ctx, items[2].ID, store.ItemRunning, ""); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}

	progress, err := st.JobProgress(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobProgress: %v", err)
	}
	want := store.Progress{Total: 4, Queued: 1, Running: 1, Success: 1, Failed: 1, Completed: 2}
	if progress != want {
		t.Fatalf("progress = %+v, want %+v", progress, want)
	}
}

func TestAggregateStatusIsOrderIndependent(t *testing.T) {
	outcomes := []store.ItemStatus{
		store.ItemSuccess, store.ItemFailed, store.ItemSuccess,
		store.ItemSuccess, store.ItemFailed,
	}

	counts := func(statuses []store.ItemStatus) store.ResultCounts {
		var c store.ResultCounts
		for _, status := range statuses {
			c.Total++
			if status == store.ItemSuccess {
				c.Success++
			} else {
				c.Failed++
			}
		}
		return c
	}

	want := store.AggregateStatus(counts(outcomes))
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]store.ItemStatus{}, outcomes...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		if got := store.AggregateStatus(counts(shuffled)); got != want {
			t.Fatalf("aggregate changed with order: got %s want %s", got, want)
		}
	}
	if want != store.JobPartial {
		t.Fatalf("mixed outcomes should aggregate to partial, got %s", want)
	}

	if store.AggregateStatus(store.ResultCounts{Total: 3, Success: 3}) != store.JobSuccess {
		t.Fatal("all-success should aggregate to success")
	}
	if store.AggregateStatus(store.ResultCounts{Total: 3, Failed: 3}) != store.JobFailed {
		t.Fatal("all-failed should aggregate to failed")
	}
}

func TestReconcileInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	running := testsupport.NewJob(t, st, "", store.TriggerManual, badges.Options{})
	if err := st.UpdateJobStatus(ctx, running.ID, store.JobRunning, store.JobUpdate{}); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	items, err := st.CreateItems(ctx, running.ID, []string{"a", "b"})
	if err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	if err := st.UpdateItemStatus(ctx, items[0].ID, store.ItemRunning, ""); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}

	done := testsupport.NewJob(t, st, "", store.TriggerManual, badges.Options{})
	if err := st.UpdateJobStatus(ctx, done.ID, store.JobSuccess, store.JobUpdate{}); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	affected, err := st.ReconcileInterrupted(ctx)
	if err != nil {
		t.Fatalf("ReconcileInterrupted: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 job reconciled, got %d", affected)
	}

	job, err := st.GetJob(ctx, running.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != store.JobFailed || job.ErrorDetails != store.InterruptedMessage {
		t.Fatalf("expected interrupted failure, got %#v", job)
	}
	for _, item := range items {
		got, err := st.GetItem(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetItem: %v", err)
		}
		if got.Status != store.ItemFailed || got.Error != store.InterruptedMessage {
			t.Fatalf("expected interrupted item, got %#v", got)
		}
	}

	terminal, err := st.GetJob(ctx, done.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if terminal.Status != store.JobSuccess {
		t.Fatalf("terminal job must be untouched, got %s", terminal.Status)
	}
}

func TestPruneJobsRemovesOldTerminalOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	old := testsupport.NewJob(t, st, "", store.TriggerManual, badges.Options{})
	if err := st.UpdateJobStatus(ctx, old.ID, store.JobSuccess, store.JobUpdate{}); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	live := testsupport.NewJob(t, st, "", store.TriggerManual, badges.Options{})
	if err := st.UpdateJobStatus(ctx, live.ID, store.JobRunning, store.JobUpdate{}); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	pruned, err := st.PruneJobs(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("PruneJobs: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned job, got %d", pruned)
	}
	if job, _ := st.GetJob(ctx, live.ID); job == nil {
		t.Fatal("running job must survive pruning")
	}
}

func TestScheduleRunBookkeeping(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	schedule := testsupport.NewSchedule(t, st, "Nightly", "0 2 * * *")
	fired := time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC)
	next := fired.Add(24 * time.Hour)
	if err := st.UpdateScheduleRuns(ctx, schedule.ID, &fired, &next); err != nil {
		t.Fatalf("UpdateScheduleRuns: %v", err)
	}

	got, err := st.GetSchedule(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if got.LastRun == nil || !got.LastRun.Equal(fired) {
		t.Fatalf("expected last_run %v, got %v", fired, got.LastRun)
	}
	if got.NextRun == nil || !got.NextRun.Equal(next) {
		t.Fatalf("expected next_run %v, got %v", next, got.NextRun)
	}

	if err := st.SetScheduleEnabled(ctx, schedule.ID, false); err != nil {
		t.Fatalf("SetScheduleEnabled: %v", err)
	}
	got, err = st.GetSchedule(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if got.Enabled {
		t.Fatal("expected schedule disabled")
	}
	if got.NextRun == nil {
		t.Fatal("disable must keep next_run bookkeeping")
	}

	if err := st.SetScheduleEnabled(ctx, schedule.ID, true); err != nil {
		t.Fatalf("SetScheduleEnabled: %v", err)
	}
	got, err = st.GetSchedule(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if got.NextRun != nil {
		t.Fatal("re-enable must clear next_run for recomputation")
	}

	if err := st.SetScheduleEnabled(ctx, schedule.ID, false); err != nil {
		t.Fatalf("SetScheduleEnabled: %v", err)
	}
	count, err := st.CountEnabledSchedules(ctx)
	if err != nil {
		t.Fatalf("CountEnabledSchedules: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero enabled schedules, got %d", count)
	}
}
