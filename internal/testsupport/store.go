package testsupport

import (
	"context"
	"testing"

	"emblem/internal/badges"
	"emblem/internal/config"
	"emblem/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewSchedule creates an enabled schedule with one badge flag selected.
func NewSchedule(t testing.TB, st *store.Store, name, cronExpr string, targets ...string) *store.Schedule {
	t.Helper()

	schedule := &store.Schedule{
		Name:     name,
		CronExpr: cronExpr,
		Timezone: "UTC",
		Enabled:  true,
		Options: badges.Options{
			Audio:             badges.Audio{Enabled: true},
			TargetDirectories: targets,
		},
	}
	if err := st.CreateSchedule(context.Background(), schedule); err != nil {
		t.Fatalf("store.CreateSchedule: %v", err)
	}
	return schedule
}

// NewJob creates a queued manual job with the given options.
func NewJob(t testing.TB, st *store.Store, scheduleID string, trigger store.TriggerType, opts badges.Options) *store.Job {
	t.Helper()

	job := &store.Job{
		ScheduleID: scheduleID,
		Trigger:    trigger,
		Options:    opts,
	}
	if err := st.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}
