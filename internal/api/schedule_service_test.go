package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"emblem/internal/api"
	"emblem/internal/badges"
	"emblem/internal/services"
	"emblem/internal/store"
	"emblem/internal/testsupport"
)

func audioBadges() *badges.Options {
	return &badges.Options{Audio: badges.Audio{Enabled: true}}
}

func TestCreateScheduleValidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewScheduleService(st)
	ctx := context.Background()

	cases := []struct {
		name string
		req  api.ScheduleRequest
	}{
		{"missing name", api.ScheduleRequest{CronExpr: "0 2 * * *", Badges: audioBadges()}},
		{"bad cron", api.ScheduleRequest{Name: "Nightly", CronExpr: "not cron", Badges: audioBadges()}},
		{"bad timezone", api.ScheduleRequest{Name: "Nightly", CronExpr: "0 2 * * *", Timezone: "Mars/Olympus", Badges: audioBadges()}},
		{"no badge types", api.ScheduleRequest{Name: "Nightly", CronExpr: "0 2 * * *", Badges: &badges.Options{}}},
		{"nil badge options", api.ScheduleRequest{Name: "Nightly", CronExpr: "0 2 * * *"}},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.req); !services.IsValidation(err) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestCreateScheduleRejectsDuplicateName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewScheduleService(st)
	ctx := context.Background()

	req := api.ScheduleRequest{Name: "Nightly", CronExpr: "0 2 * * *", Timezone: "UTC", Badges: audioBadges()}
	created, err := svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created.Enabled {
		t.Fatal("new schedules must default to enabled")
	}
	if created.NextRun != "" {
		t.Fatal("next_run is seeded by the cron loop, not at create time")
	}

	if _, err := svc.Create(ctx, req); !services.IsValidation(err) {
		t.Fatalf("expected duplicate-name rejection, got %v", err)
	}
}

func TestUpdateScheduleReseedsOnTimingChange(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewScheduleService(st)
	ctx := context.Background()

	created, err := svc.Create(ctx, api.ScheduleRequest{
		Name: "Nightly", CronExpr: "0 2 * * *", Timezone: "UTC", Badges: audioBadges(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Simulate the cron loop having seeded bookkeeping.
	now := mustParse(t, "2026-08-31T02:00:00Z")
	if err := st.UpdateScheduleRuns(ctx, created.ID, nil, &now); err != nil {
		t.Fatalf("UpdateScheduleRuns: %v", err)
	}

	updated, err := svc.Update(ctx, created.ID, api.ScheduleRequest{CronExpr: "30 3 * * *"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.CronExpr != "30 3 * * *" {
		t.Fatalf("cron not updated: %+v", updated)
	}
	if updated.NextRun != "" {
		t.Fatal("timing change must clear next_run for reseeding")
	}

	// A non-timing edit leaves bookkeeping alone.
	if err := st.UpdateScheduleRuns(ctx, created.ID, nil, &now); err != nil {
		t.Fatalf("UpdateScheduleRuns: %v", err)
	}
	renamed, err := svc.Update(ctx, created.ID, api.ScheduleRequest{Name: "Nightly v2"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if renamed.NextRun == "" {
		t.Fatal("rename must not clear next_run")
	}
}

func TestUpdateMissingScheduleNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewScheduleService(st)

	_, err := svc.Update(context.Background(), "no-such-id", api.ScheduleRequest{Name: "x"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDeleteScheduleKeepsJobHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewScheduleService(st)
	ctx := context.Background()

	schedule := testsupport.NewSchedule(t, st, "Nightly", "0 2 * * *")
	job := testsupport.NewJob(t, st, schedule.ID, store.TriggerScheduled, schedule.Options)

	if err := svc.Delete(ctx, schedule.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, schedule.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete should be not-found, got %v", err)
	}

	kept, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if kept == nil || kept.ScheduleID != schedule.ID {
		t.Fatalf("job history must keep the dangling schedule reference, got %+v", kept)
	}
}

func TestResolveAcceptsIDOrName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewScheduleService(st)
	ctx := context.Background()

	schedule := testsupport.NewSchedule(t, st, "Nightly", "0 2 * * *")

	byID, err := svc.Resolve(ctx, schedule.ID)
	if err != nil || byID.ID != schedule.ID {
		t.Fatalf("resolve by id: %v %+v", err, byID)
	}
	byName, err := svc.Resolve(ctx, "Nightly")
	if err != nil || byName.ID != schedule.ID {
		t.Fatalf("resolve by name: %v %+v", err, byName)
	}
	if _, err := svc.Resolve(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return parsed
}
