package api

import (
	"context"
	"fmt"
	"strings"

	"emblem/internal/cron"
	"emblem/internal/services"
	"emblem/internal/store"
)

// ScheduleService owns schedule writes. All validation happens here; rows
// that reach the store and the cron loop are always well formed.
type ScheduleService struct {
	store *store.Store
}

// NewScheduleService constructs a ScheduleService around the store.
func NewScheduleService(st *store.Store) *ScheduleService {
	return &ScheduleService{store: st}
}

// Create validates and persists a new schedule. New schedules default to
// enabled; the cron loop seeds next_run on its first tick.
func (s *ScheduleService) Create(ctx context.Context, req ScheduleRequest) (*ScheduleView, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "create schedule", "name is required", nil)
	}
	if err := cron.Validate(req.CronExpr, req.Timezone); err != nil {
		return nil, err
	}
	if req.Badges == nil || !req.Badges.AnyEnabled() {
		return nil, services.Wrap(services.ErrValidation, "api", "create schedule",
			"at least one badge type must be enabled", nil)
	}
	existing, err := s.store.GetScheduleByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, services.Wrap(services.ErrValidation, "api", "create schedule",
			fmt.Sprintf("schedule %q already exists", name), nil)
	}

	schedule := &store.Schedule{
		Name:     name,
		CronExpr: strings.TrimSpace(req.CronExpr),
		Timezone: strings.TrimSpace(req.Timezone),
		Enabled:  req.Enabled == nil || *req.Enabled,
		Options:  *req.Badges,
	}
	if err := s.store.CreateSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	view := FromSchedule(schedule)
	return &view, nil
}

// Update applies a partial schedule edit. Changing the cron expression or
// timezone clears next_run so the scheduler reseeds from the current time.
func (s *ScheduleService) Update(ctx context.Context, id string, req ScheduleRequest) (*ScheduleView, error) {
	schedule, err := s.requireSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(req.Name); name != "" && name != schedule.Name {
		existing, err := s.store.GetScheduleByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, services.Wrap(services.ErrValidation, "api", "update schedule",
				fmt.Sprintf("schedule %q already exists", name), nil)
		}
		schedule.Name = name
	}

	timingChanged := false
	if expr := strings.TrimSpace(req.CronExpr); expr != "" && expr != schedule.CronExpr {
		schedule.CronExpr = expr
		timingChanged = true
	}
	if tz := strings.TrimSpace(req.Timezone); tz != "" && tz != schedule.Timezone {
		schedule.Timezone = tz
		timingChanged = true
	}
	if timingChanged {
		if err := cron.Validate(schedule.CronExpr, schedule.Timezone); err != nil {
			return nil, err
		}
		schedule.NextRun = nil
	}

	if req.Badges != nil {
		if !req.Badges.AnyEnabled() {
			return nil, services.Wrap(services.ErrValidation, "api", "update schedule",
				"at least one badge type must be enabled", nil)
		}
		schedule.Options = *req.Badges
	}
	if req.Enabled != nil {
		if *req.Enabled && !schedule.Enabled {
			schedule.NextRun = nil
		}
		schedule.Enabled = *req.Enabled
	}

	if err := s.store.UpdateSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	view := FromSchedule(schedule)
	return &view, nil
}

// Get fetches one schedule.
func (s *ScheduleService) Get(ctx context.Context, id string) (*ScheduleView, error) {
	schedule, err := s.requireSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	view := FromSchedule(schedule)
	return &view, nil
}

// List returns every schedule in id order.
func (s *ScheduleService) List(ctx context.Context) (ScheduleListResponse, error) {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return ScheduleListResponse{}, err
	}
	return ScheduleListResponse{Schedules: FromSchedules(schedules)}, nil
}

// Delete removes a schedule. Running jobs keep going and job history keeps
// its dangling schedule reference.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.DeleteSchedule(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("schedule %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// SetEnabled toggles a schedule on or off.
func (s *ScheduleService) SetEnabled(ctx context.Context, id string, enabled bool) (*ScheduleView, error) {
	if err := s.store.SetScheduleEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// SetPaused toggles firing suppression while run bookkeeping keeps advancing.
func (s *ScheduleService) SetPaused(ctx context.Context, id string, paused bool) (*ScheduleView, error) {
	if err := s.store.SetSchedulePaused(ctx, id, paused); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Resolve accepts either a schedule id or a schedule name, for CLI ergonomics.
func (s *ScheduleService) Resolve(ctx context.Context, ref string) (*store.Schedule, error) {
	ref = strings.TrimSpace(ref)
	schedule, err := s.store.GetSchedule(ctx, ref)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		schedule, err = s.store.GetScheduleByName(ctx, ref)
		if err != nil {
			return nil, err
		}
	}
	if schedule == nil {
		return nil, fmt.Errorf("schedule %s: %w", ref, store.ErrNotFound)
	}
	return schedule, nil
}

func (s *ScheduleService) requireSchedule(ctx context.Context, id string) (*store.Schedule, error) {
	schedule, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, fmt.Errorf("schedule %s: %w", id, store.ErrNotFound)
	}
	return schedule, nil
}
