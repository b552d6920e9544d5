package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"emblem/internal/badges"
)

const scheduleColumns = "id, name, cron_expr, timezone, enabled, paused, options_json, created_at, updated_at, last_run, next_run"

// CreateSchedule inserts a new schedule and assigns its id and timestamps.
func (s *Store) CreateSchedule(ctx context.Context, schedule *Schedule) error {
	if schedule == nil {
		return errors.New("schedule is nil")
	}
	optionsJSON, err := json.Marshal(schedule.Options)
	if err != nil {
		return fmt.Errorf("marshal schedule options: %w", err)
	}

	now := time.Now().UTC()
	schedule.ID = uuid.NewString()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	if schedule.Timezone == "" {
		schedule.Timezone = "Local"
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO schedules (`+scheduleColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID,
		schedule.Name,
		schedule.CronExpr,
		schedule.Timezone,
		boolToInt(schedule.Enabled),
		boolToInt(schedule.Paused),
		string(optionsJSON),
		timestamp(now),
		timestamp(now),
		nullableTime(schedule.LastRun),
		nullableTime(schedule.NextRun),
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// UpdateSchedule persists changes to name, cron expression, timezone, and
// options. Run bookkeeping is updated through UpdateScheduleRuns.
func (s *Store) UpdateSchedule(ctx context.Context, schedule *Schedule) error {
	if schedule == nil {
		return errors.New("schedule is nil")
	}
	optionsJSON, err := json.Marshal(schedule.Options)
	if err != nil {
		return fmt.Errorf("marshal schedule options: %w", err)
	}
	schedule.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE schedules
         SET name = ?, cron_expr = ?, timezone = ?, enabled = ?, paused = ?,
             options_json = ?, updated_at = ?, next_run = ?
         WHERE id = ?`,
		schedule.Name,
		schedule.CronExpr,
		schedule.Timezone,
		boolToInt(schedule.Enabled),
		boolToInt(schedule.Paused),
		string(optionsJSON),
		timestamp(schedule.UpdatedAt),
		nullableTime(schedule.NextRun),
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return requireRow(res, "schedule")
}

// GetSchedule fetches a schedule by id. Missing schedules return (nil, nil).
func (s *Store) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	schedule, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return schedule, nil
}

// GetScheduleByName fetches a schedule by its unique name.
func (s *Store) GetScheduleByName(ctx context.Context, name string) (*Schedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE name = ?`, name)
	schedule, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule by name: %w", err)
	}
	return schedule, nil
}

// ListSchedules returns all schedules ordered by id so due-schedule firing
// order is deterministic.
func (s *Store) ListSchedules(ctx context.Context) ([]*Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

// DeleteSchedule removes a schedule. Historical jobs keep their dangling
// schedule_id reference.
func (s *Store) DeleteSchedule(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetScheduleEnabled toggles a schedule. Re-enabling clears next_run so the
// scheduler recomputes it from the current time forward; disabling keeps the
// bookkeeping in place.
func (s *Store) SetScheduleEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE schedules
         SET enabled = ?,
             next_run = CASE WHEN ? THEN NULL ELSE next_run END,
             updated_at = ?
         WHERE id = ?`,
		boolToInt(enabled),
		enabled,
		timestamp(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set schedule enabled: %w", err)
	}
	return requireRow(res, "schedule")
}

// SetSchedulePaused toggles the pause flag without touching next_run
// bookkeeping; a paused schedule keeps advancing next_run but never fires.
func (s *Store) SetSchedulePaused(ctx context.Context, id string, paused bool) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE schedules SET paused = ?, updated_at = ? WHERE id = ?`,
		boolToInt(paused),
		timestamp(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set schedule paused: %w", err)
	}
	return requireRow(res, "schedule")
}

// UpdateScheduleRuns records fire bookkeeping computed by the cron scheduler.
func (s *Store) UpdateScheduleRuns(ctx context.Context, id string, lastRun, nextRun *time.Time) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE schedules SET last_run = COALESCE(?, last_run), next_run = ?, updated_at = ? WHERE id = ?`,
		nullableTime(lastRun),
		nullableTime(nextRun),
		timestamp(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update schedule runs: %w", err)
	}
	return requireRow(res, "schedule")
}

// CountEnabledSchedules returns the number of enabled schedules.
func (s *Store) CountEnabledSchedules(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schedules WHERE enabled = 1`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count enabled schedules: %w", err)
	}
	return count, nil
}

func requireRow(res sql.Result, entity string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return nil
}

func scanSchedule(scanner interface{ Scan(dest ...any) error }) (*Schedule, error) {
	var (
		id          string
		name        string
		cronExpr    string
		timezone    string
		enabled     int
		paused      int
		optionsJSON string
		createdRaw  string
		updatedRaw  string
		lastRunRaw  sql.NullString
		nextRunRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id, &name, &cronExpr, &timezone, &enabled, &paused,
		&optionsJSON, &createdRaw, &updatedRaw, &lastRunRaw, &nextRunRaw,
	); err != nil {
		return nil, err
	}

	var options badges.Options
	if err := json.Unmarshal([]byte(optionsJSON), &options); err != nil {
		return nil, fmt.Errorf("unmarshal schedule options: %w", err)
	}

	schedule := &Schedule{
		ID:       id,
		Name:     name,
		CronExpr: cronExpr,
		Timezone: timezone,
		Enabled:  enabled != 0,
		Paused:   paused != 0,
		Options:  options,
		LastRun:  parseTimePtr(lastRunRaw),
		NextRun:  parseTimePtr(nextRunRaw),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		schedule.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		schedule.UpdatedAt = updated
	}
	return schedule, nil
}
