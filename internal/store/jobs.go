package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"emblem/internal/badges"
)

const jobColumns = "id, schedule_id, trigger_type, status, message, error_details, options_json, result_total, result_success, result_failed, started_at, completed_at, created_at, updated_at"

// JobFilter narrows ListJobs results. Zero values match everything.
type JobFilter struct {
	Statuses   []JobStatus
	ScheduleID string
	Search     string
}

// Page bounds a list query. Limit <= 0 means no limit.
type Page struct {
	Limit  int
	Offset int
}

// JobUpdate carries the optional fields of a status transition.
type JobUpdate struct {
	Message      string
	ErrorDetails string
	Result       *ResultCounts
}

// CreateJob inserts a new job in status queued and assigns its id and
// timestamps.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("marshal job options: %w", err)
	}

	now := time.Now().UTC()
	job.ID = uuid.NewString()
	job.Status = JobQueued
	job.StartedAt = now
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (`+jobColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		nullableString(job.ScheduleID),
		string(job.Trigger),
		string(job.Status),
		nullableString(job.Message),
		nullableString(job.ErrorDetails),
		string(optionsJSON),
		job.Result.Total,
		job.Result.Success,
		job.Result.Failed,
		timestamp(now),
		nil,
		timestamp(now),
		timestamp(now),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus transitions a job forward. Terminal statuses set
// completed_at; a job that already reached a terminal status is rejected
// with ErrFinalized so retries can never rewrite history.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status JobStatus, update JobUpdate) error {
	now := time.Now().UTC()
	var completedAt any
	if status.Terminal() {
		completedAt = timestamp(now)
	}

	result := ResultCounts{}
	hasResult := update.Result != nil
	if hasResult {
		result = *update.Result
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?,
             message = COALESCE(?, message),
             error_details = COALESCE(?, error_details),
             result_total = CASE WHEN ? THEN ? ELSE result_total END,
             result_success = CASE WHEN ? THEN ? ELSE result_success END,
             result_failed = CASE WHEN ? THEN ? ELSE result_failed END,
             completed_at = COALESCE(?, completed_at),
             updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		string(status),
		nullableString(update.Message),
		nullableString(update.ErrorDetails),
		hasResult, result.Total,
		hasResult, result.Success,
		hasResult, result.Failed,
		completedAt,
		timestamp(now),
		id,
		string(JobSuccess), string(JobFailed), string(JobPartial),
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("job %s is %s: %w", id, job.Status, ErrFinalized)
}

// GetJob fetches a job by id. Missing jobs return (nil, nil).
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns a filtered page of job history, newest first, along with
// the total match count for pagination.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter, page Page) ([]*Job, int, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		where = append(where, `status IN (`+makePlaceholders(len(filter.Statuses))+`)`)
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if filter.ScheduleID != "" {
		where = append(where, `schedule_id = ?`)
		args = append(args, filter.ScheduleID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where = append(where, `(message LIKE ? OR error_details LIKE ? OR id LIKE ?)`)
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs`+clause, args...)
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + clause + ` ORDER BY started_at DESC, id DESC`
	if page.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit, page.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// DeleteJob removes a job; its items go with it via the cascading foreign key.
func (s *Store) DeleteJob(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// JobStats returns a count of jobs grouped by status.
func (s *Store) JobStats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// CountRunningJobs returns the number of jobs currently queued or running.
func (s *Store) CountRunningJobs(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM jobs WHERE status IN (?, ?)`,
		string(JobQueued), string(JobRunning),
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count running jobs: %w", err)
	}
	return count, nil
}

// PruneJobs deletes terminal jobs that completed before the cutoff.
func (s *Store) PruneJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM jobs
         WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		string(JobSuccess), string(JobFailed), string(JobPartial),
		timestamp(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReconcileInterrupted fails every job and item left live by a previous
// process. Running state has no owner after a restart and must never be
// trusted as still in flight.
func (s *Store) ReconcileInterrupted(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reconcile tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := timestamp(time.Now().UTC())

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE job_items
         SET status = ?, error = ?, completed_at = ?
         WHERE status IN (?, ?)
           AND job_id IN (SELECT id FROM jobs WHERE status IN (?, ?))`,
		string(ItemFailed), InterruptedMessage, now,
		string(ItemQueued), string(ItemRunning),
		string(JobQueued), string(JobRunning),
	); err != nil {
		return 0, fmt.Errorf("reconcile items: %w", err)
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, message = ?, error_details = ?, completed_at = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		string(JobFailed), "Interrupted by daemon restart", InterruptedMessage, now, now,
		string(JobQueued), string(JobRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("reconcile jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reconcile: %w", err)
	}
	return affected, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            string
		scheduleID    sql.NullString
		trigger       string
		statusStr     string
		message       sql.NullString
		errorDetails  sql.NullString
		optionsJSON   string
		resultTotal   int
		resultSuccess int
		resultFailed  int
		startedRaw    string
		completedRaw  sql.NullString
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&id, &scheduleID, &trigger, &statusStr, &message, &errorDetails,
		&optionsJSON, &resultTotal, &resultSuccess, &resultFailed,
		&startedRaw, &completedRaw, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	var options badges.Options
	if err := json.Unmarshal([]byte(optionsJSON), &options); err != nil {
		return nil, fmt.Errorf("unmarshal job options: %w", err)
	}

	job := &Job{
		ID:           id,
		ScheduleID:   scheduleID.String,
		Trigger:      TriggerType(trigger),
		Status:       JobStatus(statusStr),
		Message:      message.String,
		ErrorDetails: errorDetails.String,
		Options:      options,
		Result: ResultCounts{
			Total:   resultTotal,
			Success: resultSuccess,
			Failed:  resultFailed,
		},
		CompletedAt: parseTimePtr(completedRaw),
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		job.StartedAt = started
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
