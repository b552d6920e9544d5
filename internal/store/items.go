package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const itemColumns = "id, job_id, name, status, error, started_at, completed_at, created_at"

// CreateItems bulk-inserts one queued item per name for the given job. The
// job must exist; items are created inside a single transaction so a job
// never observes a partially expanded target set.
func (s *Store) CreateItems(ctx context.Context, jobID string, names []string) ([]*JobItem, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin items tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	items := make([]*JobItem, 0, len(names))
	for _, name := range names {
		item := &JobItem{
			ID:        uuid.NewString(),
			JobID:     jobID,
			Name:      name,
			Status:    ItemQueued,
			CreatedAt: now,
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO job_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.JobID, item.Name, string(item.Status), nil, nil, nil, timestamp(now),
		); err != nil {
			return nil, fmt.Errorf("insert job item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit items: %w", err)
	}
	return items, nil
}

// UpdateItemStatus transitions one item. Running sets started_at, terminal
// statuses set completed_at, and terminal items reject further writes with
// ErrFinalized. Failures carry the error text on the row.
func (s *Store) UpdateItemStatus(ctx context.Context, itemID string, status ItemStatus, errText string) error {
	now := time.Now().UTC()

	var startedAt, completedAt any
	if status == ItemRunning {
		startedAt = timestamp(now)
	}
	if status.Terminal() {
		completedAt = timestamp(now)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE job_items
         SET status = ?,
             error = ?,
             started_at = COALESCE(?, started_at),
             completed_at = COALESCE(?, completed_at)
         WHERE id = ? AND status NOT IN (?, ?)`,
		string(status),
		nullableString(errText),
		startedAt,
		completedAt,
		itemID,
		string(ItemSuccess), string(ItemFailed),
	)
	if err != nil {
		return fmt.Errorf("update item status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("job item %s: %w", itemID, ErrNotFound)
	}
	return fmt.Errorf("job item %s is %s: %w", itemID, item.Status, ErrFinalized)
}

// GetItem fetches a single job item. Missing items return (nil, nil).
func (s *Store) GetItem(ctx context.Context, itemID string) (*JobItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM job_items WHERE id = ?`, itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job item: %w", err)
	}
	return item, nil
}

// ListItems returns a page of a job's items in creation order plus the total
// item count.
func (s *Store) ListItems(ctx context.Context, jobID string, page Page) ([]*JobItem, int, error) {
	var total int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM job_items WHERE job_id = ?`, jobID)
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count job items: %w", err)
	}

	query := `SELECT ` + itemColumns + ` FROM job_items WHERE job_id = ? ORDER BY created_at, id`
	args := []any{jobID}
	if page.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit, page.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list job items: %w", err)
	}
	defer rows.Close()

	var items []*JobItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// JobProgress aggregates item outcome counts for one job with a single
// indexed GROUP BY, cheap enough for sub-5-second polling.
func (s *Store) JobProgress(ctx context.Context, jobID string) (Progress, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COUNT(1) FROM job_items WHERE job_id = ? GROUP BY status`,
		jobID,
	)
	if err != nil {
		return Progress{}, fmt.Errorf("job progress: %w", err)
	}
	defer rows.Close()

	var progress Progress
	for rows.Next() {
		var status ItemStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Progress{}, err
		}
		progress.Total += count
		switch status {
		case ItemQueued:
			progress.Queued += count
		case ItemRunning:
			progress.Running += count
		case ItemSuccess:
			progress.Success += count
		case ItemFailed:
			progress.Failed += count
		}
	}
	progress.Completed = progress.Success + progress.Failed
	return progress, rows.Err()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*JobItem, error) {
	var (
		id           string
		jobID        string
		name         string
		statusStr    string
		errText      sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		createdRaw   string
	)
	if err := scanner.Scan(&id, &jobID, &name, &statusStr, &errText, &startedRaw, &completedRaw, &createdRaw); err != nil {
		return nil, err
	}

	item := &JobItem{
		ID:          id,
		JobID:       jobID,
		Name:        name,
		Status:      ItemStatus(statusStr),
		Error:       errText.String,
		StartedAt:   parseTimePtr(startedRaw),
		CompletedAt: parseTimePtr(completedRaw),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	return item, nil
}
