package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"emblem/internal/logging"
	"emblem/internal/services"
	"emblem/internal/store"
)

// Store writes inside an executor use a background context: a cancelled
// dispatch must still be able to record item and job outcomes.

func (r *Runner) execute(dispatchCtx context.Context, job *store.Job) {
	opCtx := context.Background()

	// Global running-jobs ceiling. The job stays queued while it waits.
	select {
	case r.jobSlots <- struct{}{}:
		defer func() { <-r.jobSlots }()
	case <-dispatchCtx.Done():
		if r.baseCtx.Err() != nil {
			// Daemon shutdown: leave the row queued for restart reconciliation.
			return
		}
		r.finalize(opCtx, job.ID, store.ResultCounts{}, true)
		return
	}

	if err := r.store.UpdateJobStatus(opCtx, job.ID, store.JobRunning, store.JobUpdate{
		Message: "resolving library items",
	}); err != nil {
		r.logger.Error("job start failed", logging.Error(err), logging.String(logging.FieldJobID, job.ID))
		return
	}

	work, err := r.resolver.Resolve(dispatchCtx, job.Options.TargetDirectories)
	if err != nil {
		message := "library resolution failed"
		if services.IsUnavailable(err) {
			message = "library source unavailable"
		}
		r.failJob(opCtx, job.ID, message, err)
		return
	}
	if len(work) == 0 {
		counts := store.ResultCounts{}
		if err := r.store.UpdateJobStatus(opCtx, job.ID, store.JobSuccess, store.JobUpdate{
			Message: "no matching library items",
			Result:  &counts,
		}); err != nil {
			r.logger.Error("job finalize failed", logging.Error(err), logging.String(logging.FieldJobID, job.ID))
		}
		return
	}

	names := make([]string, len(work))
	for i, item := range work {
		names[i] = item.Name
	}
	rows, err := r.store.CreateItems(opCtx, job.ID, names)
	if err != nil {
		r.failJob(opCtx, job.ID, "item expansion failed", err)
		return
	}
	if err := r.store.UpdateJobStatus(opCtx, job.ID, store.JobRunning, store.JobUpdate{
		Message: fmt.Sprintf("processing %d items", len(rows)),
	}); err != nil {
		r.logger.Error("job update failed", logging.Error(err), logging.String(logging.FieldJobID, job.ID))
	}

	cancelled := r.dispatch(dispatchCtx, job, rows, work)

	progress, err := r.store.JobProgress(opCtx, job.ID)
	if err != nil {
		r.failJob(opCtx, job.ID, "progress aggregation failed", err)
		return
	}
	counts := store.ResultCounts{
		Total:   progress.Total,
		Success: progress.Success,
		Failed:  progress.Failed,
	}
	r.finalize(opCtx, job.ID, counts, cancelled)
}

// dispatch pushes items through the per-job worker pool. It reports whether
// dispatch was cut short by cancellation; items never handed to a worker are
// failed with the cancellation message.
func (r *Runner) dispatch(dispatchCtx context.Context, job *store.Job, rows []*store.JobItem, work []WorkItem) bool {
	opCtx := context.Background()
	sem := make(chan struct{}, r.itemConcurrency)
	var wg sync.WaitGroup
	cancelled := false

	for i, row := range rows {
		skip := dispatchCtx.Err() != nil
		if !skip {
			select {
			case sem <- struct{}{}:
			case <-dispatchCtx.Done():
				skip = true
			}
		}
		if skip {
			cancelled = true
			if err := r.store.UpdateItemStatus(opCtx, row.ID, store.ItemFailed, store.CancelledMessage); err != nil {
				r.logger.Error("item cancel failed", logging.Error(err), logging.String(logging.FieldItemID, row.ID))
			}
			continue
		}

		wg.Add(1)
		go func(row *store.JobItem, item WorkItem) {
			defer wg.Done()
			defer func() { <-sem }()
			r.processItem(job, row, item)
		}(row, work[i])
	}

	wg.Wait()
	return cancelled
}

func (r *Runner) processItem(job *store.Job, row *store.JobItem, item WorkItem) {
	opCtx := context.Background()
	if err := r.store.UpdateItemStatus(opCtx, row.ID, store.ItemRunning, ""); err != nil {
		r.logger.Error("item start failed", logging.Error(err), logging.String(logging.FieldItemID, row.ID))
		return
	}

	// Cancellation lets in-flight items finish, so the timeout hangs off the
	// runner lifetime rather than the dispatch context.
	itemCtx, cancel := context.WithTimeout(r.baseCtx, r.itemTimeout)
	defer cancel()

	err := r.processor.Process(itemCtx, item, job.Options)
	switch {
	case err == nil:
		if err := r.store.UpdateItemStatus(opCtx, row.ID, store.ItemSuccess, ""); err != nil {
			r.logger.Error("item finalize failed", logging.Error(err), logging.String(logging.FieldItemID, row.ID))
		}
	case errors.Is(itemCtx.Err(), context.DeadlineExceeded):
		timeoutErr := fmt.Sprintf("processing timed out after %s", r.itemTimeout)
		if err := r.store.UpdateItemStatus(opCtx, row.ID, store.ItemFailed, timeoutErr); err != nil {
			r.logger.Error("item finalize failed", logging.Error(err), logging.String(logging.FieldItemID, row.ID))
		}
		r.logger.Warn("item timed out",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldItemID, row.ID),
			logging.String("item", item.Name),
			logging.Duration("timeout", r.itemTimeout),
		)
	default:
		if err := r.store.UpdateItemStatus(opCtx, row.ID, store.ItemFailed, err.Error()); err != nil {
			r.logger.Error("item finalize failed", logging.Error(err), logging.String(logging.FieldItemID, row.ID))
		}
		r.logger.Warn("item failed",
			logging.Error(err),
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldItemID, row.ID),
			logging.String("item", item.Name),
		)
	}
}

// finalize derives the terminal status purely from the outcome counts and
// writes it once. A job already finalized by restart reconciliation is left
// alone.
func (r *Runner) finalize(ctx context.Context, jobID string, counts store.ResultCounts, cancelled bool) {
	status := store.AggregateStatus(counts)
	message := fmt.Sprintf("%d of %d items succeeded", counts.Success, counts.Total)
	if counts.Total == 0 {
		message = "no items processed"
	}
	if cancelled {
		if counts.Total == 0 {
			status = store.JobFailed
		}
		message = store.CancelledMessage + ": " + message
	}

	update := store.JobUpdate{Message: message, Result: &counts}
	if cancelled {
		update.ErrorDetails = store.CancelledMessage
	}
	if err := r.store.UpdateJobStatus(ctx, jobID, status, update); err != nil {
		if errors.Is(err, store.ErrFinalized) {
			return
		}
		r.logger.Error("job finalize failed", logging.Error(err), logging.String(logging.FieldJobID, jobID))
		return
	}
	r.logger.Info("job finished",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldStatus, string(status)),
		logging.Int("total", counts.Total),
		logging.Int("success", counts.Success),
		logging.Int("failed", counts.Failed),
	)
}

func (r *Runner) failJob(ctx context.Context, jobID, message string, cause error) {
	counts := store.ResultCounts{}
	if err := r.store.UpdateJobStatus(ctx, jobID, store.JobFailed, store.JobUpdate{
		Message:      message,
		ErrorDetails: cause.Error(),
		Result:       &counts,
	}); err != nil && !errors.Is(err, store.ErrFinalized) {
		r.logger.Error("job finalize failed", logging.Error(err), logging.String(logging.FieldJobID, jobID))
		return
	}
	r.logger.Error("job failed",
		logging.Error(cause),
		logging.String(logging.FieldJobID, jobID),
		logging.String("reason", message),
	)
}
