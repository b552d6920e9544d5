package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"emblem/internal/badges"
	"emblem/internal/config"
	"emblem/internal/logging"
	"emblem/internal/services"
	"emblem/internal/store"
)

// Runner owns job execution. One goroutine per job, gated by a global slot
// pool sized at config job_concurrency; inside a job, items are dispatched
// through a worker pool sized at item_concurrency.
type Runner struct {
	store     *store.Store
	resolver  Resolver
	processor Processor
	logger    *slog.Logger

	itemConcurrency int
	itemTimeout     time.Duration
	jobSlots        chan struct{}

	baseCtx  context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu     sync.Mutex
	active map[string]context.CancelFunc
	closed bool
}

// Option configures optional Runner behavior.
type Option func(*Runner)

// WithItemTimeout overrides the per-item dispatch timeout, used in tests.
func WithItemTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.itemTimeout = d
	}
}

// New constructs a runner wired to the given collaborators.
func New(cfg *config.Config, st *store.Store, resolver Resolver, processor Processor, logger *slog.Logger, opts ...Option) *Runner {
	baseCtx, shutdown := context.WithCancel(context.Background())
	r := &Runner{
		store:           st,
		resolver:        resolver,
		processor:       processor,
		logger:          logging.WithComponent(logger, "runner"),
		itemConcurrency: cfg.Scheduler.ItemConcurrency,
		itemTimeout:     time.Duration(cfg.Scheduler.ItemTimeout) * time.Second,
		jobSlots:        make(chan struct{}, cfg.Scheduler.JobConcurrency),
		baseCtx:         baseCtx,
		shutdown:        shutdown,
		active:          make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run creates a job and starts executing it in the background. The returned
// job is the queued row; callers poll the store for progress.
func (r *Runner) Run(ctx context.Context, scheduleID string, trigger store.TriggerType, opts badges.Options) (*store.Job, error) {
	if !opts.AnyEnabled() {
		return nil, services.Wrap(services.ErrValidation, "runner", "trigger job", "no badge types enabled", nil)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errors.New("job runner stopped")
	}
	r.mu.Unlock()

	job := &store.Job{
		ScheduleID: scheduleID,
		Trigger:    trigger,
		Options:    opts,
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if !r.launch(job) {
		// The queued row is reconciled on the next daemon start.
		return nil, errors.New("job runner stopped")
	}
	r.logger.Info("job queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldScheduleID, scheduleID),
		logging.String(logging.FieldTrigger, string(trigger)),
	)
	return job, nil
}

// FireSchedule adapts Run to the cron scheduler's fire callback. It never
// blocks the tick loop; failures are logged and surface as a missing job in
// the history, not as a stalled scheduler.
func (r *Runner) FireSchedule(ctx context.Context, schedule *store.Schedule) {
	if _, err := r.Run(ctx, schedule.ID, store.TriggerScheduled, schedule.Options); err != nil {
		r.logger.Error("scheduled trigger failed",
			logging.Error(err),
			logging.String(logging.FieldScheduleID, schedule.ID),
			logging.String(logging.FieldEventType, "schedule_fire_failed"),
		)
	}
}

// Retry creates a brand-new job from a finished one, reusing the original's
// option snapshot. The original job is left untouched.
func (r *Runner) Retry(ctx context.Context, jobID string) (*store.Job, error) {
	original, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, store.ErrNotFound)
	}
	if !original.Status.Terminal() {
		return nil, services.Wrap(services.ErrValidation, "runner", "retry job",
			fmt.Sprintf("job %s is still %s", jobID, original.Status), nil)
	}
	return r.Run(ctx, original.ScheduleID, store.TriggerRetry, original.Options)
}

// Cancel stops dispatching items for a live job. In-flight items finish and
// count toward the aggregate; undispatched items fail with the cancellation
// message.
func (r *Runner) Cancel(ctx context.Context, jobID string) error {
	r.mu.Lock()
	cancel, ok := r.active[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
		r.logger.Info("job cancel requested", logging.String(logging.FieldJobID, jobID))
		return nil
	}

	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s: %w", jobID, store.ErrNotFound)
	}
	return fmt.Errorf("job %s is %s: %w", jobID, job.Status, store.ErrFinalized)
}

// Active returns the number of jobs this process is currently executing.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Stop cancels all job work and waits for the executors to drain. Jobs still
// waiting for a slot stay queued and are reconciled on the next start.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.shutdown()
	r.wg.Wait()
	r.logger.Info("job runner stopped")
}

// launch starts the executor goroutine for a created job. The closed check,
// the active registration, and the wg.Add share one critical section with
// Stop's closed flag, so no job can launch once Stop has begun waiting.
func (r *Runner) launch(job *store.Job) bool {
	dispatchCtx, cancel := context.WithCancel(r.baseCtx)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return false
	}
	r.active[job.ID] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.active, job.ID)
			r.mu.Unlock()
		}()
		r.execute(dispatchCtx, job)
	}()
	return true
}
