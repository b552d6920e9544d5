package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"emblem/internal/config"
	"emblem/internal/logging"
	"emblem/internal/store"
)

// FireFunc receives a due schedule. Implementations must not block the tick
// loop; the job runner hands work to a goroutine and returns immediately.
type FireFunc func(ctx context.Context, schedule *store.Schedule)

// Scheduler evaluates schedule due times on a fixed tick.
type Scheduler struct {
	store      *store.Store
	fire       FireFunc
	logger     *slog.Logger
	interval   time.Duration
	errorRetry time.Duration
	now        func() time.Time

	mu         sync.Mutex
	running    bool
	aliveSince time.Time
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// Option configures optional Scheduler behavior.
type Option func(*Scheduler)

// WithNow overrides the clock, used in tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New constructs a scheduler that fires due schedules through fn.
func New(cfg *config.Config, st *store.Store, fn FireFunc, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      st,
		fire:       fn,
		logger:     logging.WithComponent(logger, "cron"),
		interval:   time.Duration(cfg.Scheduler.TickInterval) * time.Second,
		errorRetry: time.Duration(cfg.Scheduler.ErrorRetryInterval) * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("cron scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.aliveSince = s.now().UTC()
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(s.interval)
		defer timer.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-timer.C:
				err := s.Tick(runCtx)
				if err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Error("schedule evaluation failed",
						logging.Error(err),
						logging.String(logging.FieldEventType, "cron_tick_failed"),
						logging.String(logging.FieldErrorHint, "check database access"),
					)
				}
				timer.Reset(s.tickDelay(err))
			}
		}
	}()

	s.logger.Info("cron scheduler started", logging.Duration("tick_interval", s.interval))
	return nil
}

// Stop terminates the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
}

// Running reports whether the tick loop is active and since when.
func (s *Scheduler) Running() (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.aliveSince
}

// tickDelay picks the wait before the next evaluation. A failed pass retries
// on the shorter error interval so a transient database hiccup does not
// postpone due schedules by a full tick.
func (s *Scheduler) tickDelay(err error) time.Duration {
	if err != nil && s.errorRetry > 0 && s.errorRetry < s.interval {
		return s.errorRetry
	}
	return s.interval
}

// Tick evaluates every schedule once. Schedules are visited in ascending id
// order, so simultaneous due times fire deterministically. One schedule's
// failure never stops the remaining evaluations.
func (s *Scheduler) Tick(ctx context.Context) error {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	var firstErr error
	for _, schedule := range schedules {
		if !schedule.Enabled {
			continue
		}
		if err := s.evaluate(ctx, schedule, now); err != nil {
			s.logger.Error("schedule evaluation failed",
				logging.Error(err),
				logging.String(logging.FieldScheduleID, schedule.ID),
				logging.String(logging.FieldEventType, "schedule_evaluate_failed"),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Scheduler) evaluate(ctx context.Context, schedule *store.Schedule, now time.Time) error {
	// No bookkeeping yet (new or freshly re-enabled schedule): seed next_run
	// from the current time forward without firing.
	if schedule.NextRun == nil {
		next, err := NextAfter(schedule.CronExpr, schedule.Timezone, now)
		if err != nil {
			return err
		}
		return s.store.UpdateScheduleRuns(ctx, schedule.ID, nil, &next)
	}

	if now.Before(*schedule.NextRun) {
		return nil
	}

	// Skipping, not backfilling: the next fire time is computed strictly
	// after now, so downtime never produces a thundering herd.
	next, err := NextAfter(schedule.CronExpr, schedule.Timezone, now)
	if err != nil {
		return err
	}

	if schedule.Paused {
		s.logger.Debug("paused schedule skipped",
			logging.String(logging.FieldScheduleID, schedule.ID),
			logging.Time("next_run", next),
		)
		return s.store.UpdateScheduleRuns(ctx, schedule.ID, nil, &next)
	}

	if err := s.store.UpdateScheduleRuns(ctx, schedule.ID, &now, &next); err != nil {
		return err
	}
	s.logger.Info("schedule due",
		logging.String(logging.FieldScheduleID, schedule.ID),
		logging.String("schedule_name", schedule.Name),
		logging.Time("next_run", next),
	)
	s.fire(ctx, schedule)
	return nil
}
