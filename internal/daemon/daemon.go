package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"emblem/internal/api"
	"emblem/internal/config"
	"emblem/internal/cron"
	"emblem/internal/logging"
	"emblem/internal/runner"
	"emblem/internal/store"
)

// HealthPinger verifies an external collaborator answers at startup. A failed
// ping is reported but never blocks the daemon.
type HealthPinger interface {
	Ping(ctx context.Context) error
}

// Daemon coordinates the background services and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	runner    *runner.Runner
	scheduler *cron.Scheduler
	resolver  HealthPinger

	schedules *api.ScheduleService
	status    *api.StatusService

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	api     *apiServer
}

// New constructs a daemon with initialized dependencies. The resolver pinger
// may be nil.
func New(cfg *config.Config, st *store.Store, r *runner.Runner, scheduler *cron.Scheduler, resolver HealthPinger, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || r == nil || scheduler == nil {
		return nil, errors.New("daemon requires config, store, runner, and scheduler")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "daemon"),
		store:     st,
		runner:    r,
		scheduler: scheduler,
		resolver:  resolver,
		schedules: api.NewScheduleService(st),
		status:    api.NewStatusService(st, scheduler, r, cfg.DatabasePath(), lockPath),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, reconciles interrupted work, and brings
// up the scheduler and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another emblem daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	reconciled, err := d.store.ReconcileInterrupted(runCtx)
	if err != nil {
		d.releaseLock()
		cancel()
		return fmt.Errorf("reconcile interrupted jobs: %w", err)
	}
	if reconciled > 0 {
		d.logger.Warn("interrupted jobs failed on startup", logging.Int64("jobs", reconciled))
	}

	if d.resolver != nil {
		if err := d.resolver.Ping(runCtx); err != nil {
			d.logger.Warn("library source not reachable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check jellyfin.url and jellyfin.api_key"),
			)
		}
	}

	if err := d.scheduler.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.scheduler.Stop()
		d.releaseLock()
		cancel()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("emblem daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts services down in dependency order: no new cron fires, then no
// new API-triggered jobs, then drain the runner.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.Stop()
	d.api.stop()
	d.runner.Stop()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("emblem daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the bound API listener address, empty before Start.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
