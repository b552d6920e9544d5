// Command emblemd runs the badge orchestrator daemon: the cron scheduler,
// the job runner, and the HTTP API the emblem CLI talks to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"emblem/internal/config"
	"emblem/internal/cron"
	"emblem/internal/daemon"
	"emblem/internal/jellyfin"
	"emblem/internal/logging"
	"emblem/internal/render"
	"emblem/internal/runner"
	"emblem/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	library := jellyfin.NewClient(cfg, logger)
	renderer := render.NewClient(cfg, logger)

	r := runner.New(cfg, st, library, renderer, logger)
	scheduler := cron.New(cfg, st, r.FireSchedule, logger)

	d, err := daemon.New(cfg, st, r, scheduler, library, logger)
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-ctx.Done()
	logger.Info("emblemd shutting down")
	return nil
}
