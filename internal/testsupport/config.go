// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"emblem/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Jellyfin.URL = "http://127.0.0.1:8096"
	cfg.Jellyfin.APIKey = "test"
	cfg.Render.URL = "http://127.0.0.1:9000"
	cfg.Scheduler.TickInterval = 1
	cfg.Scheduler.ItemTimeout = 5

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithItemConcurrency overrides the per-job worker pool size.
func WithItemConcurrency(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.ItemConcurrency = n
	}
}

// WithJobConcurrency overrides the global running-jobs ceiling.
func WithJobConcurrency(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.JobConcurrency = n
	}
}
