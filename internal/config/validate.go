package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateJellyfin(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateJellyfin() error {
	if strings.TrimSpace(c.Jellyfin.URL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/emblem/config.toml"
		}
		return fmt.Errorf("jellyfin.url is required. Edit %s (create with 'emblem config init')", defaultPath)
	}
	if c.Jellyfin.RequestTimeout <= 0 {
		return errors.New("jellyfin.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateRender() error {
	if strings.TrimSpace(c.Render.URL) == "" {
		return errors.New("render.url must be set")
	}
	if c.Render.RequestTimeout <= 0 {
		return errors.New("render.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	for name, value := range map[string]int{
		"scheduler.tick_interval":        c.Scheduler.TickInterval,
		"scheduler.job_concurrency":      c.Scheduler.JobConcurrency,
		"scheduler.item_concurrency":     c.Scheduler.ItemConcurrency,
		"scheduler.item_timeout":         c.Scheduler.ItemTimeout,
		"scheduler.error_retry_interval": c.Scheduler.ErrorRetryInterval,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}
