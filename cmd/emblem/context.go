package main

import (
	"fmt"
	"strings"
	"sync"

	"emblem/internal/api"
	"emblem/internal/config"
)

type commandContext struct {
	bindFlag   *string
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(bindFlag, configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		bindFlag:   bindFlag,
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) apiBind() string {
	if c.bindFlag != nil && strings.TrimSpace(*c.bindFlag) != "" {
		return strings.TrimSpace(*c.bindFlag)
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		return cfg.Paths.APIBind
	}
	return config.Default().Paths.APIBind
}

// withClient runs fn against the daemon API and rewrites connection failures
// into an actionable message.
func (c *commandContext) withClient(fn func(*api.Client) error) error {
	bind := c.apiBind()
	client, err := api.NewClient(bind)
	if err != nil {
		return fmt.Errorf("daemon address %q: %w", bind, err)
	}
	if err := fn(client); err != nil {
		if api.IsDaemonUnavailable(err) {
			return fmt.Errorf("daemon not reachable at %s; start it with `emblemd`", bind)
		}
		return err
	}
	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
