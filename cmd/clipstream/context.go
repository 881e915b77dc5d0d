package main

import (
	"fmt"

	"clipstream/internal/config"
	"clipstream/internal/embedding"
	"clipstream/internal/queue"
)

// commandContext lazily loads configuration and opens store handles shared by
// subcommands.
type commandContext struct {
	configFlag *string
	cfg        *config.Config
	configPath string
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolvedPath, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.configPath = resolvedPath
	return cfg, nil
}

func (c *commandContext) openStore() (*queue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	return store, nil
}

func (c *commandContext) openEmbeddings() (*embedding.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := embedding.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open embedding store: %w", err)
	}
	return store, nil
}
