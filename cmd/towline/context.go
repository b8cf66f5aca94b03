package main

import (
	"context"
	"strings"
	"sync"

	"towline/internal/config"
	"towline/internal/engine/ariarpc"
	"towline/internal/logging"
	"towline/internal/orchestrator"
	"towline/internal/tasks"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withOrchestrator opens the store, connects the engine client, starts the
// orchestrator, runs fn, and shuts everything down again. One-shot commands
// like add and pause go through here.
func (c *commandContext) withOrchestrator(ctx context.Context, fn func(*orchestrator.Orchestrator, *tasks.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	store, err := tasks.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	eng := ariarpc.NewClient(cfg)
	orch, err := orchestrator.New(cfg, store, eng, logger)
	if err != nil {
		return err
	}
	if err := orch.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = orch.Stop(ctx) }()

	return fn(orch, store)
}

// withStore opens only the task store, for read-side commands that never
// talk to the engine.
func (c *commandContext) withStore(fn func(*tasks.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	store, err := tasks.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}
