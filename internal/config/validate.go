package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateDedup(); err != nil {
		return err
	}
	return c.validateWorkflow()
}

func (c *Config) validatePaths() error {
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.RPCURL == "" {
		return errors.New("engine.rpc_url must be set")
	}
	parsed, err := url.Parse(c.Engine.RPCURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("engine.rpc_url %q is not a valid URL", c.Engine.RPCURL)
	}
	if c.Engine.RequestTimeout <= 0 {
		return errors.New("engine.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateDedup() error {
	switch c.Dedup.DefaultPolicy {
	case "always_reuse", "never_reuse", "reuse_if_complete", "reuse_if_incomplete", "prompt_caller", "reject_on_duplicate":
	default:
		return fmt.Errorf("dedup.default_policy %q is not a known policy", c.Dedup.DefaultPolicy)
	}
	if c.Dedup.FuzzyThreshold <= 0 || c.Dedup.FuzzyThreshold > 1 {
		return errors.New("dedup.fuzzy_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.reconcile_interval":   c.Workflow.ReconcileInterval,
		"workflow.checkpoint_interval":  c.Workflow.CheckpointInterval,
		"workflow.recovery_parallelism": c.Workflow.RecoveryParallelism,
		"workflow.shutdown_grace":       c.Workflow.ShutdownGrace,
	}); err != nil {
		return err
	}
	if c.Workflow.CheckpointInterval < c.Workflow.ReconcileInterval {
		return errors.New("workflow.checkpoint_interval must not be shorter than workflow.reconcile_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
