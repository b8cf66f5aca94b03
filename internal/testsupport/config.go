package testsupport

import (
	"path/filepath"
	"testing"

	"towline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Engine.RPCURL = "http://127.0.0.1:0/jsonrpc"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithPolicy overrides the default duplicate policy on the test config.
func WithPolicy(policy string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Dedup.DefaultPolicy = policy
	}
}

// WithRPCURL points the engine client at the provided endpoint.
func WithRPCURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Engine.RPCURL = url
	}
}
