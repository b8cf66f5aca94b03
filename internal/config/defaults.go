package config

const (
	defaultDownloadDir         = "~/downloads"
	defaultStateDir            = "~/.local/share/towline"
	defaultLogDir              = "~/.local/share/towline/logs"
	defaultRPCURL              = "http://127.0.0.1:6800/jsonrpc"
	defaultRequestTimeout      = 10
	defaultPolicy              = "always_reuse"
	defaultFuzzyThreshold      = 0.85
	defaultReconcileInterval   = 1
	defaultCheckpointInterval  = 5
	defaultRecoveryParallelism = 4
	defaultShutdownGrace       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		Engine: Engine{
			RPCURL:         defaultRPCURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Dedup: Dedup{
			DefaultPolicy:  defaultPolicy,
			FuzzyThreshold: defaultFuzzyThreshold,
		},
		Workflow: Workflow{
			ReconcileInterval:   defaultReconcileInterval,
			CheckpointInterval:  defaultCheckpointInterval,
			RecoveryParallelism: defaultRecoveryParallelism,
			ShutdownGrace:       defaultShutdownGrace,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
