package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"towline/internal/engine/ariarpc"
	"towline/internal/logging"
	"towline/internal/orchestrator"
	"towline/internal/tasks"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the orchestrator until interrupted",
		Long: "Recovers unfinished tasks, then keeps the task store reconciled " +
			"with the engine until SIGINT or SIGTERM.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire instance lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another towline instance holds %s", cfg.LockPath())
			}
			defer lock.Unlock() //nolint:errcheck

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

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := orch.Start(ctx); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "towline running, press Ctrl-C to stop")
			<-ctx.Done()
			stop()

			return orch.Stop(ctx)
		},
	}
}
