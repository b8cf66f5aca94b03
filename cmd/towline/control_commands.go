package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"towline/internal/orchestrator"
	"towline/internal/tasks"
)

func newPauseCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <task-id>",
		Short: "Pause a download",
		Args:  cobra.ExactArgs(1),
		RunE:  controlRunE(cmdCtx, "Paused", (*orchestrator.Orchestrator).Pause),
	}
}

func newResumeCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <task-id>",
		Short: "Resume a paused or failed download",
		Args:  cobra.ExactArgs(1),
		RunE:  controlRunE(cmdCtx, "Resumed", (*orchestrator.Orchestrator).Resume),
	}
}

func newCancelCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a download and forget the task",
		Args:  cobra.ExactArgs(1),
		RunE:  controlRunE(cmdCtx, "Cancelled", (*orchestrator.Orchestrator).Cancel),
	}
}

func controlRunE(cmdCtx *commandContext, verb string, action func(*orchestrator.Orchestrator, context.Context, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return cmdCtx.withOrchestrator(cmd.Context(), func(orch *orchestrator.Orchestrator, store *tasks.Store) error {
			taskID, err := resolveTaskID(cmd, store, args[0])
			if err != nil {
				return err
			}
			if err := action(orch, cmd.Context(), taskID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, shortID(taskID))
			return nil
		})
	}
}

// resolveTaskID accepts either a full task id or a unique prefix.
func resolveTaskID(cmd *cobra.Command, store *tasks.Store, ref string) (string, error) {
	task, err := store.GetByID(cmd.Context(), ref)
	if err != nil {
		return "", err
	}
	if task != nil {
		return task.ID, nil
	}

	matches, err := findByPrefix(cmd, store, ref)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0].ID, nil
	default:
		return "", fmt.Errorf("%q is ambiguous, matches %d tasks", ref, len(matches))
	}
}
