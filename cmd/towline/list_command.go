package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"towline/internal/tasks"
)

func newListCommand(cmdCtx *commandContext) *cobra.Command {
	var stateFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List download tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter []tasks.State
			if stateFlag != "" {
				state, ok := tasks.ParseState(stateFlag)
				if !ok {
					return fmt.Errorf("unknown state %q", stateFlag)
				}
				filter = append(filter, state)
			}

			return cmdCtx.withStore(func(store *tasks.Store) error {
				items, err := store.List(cmd.Context(), filter...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, task := range items {
					rows = append(rows, []string{
						shortID(task.ID),
						string(task.State),
						filepath.Base(task.Destination),
						formatProgress(task),
						task.FailureReason,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"id", "state", "file", "progress", "reason"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&stateFlag, "state", "s", "", "Only show tasks in this state")
	return cmd
}

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show queue totals or one task in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(store *tasks.Store) error {
				if len(args) == 1 {
					return printTaskDetail(cmd, store, args[0])
				}

				stats, err := store.CollectStats(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(stats))
				for _, state := range tasks.AllStates() {
					if count := stats[state]; count > 0 {
						rows = append(rows, []string{string(state), fmt.Sprintf("%d", count)})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"state", "count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				fmt.Fprintf(cmd.OutOrStdout(), "%d unfinished\n", stats.Unfinished())
				return nil
			})
		},
	}
}

func printTaskDetail(cmd *cobra.Command, store *tasks.Store, id string) error {
	task, err := store.GetByID(cmd.Context(), id)
	if err != nil {
		return err
	}
	if task == nil {
		candidates, err := findByPrefix(cmd, store, id)
		if err != nil {
			return err
		}
		switch len(candidates) {
		case 0:
			return fmt.Errorf("no task matches %q", id)
		case 1:
			task = candidates[0]
		default:
			return fmt.Errorf("%q is ambiguous, matches %d tasks", id, len(candidates))
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task:        %s\n", task.ID)
	fmt.Fprintf(out, "Source:      %s\n", task.SourceLocator)
	fmt.Fprintf(out, "Destination: %s\n", task.Destination)
	fmt.Fprintf(out, "Fingerprint: %s\n", task.Fingerprint)
	fmt.Fprintf(out, "State:       %s\n", task.State)
	fmt.Fprintf(out, "Progress:    %s\n", formatProgress(task))
	if task.FailureReason != "" {
		fmt.Fprintf(out, "Reason:      %s\n", task.FailureReason)
	}
	if task.DuplicateOf != "" {
		fmt.Fprintf(out, "Duplicate of: %s\n", task.DuplicateOf)
	}
	fmt.Fprintf(out, "Created:     %s\n", task.CreatedAt.Local())
	fmt.Fprintf(out, "Updated:     %s\n", task.UpdatedAt.Local())
	if task.LastVerifiedAt != nil {
		fmt.Fprintf(out, "Verified:    %s\n", task.LastVerifiedAt.Local())
	}
	return nil
}

// findByPrefix lets users address tasks by a shortened id.
func findByPrefix(cmd *cobra.Command, store *tasks.Store, prefix string) ([]*tasks.Task, error) {
	all, err := store.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	var matches []*tasks.Task
	for _, task := range all {
		if len(prefix) <= len(task.ID) && task.ID[:len(prefix)] == prefix {
			matches = append(matches, task)
		}
	}
	return matches, nil
}
