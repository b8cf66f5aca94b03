package main

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"towline/internal/orchestrator"
	"towline/internal/resolver"
	"towline/internal/tasks"
)

func newAddCommand(cmdCtx *commandContext) *cobra.Command {
	var destFlag string
	var policyFlag string

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			locator := args[0]
			destination := destFlag
			if destination == "" {
				name := remoteFilename(locator)
				if name == "" {
					return fmt.Errorf("cannot derive a filename from %q, pass --dest", locator)
				}
				destination = filepath.Join(cfg.Paths.DownloadDir, name)
			}

			var policy resolver.Policy
			if policyFlag != "" {
				policy, err = resolver.ParsePolicy(policyFlag)
				if err != nil {
					return err
				}
			}

			return cmdCtx.withOrchestrator(cmd.Context(), func(orch *orchestrator.Orchestrator, _ *tasks.Store) error {
				outcome, err := orch.Request(cmd.Context(), locator, destination, policy)
				if err != nil {
					return err
				}

				switch {
				case outcome.Task == nil:
					existing := outcome.Decision.Existing
					fmt.Fprintf(cmd.OutOrStdout(),
						"Possible duplicate of task %s (%s, %s match). Re-run with --policy to decide.\n",
						shortID(existing.ID), existing.State, outcome.Decision.Match)
				case outcome.Created:
					fmt.Fprintf(cmd.OutOrStdout(), "Queued task %s -> %s\n", shortID(outcome.Task.ID), outcome.Task.Destination)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "Reusing task %s (%s) -> %s\n",
						shortID(outcome.Task.ID), outcome.Task.State, outcome.Task.Destination)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&destFlag, "dest", "d", "", "Destination file path (defaults to the download dir plus the remote filename)")
	cmd.Flags().StringVarP(&policyFlag, "policy", "p", "", "Duplicate policy for this request")
	return cmd
}

// remoteFilename extracts the last path element of the locator for use as a
// default destination filename.
func remoteFilename(locator string) string {
	parsed, err := url.Parse(locator)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return ""
	}
	return name
}
