package main

import (
	"database/sql"
	"errors"
	"fmt"

	"vigil/pkg/store"

	"github.com/spf13/cobra"
)

// newPlanCmd creates the "vigil plan" subcommand.
func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <session-id>",
		Short: "Show a session's safety plan",
		Long:  "Displays the most recent safety plan persisted for the session.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			r, err := store.NewReader(paths.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			plan, err := r.SafetyPlan(cmd.Context(), args[0])
			if errors.Is(err, sql.ErrNoRows) {
				fmt.Fprintf(cmd.OutOrStdout(), "no safety plan for session %s\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), plan.Render())
			return nil
		},
	}
}
