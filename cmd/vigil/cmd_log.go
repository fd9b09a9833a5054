package main

import (
	"fmt"

	"vigil/pkg/store"

	"github.com/spf13/cobra"
)

// logConfig holds configuration for the log command.
type logConfig struct {
	tail    int
	session string
}

// newLogCmd creates the "vigil log" subcommand.
func newLogCmd() *cobra.Command {
	var cfg logConfig

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show engine events from the audit trail",
		Long:  "Displays engine events (transitions, dispatch failures, state\ncorruption, input errors) newest-first. Optionally filter by session.",
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

			events, err := r.Events(cmd.Context(), cfg.session, cfg.tail)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no events")
				return nil
			}
			for _, e := range events {
				session := e.SessionID
				if session == "" {
					session = "-"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-18s %s  %s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Type, session, e.Detail)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&cfg.tail, "tail", "n", 50, "max events to show")
	cmd.Flags().StringVarP(&cfg.session, "session", "s", "", "filter by session id")

	return cmd
}
