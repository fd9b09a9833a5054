package main

import (
	"fmt"
	"text/tabwriter"

	"vigil/pkg/store"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the "vigil status" subcommand.
func newStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status [session-id]",
		Short: "Show session state from the audit trail",
		Long:  "Without arguments, lists recent sessions with their escalation\nlevels. With a session-id, shows that session's monitoring summary:\npeak and average risk, intervention count, and recent trend.",
		Args:  cobra.MaximumNArgs(1),
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

			if len(args) == 1 {
				return printSummary(cmd, r, args[0])
			}
			return printSessions(cmd, r, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max sessions to list")

	return cmd
}

func printSessions(cmd *cobra.Command, r *store.Reader, limit int) error {
	sessions, err := r.Sessions(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTATUS\tLEVEL\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d (%s)\t%s\n",
			s.ID, s.Status, int(s.Level), s.Level, s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func printSummary(cmd *cobra.Command, r *store.Reader, sessionID string) error {
	s, err := r.SessionSummary(cmd.Context(), sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session:        %s (%s)\n", s.SessionID, s.Status)
	fmt.Fprintf(out, "current level:  %d (%s)\n", int(s.CurrentLevel), s.CurrentLevel)
	fmt.Fprintf(out, "max level:      %d (%s)\n", int(s.MaxLevel), s.MaxLevel)
	fmt.Fprintf(out, "avg score:      %.1f over %d assessments\n", s.AvgScore, s.AssessmentCount)
	fmt.Fprintf(out, "interventions:  %d\n", s.InterventionCount)
	fmt.Fprintf(out, "trend:          %s\n", s.Trend)
	return nil
}
