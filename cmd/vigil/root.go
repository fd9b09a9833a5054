package main

import (
	"fmt"

	"vigil/internal/version"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root vigil command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vigil",
		Short:         "Vigil risk and crisis escalation engine",
		Long:          "vigil is the safety layer of the therapeutic conversation tool.\nIt scores risk from emotion and text signals, drives the escalation\nstate machine, and keeps an append-only audit trail.",
		Version:       fmt.Sprintf("vigil %s", version.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newLogCmd(),
		newPlanCmd(),
		newResolveCmd(),
		newReplayCmd(),
		newExportCmd(),
	)

	return cmd
}
