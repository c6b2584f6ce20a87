package commands

import (
	"github.com/spf13/cobra"

	"github.com/dbforge/dbforge/cmd/dbforge/handlers"
)

// Start returns the start command.
func Start() *cobra.Command {
	var dir, mode string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Power a stopped cluster back on",
		Long: `Start powers the cluster nodes back on and waits until every node is
reachable again.

Providers with native power control (aws, hetzner) are driven through
their API; the others get a targeted provisioning apply that only flips
the power state.

Example:
  dbforge start -d ./analytics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Start(cmd.Context(), dir, mode)
		},
	}

	addCommonFlags(cmd, &dir, &mode)
	return cmd
}

// Stop returns the stop command.
func Stop() *cobra.Command {
	var dir, mode string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Power the cluster down without destroying it",
		Long: `Stop powers the cluster nodes down. Infrastructure and data volumes
survive; start brings the cluster back.

Example:
  dbforge stop -d ./analytics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Stop(cmd.Context(), dir, mode)
		},
	}

	addCommonFlags(cmd, &dir, &mode)
	return cmd
}
