package commands

import (
	"github.com/spf13/cobra"

	"github.com/dbforge/dbforge/cmd/dbforge/handlers"
)

// Destroy returns the destroy command.
func Destroy() *cobra.Command {
	var dir, mode string
	var force bool

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the cluster infrastructure",
		Long: `Destroy tears down all cluster infrastructure through the provisioning
tool and removes the local address artifacts.

The deployment directory itself survives: configuration, state file,
progress journal, and backups stay, and the directory can be deployed
again.

Unless --force is given, the command asks for the cluster name before
proceeding.

Example:
  dbforge destroy -d ./analytics

WARNING: This operation is irreversible. All cluster data will be lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), dir, mode, force)
		},
	}

	addCommonFlags(cmd, &dir, &mode)
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	return cmd
}
