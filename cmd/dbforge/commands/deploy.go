package commands

import (
	"github.com/spf13/cobra"

	"github.com/dbforge/dbforge/cmd/dbforge/handlers"
)

// Deploy returns the deploy command.
func Deploy() *cobra.Command {
	var dir, mode string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Provision and configure the cluster",
		Long: `Deploy provisions the cluster infrastructure and configures every node.

The command runs the provisioning tool (init, plan, apply), applies the
configuration playbook, and writes the local cluster artifacts: the
inventory, the SSH access config, and the cluster info file. Progress is
streamed live and appended to the deployment's progress journal.

Deploy requires an initialized deployment, or one whose previous deploy
failed, or one that was destroyed.

Example:
  dbforge deploy -d ./analytics --progress tui`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), dir, mode)
		},
	}

	addCommonFlags(cmd, &dir, &mode)
	return cmd
}
