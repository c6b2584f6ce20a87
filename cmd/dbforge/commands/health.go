package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dbforge/dbforge/cmd/dbforge/handlers"
)

// Health returns the health command.
func Health() *cobra.Command {
	var opts handlers.HealthOptions

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check cluster health and repair drift",
		Long: `Health checks the live cluster against the locally recorded artifacts:
node reachability over both access paths, required services, address
consistency, data volume attachment, cluster membership, and the cloud
instance count where the provider exposes an API.

With --repair, inactive services are restarted once and drifted address
artifacts are rewritten (after a backup). Every run appends one summary
record to the deployment's health history.

Exit codes: 0 healthy, 2 issues found, 3 repair attempted but failed.

Example:
  dbforge health -d ./analytics --repair --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := handlers.Health(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if code := report.ExitCode(); code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Dir, "dir", "d", ".", "Deployment directory")
	cmd.Flags().BoolVar(&opts.Repair, "repair", false, "Repair what can be repaired")
	cmd.Flags().BoolVar(&opts.RefreshState, "refresh-state", false, "Refresh provisioning state after address repairs")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Machine-readable JSON output")

	return cmd
}
