package commands

import (
	"github.com/spf13/cobra"

	"github.com/dbforge/dbforge/cmd/dbforge/handlers"
)

// Status returns the status command.
func Status() *cobra.Command {
	var dir string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the deployment's persisted state",
		Long: `Status prints the deployment's recorded state and any operation
currently in progress. Reading the status also clears a stale lock left
behind by a crashed operation.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Status(dir, jsonOut)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Deployment directory")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output status as JSON")
	return cmd
}
