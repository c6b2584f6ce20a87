package commands

import (
	"github.com/spf13/cobra"

	"github.com/dbforge/dbforge/cmd/dbforge/handlers"
)

// Init returns the init command.
func Init() *cobra.Command {
	var opts handlers.InitOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new deployment directory",
		Long: `Init creates a deployment directory holding everything one cluster needs:
the configuration file, the state file, a generated access keypair, and
the template directories the provisioning and configuration tools run
against.

Example:
  dbforge init -d ./analytics --provider aws --db-version 8.32.0 --nodes 3`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Init(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Dir, "dir", "d", ".", "Deployment directory to create")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Cluster name (defaults to the directory name)")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "Cloud provider: aws, gcp, azure, or hetzner (required)")
	cmd.Flags().StringVar(&opts.DBVersion, "db-version", "", "Database version to deploy (required)")
	cmd.Flags().StringVar(&opts.Architecture, "arch", "x86_64", "CPU architecture: x86_64 or arm64")
	cmd.Flags().IntVar(&opts.ClusterSize, "nodes", 1, "Number of cluster nodes")
	cmd.Flags().StringVar(&opts.Region, "region", "", "Provider region")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("db-version")

	return cmd
}
