// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/dbforge/dbforge/cmd/dbforge/handlers"
)

// Root returns the root command for the dbforge CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dbforge",
		Short:         "Deploy and operate database clusters across cloud providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&handlers.NoColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(Init())
	cmd.AddCommand(Deploy())
	cmd.AddCommand(Start())
	cmd.AddCommand(Stop())
	cmd.AddCommand(Health())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(Status())
	cmd.AddCommand(Version())

	return cmd
}

// addCommonFlags binds the flags every lifecycle command shares.
func addCommonFlags(cmd *cobra.Command, dir, mode *string) {
	cmd.Flags().StringVarP(dir, "dir", "d", ".", "Deployment directory")
	cmd.Flags().StringVar(mode, "progress", "text", "Progress output: text, json, or tui")
}
