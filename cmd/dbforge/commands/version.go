package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information set from main at startup.
var (
	versionString = "dev"
	commitString  = "none"
	dateString    = "unknown"
)

// SetVersionInfo records build-time version metadata.
func SetVersionInfo(version, commit, date string) {
	versionString = version
	commitString = commit
	dateString = date
}

// Version returns the version command.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("dbforge %s (commit %s, built %s)\n", versionString, commitString, dateString)
		},
	}
}
