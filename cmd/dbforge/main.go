// Package main is the entry point for the dbforge CLI.
//
// dbforge drives the full lifecycle of a database cluster across cloud
// providers: init, deploy, start, stop, health, destroy. It shells out to
// the provisioning and configuration tools and turns their output into
// live progress telemetry.
//
// For detailed usage information, run:
//
//	dbforge --help
package main

import (
	"fmt"
	"os"

	"github.com/dbforge/dbforge/cmd/dbforge/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
