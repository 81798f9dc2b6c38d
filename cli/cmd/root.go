// ABOUTME: Root command for the spare-capacity CLI
// ABOUTME: Handles global flags shared by check, plan and watch

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	jsonOutput  bool
	fixturePath string
)

var rootCmd = &cobra.Command{
	Use:   "spare-capacity",
	Short: "CLI for the spare capacity maintainer",
	Long: `spare-capacity is a command-line interface for the spare capacity
maintainer control loop.

It lets an operator run a one-shot capacity check for a CI/CD pipeline,
watch the live slack and overcommit state of a fleet, or ask the solver
to explain how it would make room for a specific tenant.

Configuration is read the same way the daemon reads it: from the process
environment (see the daemon's config package), optionally overridden by
the --fixture flag for working against a local snapshot file.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&fixturePath, "fixture", "", "Read fleet state from a local JSON fixture instead of the configured snapshot source")
}

// IsJSONOutput returns whether JSON output was requested.
func IsJSONOutput() bool {
	return jsonOutput
}
