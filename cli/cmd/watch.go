// ABOUTME: Watch command for the spare-capacity CLI
// ABOUTME: Runs a live, polling TUI dashboard of slack and overcommit state

package cmd

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/markalston/spare-capacity/cli/internal/tui"
)

var (
	watchInterval time.Duration
	watchMinSlack int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch live slack and overcommit state in a terminal dashboard",
	Long: `watch polls the configured (or --fixture) snapshot source on an interval
and renders the same slack and overcommit analysis the check command runs,
as a live-updating terminal dashboard.`,
	Run: func(cmd *cobra.Command, args []string) {
		provider, err := buildProvider()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}

		app := tui.New(provider, watchInterval, watchMinSlack)
		p := tea.NewProgram(app, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Second, "Poll interval")
	watchCmd.Flags().IntVar(&watchMinSlack, "min-slack", 1, "Minimum acceptable slack, used to color the dashboard")
}
