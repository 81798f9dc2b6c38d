// ABOUTME: Entry point for the spare-capacity CLI
// ABOUTME: Command-line tool for capacity monitoring and CI/CD integration

package main

import (
	"fmt"
	"os"

	"github.com/markalston/spare-capacity/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
