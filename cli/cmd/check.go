// ABOUTME: Check command for the spare-capacity CLI
// ABOUTME: Runs one capacity check and exits non-zero if a threshold is exceeded

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markalston/spare-capacity/capacity"
)

var (
	minSlack        int
	allowOvercommit bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one capacity check and report pass or fail",
	Long: `check fetches a single fleet snapshot, computes the worst-case host-loss
slack and any overcommitted hosts, and exits non-zero if either is outside
the configured thresholds.

Exit codes:
  0 - slack and overcommit are within thresholds
  1 - slack is below --min-slack, or an overcommitted host was found and
      --allow-overcommit was not set
  2 - error (snapshot fetch failure, invalid fixture, etc.)`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		os.Exit(runCheck(ctx, os.Stdout))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().IntVar(&minSlack, "min-slack", 1, "Minimum acceptable worst-case-host-loss slack")
	checkCmd.Flags().BoolVar(&allowOvercommit, "allow-overcommit", false, "Do not fail the check when a host is overcommitted")
}

type checkOutcome struct {
	Slack           int                         `json:"slack"`
	Unbounded       bool                        `json:"unbounded"`
	OffendingTenant string                      `json:"offendingTenant,omitempty"`
	Overcommitted   []capacity.OvercommitReport `json:"overcommitted,omitempty"`
	Passed          bool                        `json:"passed"`
}

func runCheck(ctx context.Context, w io.Writer) int {
	provider, err := buildProvider()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	snap, err := provider.Snapshot(ctx)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	hc := capacity.New(snap)
	checker := capacity.NewChecker(hc)

	overcommitted, err := checker.ReportOvercommittedHosts()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	failurePath, err := checker.WorstCaseHostLossLeadingToFailure()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	outcome := checkOutcome{Overcommitted: overcommitted}
	if failurePath == nil {
		outcome.Unbounded = true
	} else {
		outcome.Slack = failurePath.Slack()
		if failurePath.OffendingTenant != nil {
			outcome.OffendingTenant = failurePath.OffendingTenant.Hostname
		}
	}

	slackOK := outcome.Unbounded || outcome.Slack >= minSlack
	overcommitOK := allowOvercommit || len(outcome.Overcommitted) == 0
	outcome.Passed = slackOK && overcommitOK

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(outcome, "", "  ")
		fmt.Fprintln(w, string(data))
	} else {
		fmt.Fprintln(w, formatCheckHuman(outcome))
	}

	if !outcome.Passed {
		return 1
	}
	return 0
}

func formatCheckHuman(o checkOutcome) string {
	var out string
	if o.Unbounded {
		out += "✓ slack: unbounded (no host loss can strand a tenant)\n"
	} else {
		symbol := "✓"
		if o.Slack < minSlack {
			symbol = "✗"
		}
		out += fmt.Sprintf("%s slack: %d (threshold: %d)\n", symbol, o.Slack, minSlack)
		if o.OffendingTenant != "" {
			out += fmt.Sprintf("  offending tenant: %s\n", o.OffendingTenant)
		}
	}

	if len(o.Overcommitted) == 0 {
		out += "✓ no overcommitted hosts\n"
	} else {
		symbol := "✓"
		if !allowOvercommit {
			symbol = "✗"
		}
		out += fmt.Sprintf("%s %d overcommitted host(s):\n", symbol, len(o.Overcommitted))
		for _, r := range o.Overcommitted {
			worst, _ := r.Worst()
			out += fmt.Sprintf("    %s: %s over by %.1f\n", r.Host.Hostname, worst.Axis, worst.Overshoot())
		}
	}

	if o.Passed {
		out += "PASSED"
	} else {
		out += "FAILED"
	}
	return out
}
