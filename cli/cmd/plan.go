// ABOUTME: Plan command for the spare-capacity CLI
// ABOUTME: Runs the solver standalone against a named tenant and explains the result

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/markalston/spare-capacity/capacity"
	"github.com/markalston/spare-capacity/fleet"
	"github.com/markalston/spare-capacity/maintain"
)

var (
	planTenant             string
	planMaxIterations      int
	planMaxSubsetSize      int
	planMaxConsideredNodes int
	planExplain            bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Ask the solver how it would make room for a tenant",
	Long: `plan fetches a single fleet snapshot and runs the solver against the
named tenant as if it were the offending tenant in a host-loss scenario,
printing the shortest eviction chain the solver finds (or reporting that
none exists within budget).

With --explain, also prints the chain the solver found against every
spare host it tried, not just the winner, so an operator can see why one
candidate lost out to another.`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runPlan(context.Background(), os.Stdout))
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVar(&planTenant, "tenant", "", "Hostname of the tenant to plan a move for (required)")
	planCmd.Flags().IntVar(&planMaxIterations, "max-iterations", maintain.DefaultConfig().MaxIterations, "Solver iteration budget")
	planCmd.Flags().IntVar(&planMaxSubsetSize, "max-subset-size", maintain.DefaultConfig().MaxEvictionSubsetSize, "Largest co-tenant subset the solver may disturb in one step")
	planCmd.Flags().IntVar(&planMaxConsideredNodes, "max-considered-nodes", maintain.DefaultConfig().MaxConsideredNodes, "Cap on how many of a host's co-tenants are handed to subset enumeration")
	planCmd.Flags().BoolVar(&planExplain, "explain", false, "Show the chain considered against every candidate spare host, not just the winner")
	planCmd.MarkFlagRequired("tenant")
}

// candidateResult is what the solver found (or didn't) against one spare
// host.
type candidateResult struct {
	SpareHost string       `json:"spareHost"`
	Moves     []fleet.Move `json:"moves,omitempty"`
	Error     string       `json:"error,omitempty"`
}

type planOutcome struct {
	Tenant     string            `json:"tenant"`
	Found      bool              `json:"found"`
	Moves      []fleet.Move      `json:"moves,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Candidates []candidateResult `json:"candidates,omitempty"`
}

func runPlan(ctx context.Context, w io.Writer) int {
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

	tenant, ok := snap.ByHostname(planTenant)
	if !ok {
		fmt.Fprintf(w, "Error: no such tenant %q in the fleet\n", planTenant)
		return 2
	}

	hc := capacity.New(snap)
	allHosts := snap.Hosts()

	var eligible []fleet.Node
	for _, h := range allHosts {
		if h.Resources.Satisfies(tenant.Resources) {
			eligible = append(eligible, h)
		}
	}
	spares, err := hc.FindSpareHosts(eligible, 2)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	spareIDs := make(map[fleet.NodeID]bool, len(spares))
	for _, s := range spares {
		spareIDs[s.ID] = true
	}
	var candidateHosts []fleet.Node
	for _, h := range allHosts {
		if !spareIDs[h.ID] {
			candidateHosts = append(candidateHosts, h)
		}
	}

	var shortest []fleet.Move
	var candidates []candidateResult
	for _, spare := range spares {
		solver := capacity.NewSolver(hc, planMaxIterations, planMaxSubsetSize, planMaxConsideredNodes)
		moves, err := solver.MakeRoomFor(tenant, spare, candidateHosts, nil, nil)
		cr := candidateResult{SpareHost: spare.Hostname}
		if err != nil {
			cr.Error = err.Error()
		} else {
			cr.Moves = moves
			if moves != nil && (shortest == nil || len(moves) < len(shortest)) {
				shortest = moves
			}
		}
		candidates = append(candidates, cr)
	}

	outcome := planOutcome{Tenant: planTenant, Found: shortest != nil, Moves: shortest}
	if planExplain {
		outcome.Candidates = candidates
	}
	if !outcome.Found {
		outcome.Reason = "no eviction chain found within budget across the two best spare hosts"
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(outcome, "", "  ")
		fmt.Fprintln(w, string(data))
	} else {
		fmt.Fprintln(w, formatPlanHuman(outcome, snap))
	}

	if !outcome.Found {
		return 1
	}
	return 0
}

func formatPlanHuman(o planOutcome, snap *fleet.FleetSnapshot) string {
	var out string
	if !o.Found {
		out = fmt.Sprintf("No mitigation found for %s: %s", o.Tenant, o.Reason)
	} else {
		out = fmt.Sprintf("Mitigation for %s (%d move(s)):\n", o.Tenant, len(o.Moves))
		for i, mv := range o.Moves {
			out += fmt.Sprintf("  %d. %s\n", i+1, describeMove(mv, snap))
		}
	}

	if len(o.Candidates) > 0 {
		out += "\nCandidates considered:\n"
		for _, c := range o.Candidates {
			switch {
			case c.Error != "":
				out += fmt.Sprintf("  %s: %s\n", c.SpareHost, c.Error)
			case c.Moves == nil:
				out += fmt.Sprintf("  %s: no chain found\n", c.SpareHost)
			default:
				out += fmt.Sprintf("  %s: %d move(s)\n", c.SpareHost, len(c.Moves))
				for _, mv := range c.Moves {
					out += fmt.Sprintf("    - %s\n", describeMove(mv, snap))
				}
			}
		}
	}
	return out
}

func describeMove(mv fleet.Move, snap *fleet.FleetSnapshot) string {
	tenant, _ := snap.Node(mv.Tenant)
	from, _ := snap.Node(mv.FromHost)
	to, _ := snap.Node(mv.ToHost)
	return fmt.Sprintf("move %s from %s to %s", tenant.Hostname, from.Hostname, to.Hostname)
}
