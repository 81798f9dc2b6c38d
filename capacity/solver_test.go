// ABOUTME: Tests for CapacitySolver eviction-chain search
// ABOUTME: Covers direct fit, single/two-step eviction chains, and categorical infeasibility

package capacity

import (
	"testing"

	"github.com/markalston/spare-capacity/fleet"
	"github.com/markalston/spare-capacity/resources"
)

// Tight fit, reachable by one move.
func TestSolverSingleMoveEviction(t *testing.T) {
	big := resources.Resources{CPU: 8, Memory: 16}
	half := resources.Resources{CPU: 4, Memory: 8}

	snap, ids := buildSnapshot(t,
		[]hostSpec{{"h1", big}, {"h2", big}, {"h3", big}},
		[]tenantSpec{
			{"t1", "h1", half}, {"t2", "h1", half},
			{"t3", "h2", half},
			{"t4", "h3", half},
		},
	)
	hc := New(snap)
	solver := NewSolver(hc, 10_000, 5, 31)

	offending := fleet.Node{ID: 99, Hostname: "new", Resources: resources.Resources{CPU: 8, Memory: 16}}
	target, _ := snap.ByHostname("h2")
	hosts := hostsByName(t, snap, ids, "h1", "h2", "h3")

	moves, err := solver.MakeRoomFor(offending, target, hosts, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(moves) != 1 {
		t.Fatalf("expected a single-move mitigation, got %v", moves)
	}
	if moves[0].FromHost != ids["h2"] {
		t.Errorf("expected eviction from h2, got move %+v", moves[0])
	}
}

// Two-step eviction: three hosts each 10/20,
// h1:{6/10,4/10}, h2:{4/10}, h3:{6/10}, offending tenant needs 10/20.
// Both of h1's tenants must leave (a to h2, b to h3): a 2-move plan.
func TestSolverTwoStepEviction(t *testing.T) {
	cap10 := resources.Resources{CPU: 10, Memory: 20}
	snap, ids := buildSnapshot(t,
		[]hostSpec{{"h1", cap10}, {"h2", cap10}, {"h3", cap10}},
		[]tenantSpec{
			{"a", "h1", resources.Resources{CPU: 6, Memory: 10}},
			{"b", "h1", resources.Resources{CPU: 4, Memory: 10}},
			{"c", "h2", resources.Resources{CPU: 4, Memory: 10}},
			{"d", "h3", resources.Resources{CPU: 6, Memory: 10}},
		},
	)
	hc := New(snap)
	solver := NewSolver(hc, 10_000, 5, 31)

	offending := fleet.Node{ID: 99, Hostname: "new", Resources: resources.Resources{CPU: 10, Memory: 20}}
	target, _ := snap.ByHostname("h1")
	hosts := hostsByName(t, snap, ids, "h1", "h2", "h3")

	moves, err := solver.MakeRoomFor(offending, target, hosts, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("expected a 2-move mitigation, got %d: %v", len(moves), moves)
	}
}

// A categorical mismatch makes the tenant unplaceable without even
// entering the eviction search.
func TestSolverCategoricalMismatchShortCircuits(t *testing.T) {
	slowHost := resources.Resources{CPU: 8, Memory: 16, DiskSpeed: resources.DiskSpeedSlow}
	snap, ids := buildSnapshot(t,
		[]hostSpec{{"h1", slowHost}},
		nil,
	)
	hc := New(snap)
	solver := NewSolver(hc, 10_000, 5, 31)

	offending := fleet.Node{ID: 99, Hostname: "new", Resources: resources.Resources{CPU: 4, Memory: 8, DiskSpeed: resources.DiskSpeedFast}}
	target, _ := snap.ByHostname("h1")
	hosts := hostsByName(t, snap, ids, "h1")

	moves, err := solver.MakeRoomFor(offending, target, hosts, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moves != nil {
		t.Fatalf("expected nil (no possible mitigation), got %v", moves)
	}
	if solver.Iterations() != 1 {
		t.Errorf("expected the feasibility gate to short-circuit after 1 iteration, got %d", solver.Iterations())
	}
}

// P3: no-op move plan when capacity already sufficient.
func TestSolverNoOpWhenAlreadyFits(t *testing.T) {
	snap, ids := buildSnapshot(t,
		[]hostSpec{{"h1", resources.Resources{CPU: 8, Memory: 16}}},
		nil,
	)
	hc := New(snap)
	solver := NewSolver(hc, 10_000, 5, 31)

	tenant := fleet.Node{ID: 99, Hostname: "t", Resources: resources.Resources{CPU: 2, Memory: 4}}
	target, _ := snap.ByHostname("h1")
	hosts := hostsByName(t, snap, ids, "h1")

	moves, err := solver.MakeRoomFor(tenant, target, hosts, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(moves) != 0 {
		t.Fatalf("expected an empty plan, got %v", moves)
	}
}

// P6: the solver never exceeds its iteration budget.
func TestSolverRespectsBudget(t *testing.T) {
	// A fleet engineered to exhaust a tiny budget: many same-sized hosts
	// and tenants so the eviction search has plenty of subsets to try.
	var hosts []hostSpec
	var tenants []tenantSpec
	cap4 := resources.Resources{CPU: 4, Memory: 8}
	for i := 0; i < 8; i++ {
		name := string(rune('a' + i))
		hosts = append(hosts, hostSpec{"h" + name, cap4})
		for j := 0; j < 3; j++ {
			tenants = append(tenants, tenantSpec{"t" + name + string(rune('0'+j)), "h" + name, resources.Resources{CPU: 1, Memory: 2}})
		}
	}
	snap, ids := buildSnapshot(t, hosts, tenants)
	hc := New(snap)
	solver := NewSolver(hc, 5, 5, 31) // tiny budget

	offending := fleet.Node{ID: 999, Hostname: "new", Resources: resources.Resources{CPU: 4, Memory: 8}}
	target, _ := snap.ByHostname("ha")
	var allHosts []fleet.Node
	for _, h := range hosts {
		allHosts = append(allHosts, hostsByName(t, snap, ids, h.name)...)
	}

	_, err := solver.MakeRoomFor(offending, target, allHosts, nil, nil)
	if err == nil {
		return // found a cheap solution before the budget ran out; also acceptable
	}
	if _, ok := err.(*BudgetExhaustedError); !ok {
		t.Fatalf("expected a *BudgetExhaustedError, got %T: %v", err, err)
	}
	if solver.Iterations() > 6 { // budget of 5 plus the one that trips it
		t.Errorf("solver ran %d iterations past a budget of 5", solver.Iterations())
	}
}

// P5: no tenant appears more than once as the moved tenant in one plan.
func TestSolverCycleFreedom(t *testing.T) {
	cap10 := resources.Resources{CPU: 10, Memory: 20}
	snap, ids := buildSnapshot(t,
		[]hostSpec{{"h1", cap10}, {"h2", cap10}, {"h3", cap10}},
		[]tenantSpec{
			{"a", "h1", resources.Resources{CPU: 6, Memory: 10}},
			{"b", "h1", resources.Resources{CPU: 4, Memory: 10}},
			{"c", "h2", resources.Resources{CPU: 8, Memory: 16}},
			{"d", "h3", resources.Resources{CPU: 8, Memory: 16}},
		},
	)
	hc := New(snap)
	solver := NewSolver(hc, 10_000, 5, 31)

	offending := fleet.Node{ID: 99, Hostname: "new", Resources: resources.Resources{CPU: 10, Memory: 20}}
	target, _ := snap.ByHostname("h1")
	hosts := hostsByName(t, snap, ids, "h1", "h2", "h3")

	moves, err := solver.MakeRoomFor(offending, target, hosts, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[fleet.NodeID]bool)
	for _, m := range moves {
		if seen[m.Tenant] {
			t.Fatalf("tenant %d moved more than once in %v", m.Tenant, moves)
		}
		seen[m.Tenant] = true
	}
}
