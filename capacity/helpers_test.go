// ABOUTME: Shared snapshot-building helpers for capacity package tests

package capacity

import (
	"testing"

	"github.com/markalston/spare-capacity/fleet"
	"github.com/markalston/spare-capacity/resources"
)

// hostSpec/tenantSpec build a small FleetSnapshot declaratively for tests.
type hostSpec struct {
	name string
	res  resources.Resources
}

type tenantSpec struct {
	name string
	host string
	res  resources.Resources
}

func buildSnapshot(t *testing.T, hosts []hostSpec, tenants []tenantSpec) (*fleet.FleetSnapshot, map[string]fleet.NodeID) {
	t.Helper()
	ids := make(map[string]fleet.NodeID)
	var nodes []fleet.Node

	id := fleet.NodeID(0)
	for _, h := range hosts {
		ids[h.name] = id
		nodes = append(nodes, fleet.Node{ID: id, Hostname: h.name, Resources: h.res, Parent: fleet.NoParent})
		id++
	}
	for _, tn := range tenants {
		ids[tn.name] = id
		nodes = append(nodes, fleet.Node{ID: id, Hostname: tn.name, Resources: tn.res, Parent: ids[tn.host]})
		id++
	}

	snap, err := fleet.NewSnapshot(nodes)
	if err != nil {
		t.Fatalf("buildSnapshot: %v", err)
	}
	return snap, ids
}

func hostsByName(t *testing.T, snap *fleet.FleetSnapshot, ids map[string]fleet.NodeID, names ...string) []fleet.Node {
	t.Helper()
	var out []fleet.Node
	for _, n := range names {
		node, ok := snap.Node(ids[n])
		if !ok {
			t.Fatalf("host %q not found", n)
		}
		out = append(out, node)
	}
	return out
}
