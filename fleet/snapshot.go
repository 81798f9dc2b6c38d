// ABOUTME: FleetSnapshot is the immutable per-tick view of hosts and tenants
// ABOUTME: Builds index-by-hostname and index-by-parent once at construction

package fleet

import (
	"sort"
)

// FleetSnapshot is an immutable arena of Nodes, indexed by hostname and by
// parent host. It is built once at the start of a maintenance tick and
// discarded at tick end; nothing here is safe to mutate afterward.
type FleetSnapshot struct {
	nodes      []Node
	byHostname map[string]NodeID
	children   map[NodeID][]NodeID // host -> sorted tenant IDs (hostname ascending)
}

// NewSnapshot validates and indexes the given nodes, returning a
// PreconditionError if any tenant's parent is missing or is itself a
// tenant: every tenant's parent must exist and be a host. Overcommit
// (children's resources exceeding the host's) is checked separately by
// capacity.CapacityChecker: it is a reportable anomaly, not a precondition
// violation.
func NewSnapshot(nodes []Node) (*FleetSnapshot, error) {
	byHostname := make(map[string]NodeID, len(nodes))
	for _, n := range nodes {
		if err := ValidateHostname(n.Hostname); err != nil {
			return nil, &PreconditionError{Hostname: n.Hostname, Reason: "invalid hostname", Err: err}
		}
		byHostname[n.Hostname] = n.ID
	}

	isHost := make(map[NodeID]bool, len(nodes))
	for _, n := range nodes {
		if n.IsHost() {
			isHost[n.ID] = true
		}
	}

	children := make(map[NodeID][]NodeID)
	for _, n := range nodes {
		if !n.IsTenant() {
			continue
		}
		if !isHost[n.Parent] {
			return nil, &PreconditionError{
				Hostname: n.Hostname,
				Reason:   "tenant's parent is not a known host in this snapshot",
			}
		}
		children[n.Parent] = append(children[n.Parent], n.ID)
	}

	snap := &FleetSnapshot{nodes: nodes, byHostname: byHostname, children: children}

	for host, kids := range children {
		sort.Slice(kids, func(i, j int) bool {
			return snap.mustNode(kids[i]).Hostname < snap.mustNode(kids[j]).Hostname
		})
		children[host] = kids
	}

	return snap, nil
}

func (s *FleetSnapshot) mustNode(id NodeID) Node {
	return s.nodes[id]
}

// Node returns the node with the given ID and whether it exists.
func (s *FleetSnapshot) Node(id NodeID) (Node, bool) {
	if id < 0 || int(id) >= len(s.nodes) {
		return Node{}, false
	}
	return s.nodes[id], true
}

// ByHostname looks up a node by its hostname.
func (s *FleetSnapshot) ByHostname(hostname string) (Node, bool) {
	id, ok := s.byHostname[hostname]
	if !ok {
		return Node{}, false
	}
	return s.nodes[id], true
}

// Hosts returns every host in the snapshot, in hostname-ascending order.
func (s *FleetSnapshot) Hosts() []Node {
	var hosts []Node
	for _, n := range s.nodes {
		if n.IsHost() {
			hosts = append(hosts, n)
		}
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Hostname < hosts[j].Hostname })
	return hosts
}

// ChildrenOf returns the tenants currently placed on the given host, in
// hostname-ascending order.
func (s *FleetSnapshot) ChildrenOf(host NodeID) []Node {
	ids := s.children[host]
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.nodes[id])
	}
	return out
}

// All returns every node in the snapshot (hosts and tenants), in arena
// order. Used only by providers assembling diagnostics; algorithmic code
// should prefer Hosts/ChildrenOf for deterministic ordering.
func (s *FleetSnapshot) All() []Node {
	out := make([]Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}
