// ABOUTME: Node, host and tenant types for the fleet arena
// ABOUTME: Hosts and tenants are both Nodes distinguished by having no/some parent

package fleet

import "github.com/markalston/spare-capacity/resources"

// NodeID indexes a Node within a FleetSnapshot's arena. Using a small
// integer rather than a pointer or hostname string keeps SolutionKey (a
// hash-map key built from sequences of these) cheap to hash and compare,
// and keeps the snapshot a flat, cycle-free structure.
type NodeID int32

// NoParent marks a Node with no parent host, i.e. a host itself.
const NoParent NodeID = -1

// State is the lifecycle state of a node.
type State int

const (
	StateActive State = iota
	StateReserved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateReserved:
		return "reserved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Allocation describes the tenant-specific half of a Node: which owner it
// belongs to, and whether it is in the process of being moved off (retired
// members are treated as "move already in progress" by the maintainer).
type Allocation struct {
	Owner   string
	Retired bool
}

// Node is either a host (Parent == NoParent) or a tenant (Parent names the
// host it is placed on). Nodes are immutable once built into a FleetSnapshot.
type Node struct {
	ID        NodeID
	Hostname  string
	Resources resources.Resources
	Parent    NodeID
	Alloc     Allocation
	State     State
}

// IsHost reports whether this node is a host (has no parent).
func (n Node) IsHost() bool { return n.Parent == NoParent }

// IsTenant reports whether this node is a tenant (placed on a host).
func (n Node) IsTenant() bool { return n.Parent != NoParent }
