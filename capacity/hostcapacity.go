// ABOUTME: Pure view over a FleetSnapshot answering free-capacity questions
// ABOUTME: No mutation; findSpareHosts and freeCapacityOf used throughout the solver and checker

package capacity

import (
	"sort"

	"github.com/markalston/spare-capacity/fleet"
	"github.com/markalston/spare-capacity/resources"
)

// HostCapacity is a pure, read-only view over a FleetSnapshot that answers
// free-capacity questions. It holds no state beyond the snapshot reference
// and is cheap to construct once per tick.
type HostCapacity struct {
	snapshot *fleet.FleetSnapshot
}

// New builds a HostCapacity view over the given snapshot.
func New(snapshot *fleet.FleetSnapshot) *HostCapacity {
	return &HostCapacity{snapshot: snapshot}
}

// Snapshot returns the underlying FleetSnapshot.
func (hc *HostCapacity) Snapshot() *fleet.FleetSnapshot { return hc.snapshot }

// ChildrenOf returns the tenants on the given host, hostname ascending.
func (hc *HostCapacity) ChildrenOf(host fleet.NodeID) []fleet.Node {
	return hc.snapshot.ChildrenOf(host)
}

// FreeCapacityOf returns the host's resources minus the sum of its
// children's resources, saturating at zero per resource axis. A
// categorical mismatch among the host's children (which would
// indicate a malformed snapshot, since children resources should never
// carry a categorical axis incompatible with one another when summed) is
// surfaced to the caller rather than silently dropped.
func (hc *HostCapacity) FreeCapacityOf(host fleet.Node) (resources.Resources, error) {
	childResources := make([]resources.Resources, 0, len(hc.snapshot.ChildrenOf(host.ID)))
	for _, child := range hc.snapshot.ChildrenOf(host.ID) {
		childResources = append(childResources, child.Resources)
	}
	used, err := resources.Sum(childResources)
	if err != nil {
		return resources.Resources{}, &fleet.PreconditionError{
			Hostname: host.Hostname,
			Reason:   "children resources could not be summed",
			Err:      err,
		}
	}
	return host.Resources.Subtract(used), nil
}

// FindSpareHosts returns up to k of the eligible hosts with the largest
// free capacity, ties broken by hostname ascending. If fewer than k
// eligible hosts exist, all of them are returned.
func (hc *HostCapacity) FindSpareHosts(eligible []fleet.Node, k int) ([]fleet.Node, error) {
	type scored struct {
		node fleet.Node
		free resources.Resources
	}
	all := make([]scored, 0, len(eligible))
	for _, h := range eligible {
		free, err := hc.FreeCapacityOf(h)
		if err != nil {
			return nil, err
		}
		all = append(all, scored{node: h, free: free})
	}

	sort.Slice(all, func(i, j int) bool {
		si, sj := capacityScore(all[i].free), capacityScore(all[j].free)
		if si != sj {
			return si > sj
		}
		return all[i].node.Hostname < all[j].node.Hostname
	})

	if k > len(all) {
		k = len(all)
	}
	out := make([]fleet.Node, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].node
	}
	return out, nil
}

// capacityScore reduces a Resources free-capacity vector to a single
// comparable magnitude for ranking spare hosts. Memory dominates the
// comparison (the scarcest axis in practice for host failover sizing),
// with CPU and disk as tiebreakers before falling back to hostname.
func capacityScore(r resources.Resources) float64 {
	return r.Memory*1e6 + r.CPU*1e3 + r.Disk
}
