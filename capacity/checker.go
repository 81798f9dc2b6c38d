// ABOUTME: Worst-case host-loss analysis and overcommit detection
// ABOUTME: CapacityChecker finds the shortest chain of host losses that strands a tenant

package capacity

import (
	"sort"

	"github.com/markalston/spare-capacity/fleet"
	"github.com/markalston/spare-capacity/resources"
)

// HostFailurePath lists, in the order they would fail, the hosts whose
// simultaneous loss first creates an unplaceable tenant. Its length minus
// one is the fleet's slack: how many hosts can be lost before that happens.
type HostFailurePath struct {
	HostsCausingFailure []fleet.Node
	OffendingTenant     *fleet.Node
}

// Slack is len(HostsCausingFailure) - 1, the number of simultaneous host
// losses the fleet can absorb before this path's failure mode is reached.
func (p HostFailurePath) Slack() int { return len(p.HostsCausingFailure) - 1 }

// Checker is a CapacityChecker: a one-shot analysis over a single
// FleetSnapshot, via the same HostCapacity view the solver uses.
type Checker struct {
	hostCapacity *HostCapacity
}

// NewChecker builds a CapacityChecker over the given HostCapacity view.
func NewChecker(hostCapacity *HostCapacity) *Checker {
	return &Checker{hostCapacity: hostCapacity}
}

// FindOvercommittedHosts returns every host whose children's summed
// resources exceed the host's own on any axis. Overcommit is a reportable
// anomaly, not a precondition violation.
func (c *Checker) FindOvercommittedHosts() ([]fleet.Node, error) {
	var overcommitted []fleet.Node
	for _, h := range c.hostCapacity.Snapshot().Hosts() {
		childResources := make([]resources.Resources, 0)
		for _, child := range c.hostCapacity.ChildrenOf(h.ID) {
			childResources = append(childResources, child.Resources)
		}
		used, err := resources.Sum(childResources)
		if err != nil {
			return nil, &fleet.PreconditionError{Hostname: h.Hostname, Reason: "children resources could not be summed", Err: err}
		}
		if isOvercommitted(h.Resources, used) {
			overcommitted = append(overcommitted, h)
		}
	}
	return overcommitted, nil
}

func isOvercommitted(capacity, used resources.Resources) bool {
	return used.CPU > capacity.CPU ||
		used.Memory > capacity.Memory ||
		used.Disk > capacity.Disk ||
		used.Bandwidth > capacity.Bandwidth ||
		used.GPU > capacity.GPU
}

// simState is the mutable working state of one worst-case-path simulation:
// the notional free capacity of each not-yet-lost host, plus which tenants
// currently reside on each host. resident starts as the snapshot's static
// children and is updated as placeTenants relocates tenants during the
// simulation, so a host lost later in the chain strands whatever has
// actually accumulated on it by then, not just its original occupants.
type simState struct {
	free     map[fleet.NodeID]resources.Resources
	lost     map[fleet.NodeID]bool
	resident map[fleet.NodeID][]fleet.Node
}

func (c *Checker) newSimState() (*simState, error) {
	free := make(map[fleet.NodeID]resources.Resources)
	resident := make(map[fleet.NodeID][]fleet.Node)
	for _, h := range c.hostCapacity.Snapshot().Hosts() {
		f, err := c.hostCapacity.FreeCapacityOf(h)
		if err != nil {
			return nil, err
		}
		free[h.ID] = f
		children := c.hostCapacity.ChildrenOf(h.ID)
		cp := make([]fleet.Node, len(children))
		copy(cp, children)
		resident[h.ID] = cp
	}
	return &simState{free: free, lost: make(map[fleet.NodeID]bool), resident: resident}, nil
}

func (s *simState) clone() *simState {
	free := make(map[fleet.NodeID]resources.Resources, len(s.free))
	for k, v := range s.free {
		free[k] = v
	}
	lost := make(map[fleet.NodeID]bool, len(s.lost))
	for k, v := range s.lost {
		lost[k] = v
	}
	resident := make(map[fleet.NodeID][]fleet.Node, len(s.resident))
	for k, v := range s.resident {
		cp := make([]fleet.Node, len(v))
		copy(cp, v)
		resident[k] = cp
	}
	return &simState{free: free, lost: lost, resident: resident}
}

// remainingHosts returns the not-yet-lost hosts, ordered by descending
// free capacity then hostname (the order the checker always evaluates
// candidates in, for determinism).
func (c *Checker) remainingHosts(s *simState) []fleet.Node {
	var hosts []fleet.Node
	for _, h := range c.hostCapacity.Snapshot().Hosts() {
		if !s.lost[h.ID] {
			hosts = append(hosts, h)
		}
	}
	sort.Slice(hosts, func(i, j int) bool {
		fi, fj := capacityScore(s.free[hosts[i].ID]), capacityScore(s.free[hosts[j].ID])
		if fi != fj {
			return fi > fj
		}
		return hosts[i].Hostname < hosts[j].Hostname
	})
	return hosts
}

// placeTenants greedily places each tenant onto the remaining (not-lost)
// host with the greatest free capacity satisfying it, committing each
// placement to s.free and s.resident as it goes. It returns the first
// tenant that cannot be placed, or nil if all of them found a home.
func (c *Checker) placeTenants(tenants []fleet.Node, s *simState) *fleet.Node {
	for i := range tenants {
		tenant := tenants[i]
		best := fleet.NodeID(-1)
		var bestFree resources.Resources
		for id, free := range s.free {
			if s.lost[id] {
				continue
			}
			if !free.Satisfies(tenant.Resources) {
				continue
			}
			host, _ := c.hostCapacity.Snapshot().Node(id)
			if best == -1 {
				best, bestFree = id, free
				continue
			}
			bh, _ := c.hostCapacity.Snapshot().Node(best)
			if capacityScore(free) > capacityScore(bestFree) ||
				(capacityScore(free) == capacityScore(bestFree) && host.Hostname < bh.Hostname) {
				best, bestFree = id, free
			}
		}
		if best == -1 {
			return &tenant
		}
		s.free[best] = bestFree.Subtract(tenant.Resources)
		s.resident[best] = append(s.resident[best], tenant)
	}
	return nil
}

// trialUnplaceableCount counts how many of host's current residents would
// become unplaceable if host were lost right now, without committing the
// placement attempt to s.
func (c *Checker) trialUnplaceableCount(host fleet.Node, s *simState) int {
	trial := s.clone()
	trial.lost[host.ID] = true
	count := 0
	for _, tenant := range s.resident[host.ID] {
		if fail := c.placeTenants([]fleet.Node{tenant}, trial); fail != nil {
			count++
		}
	}
	return count
}

// worstNextHost picks the remaining host whose loss would strand the most
// tenants, tie-broken by descending total resident resource footprint then
// hostname.
func (c *Checker) worstNextHost(candidates []fleet.Node, s *simState) (fleet.Node, bool) {
	type scored struct {
		host  fleet.Node
		fails int
		size  float64
	}
	var best *scored
	for _, h := range candidates {
		size := 0.0
		for _, t := range s.resident[h.ID] {
			size += capacityScore(t.Resources)
		}
		sc := scored{host: h, fails: c.trialUnplaceableCount(h, s), size: size}
		if best == nil ||
			sc.fails > best.fails ||
			(sc.fails == best.fails && sc.size > best.size) ||
			(sc.fails == best.fails && sc.size == best.size && sc.host.Hostname < best.host.Hostname) {
			cp := sc
			best = &cp
		}
	}
	if best == nil {
		return fleet.Node{}, false
	}
	return best.host, true
}

// WorstCaseHostLossLeadingToFailure walks candidate starting hosts in
// worst-case order (descending free capacity, then hostname), simulating
// each host's removal and, if that alone doesn't strand a tenant,
// recursively losing whichever remaining host would be most damaging
// next, until an unplaceable tenant appears. It returns the shortest such
// path discovered across all starting choices, or (nil, nil) if the fleet
// can withstand the loss of every host (slack is effectively unbounded).
func (c *Checker) WorstCaseHostLossLeadingToFailure() (*HostFailurePath, error) {
	base, err := c.newSimState()
	if err != nil {
		return nil, err
	}

	var shortest *HostFailurePath
	for _, h0 := range c.remainingHosts(base) {
		path, err := c.simulateFrom(h0, base.clone())
		if err != nil {
			return nil, err
		}
		if path == nil {
			continue
		}
		if shortest == nil || len(path.HostsCausingFailure) < len(shortest.HostsCausingFailure) {
			shortest = path
		}
		if shortest != nil && len(shortest.HostsCausingFailure) == 1 {
			break // nothing can be shorter than failing on the very first host lost
		}
	}
	return shortest, nil
}

func (c *Checker) simulateFrom(h0 fleet.Node, s *simState) (*HostFailurePath, error) {
	var path []fleet.Node
	current := h0
	for {
		s.lost[current.ID] = true
		path = append(path, current)
		toPlace := s.resident[current.ID]
		failed := c.placeTenants(toPlace, s)
		if failed != nil {
			return &HostFailurePath{HostsCausingFailure: path, OffendingTenant: failed}, nil
		}

		remaining := c.remainingHosts(s)
		if len(remaining) == 0 {
			return nil, nil // lost every host without stranding anyone: unbounded slack on this branch
		}
		next, ok := c.worstNextHost(remaining, s)
		if !ok {
			return nil, nil
		}
		current = next
	}
}
