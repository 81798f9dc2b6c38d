// ABOUTME: Memoised recursive search for the shortest tenant-relocation chain
// ABOUTME: The heart of the system: makeRoomFor and its move-set/move-one sub-procedures

package capacity

import (
	"fmt"
	"strings"

	"github.com/markalston/spare-capacity/fleet"
	"github.com/markalston/spare-capacity/resources"
)

// BudgetExhaustedError is returned (wrapped by callers) when the solver's
// iteration budget is spent before a solution, or its absence, could be
// established. Callers treat this as "no mitigation found", not a crash:
// the maintainer reports spareHostCapacity = 0 and dispatches nothing.
type BudgetExhaustedError struct {
	MaxIterations int
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("solver exceeded its budget of %d iterations", e.MaxIterations)
}

// solutionKey is the memo table key: (tenant, targetHost, movesConsidered,
// movesMade), all four fields significant, with the two move sequences
// order-sensitive. Go map keys must be comparable, so the order-sensitive
// move sequences are folded into strings rather than kept as slices; this
// is exactly as structural as comparing the slices element-by-element
// would be, just pre-flattened.
type solutionKey struct {
	tenant     fleet.NodeID
	host       fleet.NodeID
	considered string
	made       string
}

func encodeMoves(moves []fleet.Move) string {
	var b strings.Builder
	for _, m := range moves {
		fmt.Fprintf(&b, "%d>%d>%d|", m.Tenant, m.FromHost, m.ToHost)
	}
	return b.String()
}

func newSolutionKey(tenant, host fleet.NodeID, considered, made []fleet.Move) solutionKey {
	return solutionKey{
		tenant:     tenant,
		host:       host,
		considered: encodeMoves(considered),
		made:       encodeMoves(made),
	}
}

// memoEntry distinguishes "not yet computed" (absent from the map) from a
// computed-and-cached "no solution exists" (present, found=false): both
// states must be memoised, since re-deriving "no solution" is exactly as
// expensive as deriving one.
type memoEntry struct {
	found bool
	moves []fleet.Move
}

// Solver is a CapacitySolver: a memoised, iteration-budgeted recursive
// search owned by a single top-level MakeRoomFor call. It is not safe for
// concurrent use and is discarded after that call returns: instance-local
// state needs no locking when nothing else can reach it.
type Solver struct {
	hostCapacity       *HostCapacity
	maxIterations      int
	maxSubsetSize      int
	maxConsideredNodes int

	iterations int
	memo       map[solutionKey]memoEntry
}

// NewSolver builds a CapacitySolver over the given HostCapacity view.
// maxSubsetSize bounds how many co-tenants of a host the solver will
// disturb in a single displacement step (default 5). maxConsideredNodes
// bounds how many of a host's children are ever handed to Subsets before
// enumeration begins (default 31); enumeration cost is exponential in
// that count, so this is the operator's lever on solver cost, not on how
// many hosts the solver searches for a placement.
func NewSolver(hostCapacity *HostCapacity, maxIterations, maxSubsetSize, maxConsideredNodes int) *Solver {
	return &Solver{
		hostCapacity:       hostCapacity,
		maxIterations:      maxIterations,
		maxSubsetSize:      maxSubsetSize,
		maxConsideredNodes: maxConsideredNodes,
		memo:               make(map[solutionKey]memoEntry),
	}
}

// MakeRoomFor finds the shortest sequence of moves which, appended to
// movesMade, leaves host with enough free capacity to place tenant,
// without touching any tenant already moved in movesConsidered or
// movesMade and without exceeding the solver's iteration budget. It
// returns (nil, nil) when no sequence could be found, and a
// *BudgetExhaustedError when the budget ran out before that could be
// determined.
func (s *Solver) MakeRoomFor(tenant fleet.Node, host fleet.Node, hosts []fleet.Node, movesConsidered, movesMade []fleet.Move) ([]fleet.Move, error) {
	key := newSolutionKey(tenant.ID, host.ID, movesConsidered, movesMade)
	if entry, ok := s.memo[key]; ok {
		if !entry.found {
			return nil, nil
		}
		return entry.moves, nil
	}

	moves, err := s.findRoomFor(tenant, host, hosts, movesConsidered, movesMade)
	if err != nil {
		// Budget exhaustion is not cached: a later call with a fresh
		// counter (a different top-level Solver) might still succeed.
		return nil, err
	}
	s.memo[key] = memoEntry{found: moves != nil, moves: moves}
	return moves, nil
}

func (s *Solver) findRoomFor(tenant, host fleet.Node, hosts []fleet.Node, movesConsidered, movesMade []fleet.Move) ([]fleet.Move, error) {
	s.iterations++
	if s.iterations > s.maxIterations {
		return nil, &BudgetExhaustedError{MaxIterations: s.maxIterations}
	}

	if !host.Resources.Satisfies(tenant.Resources) {
		return nil, nil // no eviction can fix a categorical or absolute capacity mismatch
	}

	free, err := s.freeCapacityWith(movesMade, host)
	if err != nil {
		return nil, err
	}
	if free.Satisfies(tenant.Resources) {
		return []fleet.Move{}, nil
	}

	var shortest []fleet.Move
	it := Subsets(s.hostCapacity.ChildrenOf(host.ID), s.maxSubsetSize, s.maxConsideredNodes)
	for it.HasNext() {
		childrenToMove := it.Next()

		childResources := make([]resources.Resources, len(childrenToMove))
		for i, c := range childrenToMove {
			childResources[i] = c.Resources
		}
		sum, err := resources.Sum(childResources)
		if err != nil {
			return nil, &fleet.PreconditionError{Hostname: host.Hostname, Reason: "sibling tenant resources could not be summed", Err: err}
		}
		upperBound, err := free.Add(sum)
		if err != nil {
			return nil, &fleet.PreconditionError{Hostname: host.Hostname, Reason: "free capacity and eviction bound could not be combined", Err: err}
		}
		if !upperBound.Satisfies(tenant.Resources) {
			continue // lower-bound pruning: even moving all of S away can't help
		}

		moves, err := s.moveSet(childrenToMove, host, hosts, movesConsidered, movesMade)
		if err != nil {
			return nil, err
		}
		if moves == nil {
			continue
		}
		if shortest == nil || len(moves) < len(shortest) {
			shortest = moves
		}
	}
	if shortest == nil {
		return nil, nil
	}
	return append(append([]fleet.Move{}, movesMade...), shortest...), nil
}

// moveSet tries to move every tenant in nodes off host, threading an
// accumulating moves-so-far list through each one. It fails (returns nil)
// if any single tenant in the set can't be placed.
func (s *Solver) moveSet(nodes []fleet.Node, host fleet.Node, hosts []fleet.Node, movesConsidered, movesMade []fleet.Move) ([]fleet.Move, error) {
	var moves []fleet.Move
	for _, child := range nodes {
		childMoves, err := s.moveOne(child, host, hosts, movesConsidered, append(append([]fleet.Move{}, movesMade...), moves...))
		if err != nil {
			return nil, err
		}
		if childMoves == nil {
			return nil, nil
		}
		moves = append(moves, childMoves...)
	}
	return moves, nil
}

// moveOne finds the shortest way to place a single tenant somewhere in
// hosts other than host, recursively calling MakeRoomFor for each
// candidate target and picking the cheapest.
func (s *Solver) moveOne(tenant fleet.Node, host fleet.Node, hosts []fleet.Node, movesConsidered, movesMade []fleet.Move) ([]fleet.Move, error) {
	if fleet.ContainsTenant(movesConsidered, tenant.ID) || fleet.ContainsTenant(movesMade, tenant.ID) {
		return nil, nil
	}

	var shortest []fleet.Move
	for _, target := range hosts {
		if target.ID == host.ID {
			continue
		}
		move := fleet.Move{Tenant: tenant.ID, FromHost: host.ID, ToHost: target.ID}
		childMoves, err := s.MakeRoomFor(tenant, target, hosts, append(append([]fleet.Move{}, movesConsidered...), move), movesMade)
		if err != nil {
			return nil, err
		}
		if childMoves == nil {
			continue
		}
		if shortest == nil || len(shortest) > len(childMoves)+1 {
			candidate := append(append([]fleet.Move{}, childMoves...), move)
			shortest = candidate
		}
	}
	return shortest, nil
}

// freeCapacityWith adjusts host's current free capacity for the moves
// already made in this scenario: add back resources for anything moved
// off host, subtract resources for anything moved onto it.
func (s *Solver) freeCapacityWith(moves []fleet.Move, host fleet.Node) (resources.Resources, error) {
	free, err := s.hostCapacity.FreeCapacityOf(host)
	if err != nil {
		return resources.Resources{}, err
	}
	for _, m := range moves {
		if m.ToHost != host.ID {
			continue
		}
		tenant, ok := s.hostCapacity.Snapshot().Node(m.Tenant)
		if !ok {
			continue
		}
		free = free.Subtract(tenant.Resources)
	}
	for _, m := range moves {
		if m.FromHost != host.ID {
			continue
		}
		tenant, ok := s.hostCapacity.Snapshot().Node(m.Tenant)
		if !ok {
			continue
		}
		added, err := free.Add(tenant.Resources)
		if err != nil {
			return resources.Resources{}, &fleet.PreconditionError{Hostname: host.Hostname, Reason: "move-adjusted free capacity could not be combined", Err: err}
		}
		free = added
	}
	return free, nil
}

// Iterations reports how many recursive entries this solver has spent,
// mainly for tests and operator diagnostics (cli plan --explain).
func (s *Solver) Iterations() int { return s.iterations }
