// ABOUTME: Lazy bitmask enumeration of subsets of a node list up to a max size
// ABOUTME: Deterministic emission order; element count capped by the caller

package capacity

import "github.com/markalston/spare-capacity/fleet"

// SubsetIterator lazily emits each non-empty subset of a node list with
// cardinality at most maxSize, exactly once, in a deterministic (but
// otherwise unspecified) order driven by counting an integer bitmask up.
// The empty subset (mask == 0) is always skipped.
type SubsetIterator struct {
	nodes   []fleet.Node
	maxSize int
	mask    int
	limit   int
	next    []fleet.Node
	done    bool
}

// Subsets builds an iterator over non-empty subsets of nodes with
// cardinality at most maxSize. Only the first maxConsidered elements of
// nodes are considered if it is longer; maxConsidered <= 0 means no cap.
// Enumeration is exponential in the considered element count, so this is
// the knob an operator tunes to bound subset-enumeration cost.
func Subsets(nodes []fleet.Node, maxSize, maxConsidered int) *SubsetIterator {
	if maxConsidered > 0 && len(nodes) > maxConsidered {
		nodes = nodes[:maxConsidered]
	}
	return &SubsetIterator{
		nodes:   nodes,
		maxSize: maxSize,
		mask:    0,
		limit:   1 << len(nodes),
	}
}

// HasNext reports whether another subset is available, advancing the
// internal cursor to find it if necessary.
func (it *SubsetIterator) HasNext() bool {
	if it.next != nil {
		return true
	}
	if it.done {
		return false
	}
	for {
		it.mask++
		if it.mask >= it.limit {
			it.done = true
			return false
		}
		if popcount(it.mask) > it.maxSize {
			continue
		}
		subset := make([]fleet.Node, 0, popcount(it.mask))
		for pos := 0; pos < len(it.nodes); pos++ {
			if it.mask&(1<<uint(pos)) != 0 {
				subset = append(subset, it.nodes[pos])
			}
		}
		it.next = subset
		return true
	}
}

// Next returns the next subset. Callers must call HasNext first.
func (it *SubsetIterator) Next() []fleet.Node {
	s := it.next
	it.next = nil
	return s
}

func popcount(n int) int {
	count := 0
	for n != 0 {
		n &= n - 1
		count++
	}
	return count
}
