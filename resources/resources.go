// ABOUTME: Resource vector arithmetic for hosts and tenants
// ABOUTME: Saturating add/subtract and the satisfies partial order

package resources

import "fmt"

// DiskSpeed is a categorical axis. Any is the lattice top: it matches
// either concrete value, but a concrete value only matches itself or Any.
type DiskSpeed int

const (
	DiskSpeedAny DiskSpeed = iota
	DiskSpeedFast
	DiskSpeedSlow
)

func (d DiskSpeed) String() string {
	switch d {
	case DiskSpeedFast:
		return "fast"
	case DiskSpeedSlow:
		return "slow"
	default:
		return "any"
	}
}

// StorageType is the other categorical axis, same lattice shape as DiskSpeed.
type StorageType int

const (
	StorageTypeAny StorageType = iota
	StorageTypeLocal
	StorageTypeRemote
)

func (s StorageType) String() string {
	switch s {
	case StorageTypeLocal:
		return "local"
	case StorageTypeRemote:
		return "remote"
	default:
		return "any"
	}
}

// Resources is an immutable tuple describing a capacity envelope or a
// requirement. CPU/Memory/Disk/Bandwidth/GPU are non-negative scalars;
// DiskSpeed and StorageType are categorical axes over a widening lattice
// where Any is top.
type Resources struct {
	CPU       float64
	Memory    float64
	Disk      float64
	Bandwidth float64
	GPU       float64
	DiskSpeed DiskSpeed
	Storage   StorageType
}

// CategoricalMismatchError is returned when an arithmetic operation is
// asked to combine two Resources whose categorical axes cannot be
// reconciled under the Any-is-top lattice. This indicates a caller bug,
// not a legitimate capacity mismatch (use Satisfies for that).
type CategoricalMismatchError struct {
	Axis string
	A, B fmt.Stringer
}

func (e *CategoricalMismatchError) Error() string {
	return fmt.Sprintf("categorical axis %q mismatch: %s vs %s", e.Axis, e.A, e.B)
}

// Add returns the component-wise sum, and merges the categorical axes: if
// one side is Any the other side's value wins, otherwise they must agree.
// A categorical mismatch is a caller bug reported as an error rather than
// panicking, so callers on the tick's hot path can turn it into a
// precondition-violation tick failure instead of crashing.
func (r Resources) Add(o Resources) (Resources, error) {
	speed, err := mergeDiskSpeed(r.DiskSpeed, o.DiskSpeed)
	if err != nil {
		return Resources{}, err
	}
	storage, err := mergeStorageType(r.Storage, o.Storage)
	if err != nil {
		return Resources{}, err
	}
	return Resources{
		CPU:       r.CPU + o.CPU,
		Memory:    r.Memory + o.Memory,
		Disk:      r.Disk + o.Disk,
		Bandwidth: r.Bandwidth + o.Bandwidth,
		GPU:       r.GPU + o.GPU,
		DiskSpeed: speed,
		Storage:   storage,
	}, nil
}

// Sum adds up a slice of Resources, starting from the zero value. The
// zero value's Any axes mean summing an empty or single-element slice
// never produces a mismatch.
func Sum(all []Resources) (Resources, error) {
	var total Resources
	for _, r := range all {
		var err error
		total, err = total.Add(r)
		if err != nil {
			return Resources{}, err
		}
	}
	return total, nil
}

// Subtract returns the component-wise difference, saturating each numeric
// axis at zero. Categorical axes of the receiver are preserved unchanged:
// subtracting never silently changes what a host is capable of.
func (r Resources) Subtract(o Resources) Resources {
	return Resources{
		CPU:       saturate(r.CPU - o.CPU),
		Memory:    saturate(r.Memory - o.Memory),
		Disk:      saturate(r.Disk - o.Disk),
		Bandwidth: saturate(r.Bandwidth - o.Bandwidth),
		GPU:       saturate(r.GPU - o.GPU),
		DiskSpeed: r.DiskSpeed,
		Storage:   r.Storage,
	}
}

func saturate(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Satisfies reports whether r has at least as much of every numeric axis as
// required, and whether r's categorical axes are compatible with required's
// (Any on either side matches; otherwise they must be equal). Satisfies is
// reflexive, antisymmetric and transitive on the numeric components, which
// together with the categorical lattice makes it a partial order.
func (r Resources) Satisfies(required Resources) bool {
	if r.CPU < required.CPU {
		return false
	}
	if r.Memory < required.Memory {
		return false
	}
	if r.Disk < required.Disk {
		return false
	}
	if r.Bandwidth < required.Bandwidth {
		return false
	}
	if r.GPU < required.GPU {
		return false
	}
	if !compatible(r.DiskSpeed, required.DiskSpeed) {
		return false
	}
	if !compatible(r.Storage, required.Storage) {
		return false
	}
	return true
}

func compatible[T comparable](have, want T) bool {
	var zero T
	if want == zero {
		return true
	}
	if have == zero {
		return true
	}
	return have == want
}

func mergeDiskSpeed(a, b DiskSpeed) (DiskSpeed, error) {
	if a == DiskSpeedAny {
		return b, nil
	}
	if b == DiskSpeedAny {
		return a, nil
	}
	if a != b {
		return 0, &CategoricalMismatchError{Axis: "diskSpeed", A: a, B: b}
	}
	return a, nil
}

func mergeStorageType(a, b StorageType) (StorageType, error) {
	if a == StorageTypeAny {
		return b, nil
	}
	if b == StorageTypeAny {
		return a, nil
	}
	if a != b {
		return 0, &CategoricalMismatchError{Axis: "storageType", A: a, B: b}
	}
	return a, nil
}
