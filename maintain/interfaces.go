// ABOUTME: The three external contracts the maintainer consumes
// ABOUTME: SnapshotProvider, Deployer and MetricSink are supplied by the embedder

package maintain

import (
	"context"

	"github.com/markalston/spare-capacity/fleet"
)

// SnapshotProvider supplies the immutable fleet state at the start of a
// tick. Implementations live outside this package (e.g. package
// snapshot's Cloud Foundry and vSphere providers).
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*fleet.FleetSnapshot, error)
}

// MoveOutcome is the result of asking a Deployer to execute a move.
type MoveOutcome int

const (
	MoveDone MoveOutcome = iota
	MoveInProgress
	MoveRefused
)

func (o MoveOutcome) String() string {
	switch o {
	case MoveDone:
		return "done"
	case MoveInProgress:
		return "in-progress"
	case MoveRefused:
		return "refused"
	default:
		return "unknown"
	}
}

// Deployer attempts to execute a chosen relocation. It may block briefly;
// the maintainer does not retry within a tick.
type Deployer interface {
	ExecuteMove(ctx context.Context, move fleet.Move, snapshot *fleet.FleetSnapshot, reason string) (MoveOutcome, error)
}

// MetricSink records the two integer gauges the maintainer emits. Names
// used are exactly "overcommittedHosts" and "spareHostCapacity".
type MetricSink interface {
	Set(name string, value int)
}
