// ABOUTME: The control-loop tick: check worst-case slack, mitigate if needed, emit metrics
// ABOUTME: SpareCapacityMaintainer wires CapacityChecker and CapacitySolver to the three external contracts

package maintain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/markalston/spare-capacity/cache"
	"github.com/markalston/spare-capacity/capacity"
	"github.com/markalston/spare-capacity/fleet"
)

// lastResultTTL is generous: LastResult only needs to survive between
// ticks for an operator or CLI to poll it, and a tick that never
// completes shouldn't leave a stale result looking fresh forever.
const lastResultTTL = 10 * time.Minute

const lastResultKey = "last"

// Result is a snapshot of what the most recent Tick found, kept in memory
// for the CLI and any other in-process observer to poll without needing
// to run a tick of its own.
type Result struct {
	TickID            string
	Slack             int
	Overcommitted     []capacity.OvercommitReport
	FailurePath       *capacity.HostFailurePath
	MitigationApplied bool
}

// CloudPolicy reports whether the surrounding environment currently
// permits shared hosting at all. When it doesn't, the maintainer does
// nothing on tick - emitting no metrics, since "no shared hosting" means
// the spare-capacity question doesn't apply.
type CloudPolicy interface {
	AllowsHostSharing() bool
}

// AllowAlways is a CloudPolicy that always permits shared hosting, for
// embedders that don't have a notion of cloud-specific policy.
type AllowAlways struct{}

func (AllowAlways) AllowsHostSharing() bool { return true }

// Maintainer is the SpareCapacityMaintainer: on each Tick it runs a
// CapacityChecker over a fresh snapshot, and when that finds zero slack,
// asks a CapacitySolver for the shortest mitigation and dispatches its
// first move.
type Maintainer struct {
	snapshots SnapshotProvider
	deployer  Deployer
	metrics   MetricSink
	policy    CloudPolicy
	config    Config
	last      *cache.Cache
}

// New builds a Maintainer from its three external contracts and its
// config. policy may be nil, in which case shared hosting is always
// assumed allowed.
func New(snapshots SnapshotProvider, deployer Deployer, metrics MetricSink, policy CloudPolicy, config Config) *Maintainer {
	if policy == nil {
		policy = AllowAlways{}
	}
	return &Maintainer{snapshots: snapshots, deployer: deployer, metrics: metrics, policy: policy, config: config, last: cache.New(lastResultTTL)}
}

// LastResult returns the outcome of the most recently completed Tick, if
// one has run within the last lastResultTTL window.
func (m *Maintainer) LastResult() (Result, bool) {
	v, ok := m.last.Get(lastResultKey)
	if !ok {
		return Result{}, false
	}
	return v.(Result), true
}

// Tick runs one maintenance cycle to completion on the calling goroutine.
// It performs no internal parallelism and yields only at its two I/O
// boundaries: the snapshot fetch and the deployer dispatch.
func (m *Maintainer) Tick(ctx context.Context) error {
	if !m.policy.AllowsHostSharing() {
		return nil
	}

	runID := uuid.NewString()
	log := slog.With("tick", runID)

	snap, err := m.snapshots.Snapshot(ctx)
	if err != nil {
		return &SnapshotUnavailableError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err // cancelled between fetch and analysis: no metrics, no dispatch
	}

	hostCapacity := capacity.New(snap)
	checker := capacity.NewChecker(hostCapacity)

	overcommitReports, err := checker.ReportOvercommittedHosts()
	if err != nil {
		log.Error("tick aborted: precondition violated", "error", err)
		return err
	}
	if len(overcommitReports) > 0 {
		for _, r := range overcommitReports {
			worst, _ := r.Worst()
			log.Warn("host is overcommitted", "host", r.Host.Hostname, "worst_axis", worst.Axis, "over_by", worst.Overshoot())
		}
	}
	m.metrics.Set("overcommittedHosts", len(overcommitReports))

	failurePath, err := checker.WorstCaseHostLossLeadingToFailure()
	if err != nil {
		log.Error("tick aborted: precondition violated", "error", err)
		return err
	}
	if failurePath == nil {
		// no gauge emitted for spareHostCapacity: slack is effectively unbounded
		m.last.Set(lastResultKey, Result{TickID: runID, Slack: -1, Overcommitted: overcommitReports})
		return nil
	}

	slack := failurePath.Slack()
	mitigationApplied := false
	if slack == 0 {
		move, moveErr := m.findMitigatingMove(ctx, hostCapacity, failurePath, log)
		if moveErr != nil {
			log.Error("solver failed to evaluate a mitigation", "error", moveErr)
		} else if inProgress, dispatchErr := m.dispatchMove(ctx, move, snap, log); dispatchErr != nil {
			log.Info("move dispatch did not succeed", "error", dispatchErr)
		} else if inProgress {
			// We succeeded or are in the process of taking a step to
			// mitigate. Report with the assumption this will eventually
			// succeed, to avoid alerting before we're actually stuck.
			slack = 1
			mitigationApplied = true
		}
	}
	m.metrics.Set("spareHostCapacity", slack)
	m.last.Set(lastResultKey, Result{
		TickID:            runID,
		Slack:             slack,
		Overcommitted:     overcommitReports,
		FailurePath:       failurePath,
		MitigationApplied: mitigationApplied,
	})
	return nil
}

// findMitigatingMove asks the solver for the shortest mitigation against
// each of the two spare hosts and returns the first move of whichever is
// shortest overall.
func (m *Maintainer) findMitigatingMove(ctx context.Context, hostCapacity *capacity.HostCapacity, failurePath *capacity.HostFailurePath, log *slog.Logger) (fleet.Move, error) {
	if failurePath.OffendingTenant == nil {
		return fleet.EmptyMove, nil
	}
	tenant := *failurePath.OffendingTenant

	snap := hostCapacity.Snapshot()
	allHosts := snap.Hosts()

	var eligible []fleet.Node
	for _, h := range allHosts {
		if h.Resources.Satisfies(tenant.Resources) {
			eligible = append(eligible, h)
		}
	}
	spares, err := hostCapacity.FindSpareHosts(eligible, 2)
	if err != nil {
		return fleet.EmptyMove, err
	}
	spareIDs := make(map[fleet.NodeID]bool, len(spares))
	for _, s := range spares {
		spareIDs[s.ID] = true
	}
	var candidateHosts []fleet.Node
	for _, h := range allHosts {
		if !spareIDs[h.ID] {
			candidateHosts = append(candidateHosts, h)
		}
	}
	var shortest []fleet.Move
	for _, spare := range spares {
		solver := capacity.NewSolver(hostCapacity, m.config.MaxIterations, m.config.MaxEvictionSubsetSize, m.config.MaxConsideredNodes)
		mitigation, err := solver.MakeRoomFor(tenant, spare, candidateHosts, nil, nil)
		if err != nil {
			log.Info("solver budget exhausted for spare host", "host", spare.Hostname, "error", err)
			continue
		}
		if mitigation == nil {
			continue
		}
		if shortest == nil || len(mitigation) < len(shortest) {
			shortest = mitigation
		}
	}
	if len(shortest) == 0 {
		return fleet.EmptyMove, nil
	}
	return shortest[0], nil
}

// dispatchMove attempts to execute move through the deployer. It reports
// inProgress=true when the mitigation should be treated as already under
// way: either the deployer accepted it, or the tenant was already marked
// retired, which is treated as a move already in flight so a retirement
// in progress doesn't trigger a spurious zero-slack alert.
func (m *Maintainer) dispatchMove(ctx context.Context, move fleet.Move, snap *fleet.FleetSnapshot, log *slog.Logger) (bool, error) {
	if move.IsEmpty() {
		return false, nil
	}

	tenant, ok := snap.Node(move.Tenant)
	if ok && tenant.Alloc.Retired {
		log.Info("mitigating move already in progress", "tenant", tenant.Hostname)
		return true, nil
	}

	outcome, err := m.deployer.ExecuteMove(ctx, move, snap, "spare capacity mitigation")
	if err != nil {
		return false, fmt.Errorf("deployer error: %w", err)
	}
	switch outcome {
	case MoveDone, MoveInProgress:
		return true, nil
	case MoveRefused:
		return false, &DeployerRefusedError{Move: fmt.Sprintf("%+v", move), Reason: "deployer declined"}
	default:
		return false, fmt.Errorf("unknown move outcome %v", outcome)
	}
}
