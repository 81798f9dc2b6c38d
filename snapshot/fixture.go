// ABOUTME: SnapshotProvider backed by a local JSON fixture file
// ABOUTME: Used for local development, CI, and the cli's --fixture flag

package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/markalston/spare-capacity/fleet"
	"github.com/markalston/spare-capacity/resources"
)

// FixtureProvider reads a fleet snapshot from a JSON file on disk. Its
// schema is internal to this repository (unlike the CF/BOSH/vSphere wire
// formats, which are walked with gjson because they're owned by an
// upstream API), so plain encoding/json against a fixed struct is the
// right tool here.
type FixtureProvider struct {
	path string
}

// NewFixtureProvider builds a FixtureProvider reading from path.
func NewFixtureProvider(path string) *FixtureProvider {
	return &FixtureProvider{path: path}
}

// FixtureNode is the on-disk shape of one node.
type FixtureNode struct {
	Hostname  string  `json:"hostname"`
	Parent    string  `json:"parent,omitempty"`
	CPU       float64 `json:"cpu"`
	Memory    float64 `json:"memory"`
	Disk      float64 `json:"disk"`
	Bandwidth float64 `json:"bandwidth"`
	GPU       float64 `json:"gpu"`
	DiskSpeed string  `json:"diskSpeed,omitempty"`
	Storage   string  `json:"storage,omitempty"`
	Retired   bool    `json:"retired,omitempty"`
	Owner     string  `json:"owner,omitempty"`
	State     string  `json:"state,omitempty"`
}

// Snapshot reads and parses the fixture file into a fleet.FleetSnapshot.
func (p *FixtureProvider) Snapshot(_ context.Context) (*fleet.FleetSnapshot, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("fixture: reading %s: %w", p.path, err)
	}
	var fixtureNodes []FixtureNode
	if err := json.Unmarshal(raw, &fixtureNodes); err != nil {
		return nil, fmt.Errorf("fixture: parsing %s: %w", p.path, err)
	}

	byHostname := make(map[string]fleet.NodeID, len(fixtureNodes))
	for i, n := range fixtureNodes {
		byHostname[n.Hostname] = fleet.NodeID(i)
	}

	nodes := make([]fleet.Node, len(fixtureNodes))
	for i, n := range fixtureNodes {
		parent := fleet.NoParent
		if n.Parent != "" {
			id, ok := byHostname[n.Parent]
			if !ok {
				return nil, fmt.Errorf("fixture: node %q references unknown parent %q", n.Hostname, n.Parent)
			}
			parent = id
		}
		nodes[i] = fleet.Node{
			ID:       fleet.NodeID(i),
			Hostname: n.Hostname,
			Parent:   parent,
			State:    parseState(n.State),
			Alloc:    fleet.Allocation{Owner: n.Owner, Retired: n.Retired},
			Resources: resources.Resources{
				CPU:       n.CPU,
				Memory:    n.Memory,
				Disk:      n.Disk,
				Bandwidth: n.Bandwidth,
				GPU:       n.GPU,
				DiskSpeed: parseDiskSpeed(n.DiskSpeed),
				Storage:   parseStorageType(n.Storage),
			},
		}
	}

	return fleet.NewSnapshot(nodes)
}

func parseState(s string) fleet.State {
	switch s {
	case "reserved":
		return fleet.StateReserved
	case "failed":
		return fleet.StateFailed
	default:
		return fleet.StateActive
	}
}

func parseDiskSpeed(s string) resources.DiskSpeed {
	switch s {
	case "fast":
		return resources.DiskSpeedFast
	case "slow":
		return resources.DiskSpeedSlow
	default:
		return resources.DiskSpeedAny
	}
}

func parseStorageType(s string) resources.StorageType {
	switch s {
	case "local":
		return resources.StorageTypeLocal
	case "remote":
		return resources.StorageTypeRemote
	default:
		return resources.StorageTypeAny
	}
}
