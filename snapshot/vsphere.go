// ABOUTME: SnapshotProvider backed by vCenter, mapping ESXi hosts and VMs onto the fleet arena
// ABOUTME: A short-lived govmomi session opened and closed on every call

package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/vim25/mo"

	"github.com/markalston/spare-capacity/fleet"
	"github.com/markalston/spare-capacity/resources"
)

// VSphereConfig holds vCenter connection info.
type VSphereConfig struct {
	Host       string
	Username   string
	Password   string
	Datacenter string
	Insecure   bool
}

// VSphereProvider is a maintain.SnapshotProvider that discovers ESXi hosts
// and the VMs running on them via govmomi and maps them onto fleet.Node:
// each ESXi host becomes a fleet host, each powered-on VM on it becomes a
// tenant sized by its configured vCPU/memory. A fresh vCenter session is
// opened and closed on every call rather than held open across ticks.
type VSphereProvider struct {
	cfg VSphereConfig
}

// NewVSphereProvider builds a VSphereProvider from connection settings.
func NewVSphereProvider(cfg VSphereConfig) *VSphereProvider {
	return &VSphereProvider{cfg: cfg}
}

// Snapshot connects to vCenter, discovers the datacenter's hosts and VMs,
// and returns them as a fleet.FleetSnapshot.
func (p *VSphereProvider) Snapshot(ctx context.Context) (*fleet.FleetSnapshot, error) {
	client, finder, err := p.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("vsphere: %w", err)
	}
	defer client.Logout(ctx)

	hostSystems, err := finder.HostSystemList(ctx, "*")
	if err != nil {
		return nil, fmt.Errorf("vsphere: listing hosts: %w", err)
	}
	vms, err := finder.VirtualMachineList(ctx, "*")
	if err != nil {
		return nil, fmt.Errorf("vsphere: listing VMs: %w", err)
	}

	var nodes []fleet.Node
	hostIDs := make(map[string]fleet.NodeID, len(hostSystems))

	for _, hs := range hostSystems {
		var hostMo mo.HostSystem
		if err := hs.Properties(ctx, hs.Reference(), []string{"summary", "runtime"}, &hostMo); err != nil {
			return nil, fmt.Errorf("vsphere: host %s properties: %w", hs.Name(), err)
		}
		if hostMo.Runtime.InMaintenanceMode {
			continue
		}
		id := fleet.NodeID(len(nodes))
		nodes = append(nodes, fleet.Node{
			ID:       id,
			Hostname: sanitizeHostname(hs.Name()),
			Parent:   fleet.NoParent,
			State:    fleet.StateActive,
			Resources: resources.Resources{
				CPU:    float64(hostMo.Summary.Hardware.NumCpuThreads),
				Memory: float64(hostMo.Summary.Hardware.MemorySize) / (1024 * 1024 * 1024),
			},
		})
		hostIDs[hs.Reference().Value] = id
	}

	for _, vm := range vms {
		var vmMo mo.VirtualMachine
		if err := vm.Properties(ctx, vm.Reference(), []string{"config", "runtime"}, &vmMo); err != nil {
			slog.Warn("vsphere: skipping VM, could not read properties", "vm", vm.Name(), "error", err)
			continue
		}
		if vmMo.Runtime.PowerState != "poweredOn" || vmMo.Runtime.Host == nil || vmMo.Config == nil {
			continue
		}
		hostID, ok := hostIDs[vmMo.Runtime.Host.Value]
		if !ok {
			continue // host is in maintenance mode or otherwise excluded above
		}
		nodes = append(nodes, fleet.Node{
			ID:       fleet.NodeID(len(nodes)),
			Hostname: sanitizeHostname(vm.Name()),
			Parent:   hostID,
			State:    fleet.StateActive,
			Resources: resources.Resources{
				CPU:    float64(vmMo.Config.Hardware.NumCPU),
				Memory: float64(vmMo.Config.Hardware.MemoryMB) / 1024,
			},
		})
	}

	snap, err := fleet.NewSnapshot(nodes)
	if err != nil {
		return nil, fmt.Errorf("vsphere: %w", err)
	}
	return snap, nil
}

func (p *VSphereProvider) connect(ctx context.Context) (*govmomi.Client, *find.Finder, error) {
	host := p.cfg.Host
	if !strings.HasPrefix(host, "https://") && !strings.HasPrefix(host, "http://") {
		host = "https://" + host
	}
	u, err := url.Parse(host + "/sdk")
	if err != nil {
		return nil, nil, fmt.Errorf("invalid vCenter URL %q: %w", p.cfg.Host, err)
	}
	u.User = url.UserPassword(p.cfg.Username, p.cfg.Password)

	client, err := govmomi.NewClient(ctx, u, p.cfg.Insecure)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to vCenter at %s: %w", p.cfg.Host, err)
	}

	finder := find.NewFinder(client.Client, true)
	dc, err := finder.Datacenter(ctx, p.cfg.Datacenter)
	if err != nil {
		return nil, nil, fmt.Errorf("finding datacenter %q: %w", p.cfg.Datacenter, err)
	}
	finder.SetDatacenter(dc)

	return client, finder, nil
}

// sanitizeHostname lowercases and strips characters that would fail
// fleet.ValidateHostname; vCenter object names allow spaces and mixed
// case that fleet.Node hostnames don't.
func sanitizeHostname(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		case r == ' ' || r == '_':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
