// ABOUTME: Per-axis overcommit detail for hosts already known to be overcommitted
// ABOUTME: Used to make the maintainer's warning logs actionable instead of just naming the host

package capacity

import (
	"sort"

	"github.com/markalston/spare-capacity/fleet"
	"github.com/markalston/spare-capacity/resources"
)

// AxisOvercommit describes how far a single resource axis is over budget
// on a host: used exceeds capacity by (used - capacity).
type AxisOvercommit struct {
	Axis     string
	Capacity float64
	Used     float64
}

// Overshoot returns how far used exceeds capacity on this axis. Callers
// should only see positive values here; OvercommitReport only includes
// axes that are actually over budget.
func (a AxisOvercommit) Overshoot() float64 {
	return a.Used - a.Capacity
}

// OvercommitReport ranks a host's overcommitted axes worst-first, so a log
// line or CLI table can lead with whichever resource is most exhausted
// instead of just flagging the host as bad.
type OvercommitReport struct {
	Host fleet.Node
	Axes []AxisOvercommit
}

// Worst returns the most overcommitted axis, or the zero value if the host
// is not overcommitted on any numeric axis.
func (r OvercommitReport) Worst() (AxisOvercommit, bool) {
	if len(r.Axes) == 0 {
		return AxisOvercommit{}, false
	}
	return r.Axes[0], true
}

// ReportOvercommit builds a per-axis breakdown for host, given its
// resident tenants' summed usage. It returns a report with an empty Axes
// slice (not an error) for a host that turns out not to be overcommitted;
// callers that already know the host is overcommitted (from
// FindOvercommittedHosts) will always get a non-empty report back.
func ReportOvercommit(host fleet.Node, used resources.Resources) OvercommitReport {
	candidates := []AxisOvercommit{
		{Axis: "cpu", Capacity: host.Resources.CPU, Used: used.CPU},
		{Axis: "memory", Capacity: host.Resources.Memory, Used: used.Memory},
		{Axis: "disk", Capacity: host.Resources.Disk, Used: used.Disk},
		{Axis: "bandwidth", Capacity: host.Resources.Bandwidth, Used: used.Bandwidth},
		{Axis: "gpu", Capacity: host.Resources.GPU, Used: used.GPU},
	}

	report := OvercommitReport{Host: host}
	for _, c := range candidates {
		if c.Used > c.Capacity {
			report.Axes = append(report.Axes, c)
		}
	}
	sort.Slice(report.Axes, func(i, j int) bool {
		return report.Axes[i].Overshoot() > report.Axes[j].Overshoot()
	})
	return report
}

// ReportOvercommittedHosts runs ReportOvercommit over every host the
// Checker considers overcommitted, sorted by hostname for stable output.
func (c *Checker) ReportOvercommittedHosts() ([]OvercommitReport, error) {
	hosts, err := c.FindOvercommittedHosts()
	if err != nil {
		return nil, err
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Hostname < hosts[j].Hostname })

	reports := make([]OvercommitReport, 0, len(hosts))
	for _, h := range hosts {
		childResources := make([]resources.Resources, 0)
		for _, child := range c.hostCapacity.ChildrenOf(h.ID) {
			childResources = append(childResources, child.Resources)
		}
		used, err := resources.Sum(childResources)
		if err != nil {
			return nil, &fleet.PreconditionError{Hostname: h.Hostname, Reason: "children resources could not be summed", Err: err}
		}
		reports = append(reports, ReportOvercommit(h, used))
	}
	return reports, nil
}
