// ABOUTME: Dashboard component displaying live capacity state
// ABOUTME: Shows slack, overcommitted hosts, and last-tick status

package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/spare-capacity/capacity"
	"github.com/markalston/spare-capacity/cli/internal/tui/styles"
)

// State is the snapshot of capacity health the dashboard renders. It is
// built fresh by the poller on every refresh, not mutated in place.
type State struct {
	Slack             int
	Unbounded         bool
	OffendingTenant   string
	Overcommitted     []capacity.OvercommitReport
	MitigationApplied bool
	UpdatedAt         time.Time
	Err               error
}

// Dashboard renders the most recent State.
type Dashboard struct {
	state         *State
	minSlack      int
	width, height int
}

// New creates a dashboard with no data yet; call Update once the first
// poll completes.
func New(minSlack, width, height int) *Dashboard {
	return &Dashboard{minSlack: minSlack, width: width, height: height}
}

// Update replaces the rendered state.
func (d *Dashboard) Update(s State) {
	d.state = &s
}

// SetSize updates the dashboard dimensions.
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	if d.state == nil {
		return styles.Panel.Width(d.width).Render("Waiting for first snapshot...")
	}
	if d.state.Err != nil {
		return styles.Panel.Width(d.width).Render(styles.StatusCritical.Render("Error: " + d.state.Err.Error()))
	}

	var sb strings.Builder

	sb.WriteString(styles.Title.Render("Spare Capacity"))
	sb.WriteString("\n")
	sb.WriteString(styles.Subtitle.Render("last updated " + d.state.UpdatedAt.Format(time.RFC3339)))
	sb.WriteString("\n\n")

	sb.WriteString("Worst-case host-loss slack\n")
	if d.state.Unbounded {
		sb.WriteString(styles.StatusOK.Render("  unbounded"))
		sb.WriteString("\n")
	} else {
		slackStyle := styles.StatusOK
		if d.state.Slack < d.minSlack {
			slackStyle = styles.StatusCritical
		} else if d.state.Slack == d.minSlack {
			slackStyle = styles.StatusWarning
		}
		sb.WriteString(fmt.Sprintf("  %s (threshold %d)\n", slackStyle.Render(fmt.Sprintf("%d", d.state.Slack)), d.minSlack))
		if d.state.OffendingTenant != "" {
			sb.WriteString(fmt.Sprintf("  offending tenant: %s\n", d.state.OffendingTenant))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("Overcommitted hosts\n")
	if len(d.state.Overcommitted) == 0 {
		sb.WriteString(styles.StatusOK.Render("  none"))
		sb.WriteString("\n")
	} else {
		for _, r := range d.state.Overcommitted {
			worst, ok := r.Worst()
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("  %s %s over by %.1f\n",
				styles.StatusWarning.Render(r.Host.Hostname), worst.Axis, worst.Overshoot()))
		}
	}
	sb.WriteString("\n")

	mitigationStyle := styles.StatusOK
	mitigationLabel := "none needed"
	if d.state.MitigationApplied {
		mitigationStyle = styles.StatusWarning
		mitigationLabel = "applied this tick"
	}
	sb.WriteString(fmt.Sprintf("Mitigation: %s\n", mitigationStyle.Render(mitigationLabel)))

	return lipgloss.NewStyle().
		Width(d.width).
		Height(d.height).
		Render(sb.String())
}
