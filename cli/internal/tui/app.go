// ABOUTME: Root bubbletea model for the watch command's live dashboard
// ABOUTME: Polls a snapshot provider on an interval and renders capacity state

package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/spare-capacity/capacity"
	"github.com/markalston/spare-capacity/cli/internal/tui/dashboard"
	"github.com/markalston/spare-capacity/cli/internal/tui/styles"
	"github.com/markalston/spare-capacity/snapshot"
)

// snapshotMsg is sent when a poll of the snapshot provider completes.
type snapshotMsg struct {
	state dashboard.State
}

// tickMsg drives the poll loop.
type tickMsg time.Time

// App is the root bubbletea model for the watch command.
type App struct {
	provider snapshot.Provider
	interval time.Duration
	minSlack int

	dashboard *dashboard.Dashboard
	width     int
	height    int
	quitting  bool
}

// New creates a watch dashboard polling provider every interval.
func New(provider snapshot.Provider, interval time.Duration, minSlack int) *App {
	return &App{
		provider:  provider,
		interval:  interval,
		minSlack:  minSlack,
		dashboard: dashboard.New(minSlack, 80, 20),
	}
}

// Init kicks off the first fetch and the poll ticker.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.fetch(), a.tick())
}

func (a *App) fetch() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{state: computeState(context.Background(), a.provider, a.minSlack)}
	}
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(a.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles bubbletea messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.dashboard.SetSize(msg.Width-4, msg.Height-6)
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			a.quitting = true
			return a, tea.Quit
		case "r":
			return a, a.fetch()
		}
		return a, nil

	case tickMsg:
		return a, tea.Batch(a.fetch(), a.tick())

	case snapshotMsg:
		a.dashboard.Update(msg.state)
		return a, nil
	}
	return a, nil
}

// View renders the dashboard framed by a header and footer.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	header := styles.HeaderStyle.Width(a.width - 2).Render("spare-capacity watch")
	body := a.dashboard.View()
	footer := styles.FooterStyle.Width(a.width - 2).Render(
		fmt.Sprintf("%s refresh  %s quit", styles.KeyStyle.Render("r"), styles.KeyStyle.Render("q")))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// computeState runs a single read-only capacity check, the same
// computation the check command performs, and shapes it into the
// dashboard's render-friendly State.
func computeState(ctx context.Context, provider snapshot.Provider, minSlack int) dashboard.State {
	snap, err := provider.Snapshot(ctx)
	if err != nil {
		return dashboard.State{Err: err, UpdatedAt: time.Now()}
	}

	hc := capacity.New(snap)
	checker := capacity.NewChecker(hc)

	overcommitted, err := checker.ReportOvercommittedHosts()
	if err != nil {
		return dashboard.State{Err: err, UpdatedAt: time.Now()}
	}

	failurePath, err := checker.WorstCaseHostLossLeadingToFailure()
	if err != nil {
		return dashboard.State{Err: err, UpdatedAt: time.Now()}
	}

	state := dashboard.State{Overcommitted: overcommitted, UpdatedAt: time.Now()}
	if failurePath == nil {
		state.Unbounded = true
	} else {
		state.Slack = failurePath.Slack()
		if failurePath.OffendingTenant != nil {
			state.OffendingTenant = failurePath.OffendingTenant.Hostname
		}
	}
	return state
}
