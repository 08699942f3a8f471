package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/cyberq/internal/cyberq"
	"github.com/muurk/cyberq/internal/poller"
)

// StateMsg carries a published poller state into the dashboard
type StateMsg poller.State

type statesClosedMsg struct{}

// ListenStates waits for the next state on ch
func ListenStates(ch <-chan poller.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return statesClosedMsg{}
		}
		return StateMsg(s)
	}
}

type dashboardKeyMap struct {
	Help key.Binding
	Quit key.Binding
}

func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Help, k.Quit}}
}

// DashboardModel shows live probe readings for one controller
type DashboardModel struct {
	Target string // host:port being watched

	state    poller.State
	hasState bool
	states   <-chan poller.State

	spinner spinner.Model
	fan     progress.Model
	help    help.Model
	keys    dashboardKeyMap

	Width int
}

// NewDashboardModel creates a dashboard fed from states
func NewDashboardModel(target string, states <-chan poller.State) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	return DashboardModel{
		Target:  target,
		states:  states,
		spinner: s,
		fan: progress.New(
			progress.WithGradient(string(SuccessColor), string(PrimaryColor)),
			progress.WithWidth(30),
		),
		help: help.New(),
		keys: dashboardKeyMap{
			Help: key.NewBinding(
				key.WithKeys("?"),
				key.WithHelp("?", "help"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		Width: GetTerminalWidth(),
	}
}

// Init implements tea.Model
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, ListenStates(m.states))
}

// Update implements tea.Model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case StateMsg:
		m.state = poller.State(msg)
		m.hasState = true
		return m, ListenStates(m.states)

	case statesClosedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m DashboardModel) View() string {
	var b strings.Builder

	title := "CyberQ"
	if m.hasState && m.state.Identity.Name != "" {
		title = m.state.Identity.Name
	}
	b.WriteString(NewHeader(title, "cyberq watch", map[string]string{"Device": m.Target}).SetWidth(m.Width).Render())
	b.WriteString("\n\n")

	switch {
	case !m.hasState || (m.state.Snapshot == nil && m.state.LastError == nil):
		b.WriteString(fmt.Sprintf("  %s Waiting for controller...\n", m.spinner.View()))
	case m.state.Snapshot == nil:
		b.WriteString(ErrorMessageStyle.Render("  "+FailureMarker+" "+cyberq.GetShortErrorMessage(m.state.LastError)) + "\n")
		b.WriteString(fmt.Sprintf("  %s Retrying...\n", m.spinner.View()))
	default:
		if !m.state.Available && m.state.LastError != nil {
			b.WriteString(WarningTitleStyle.Render(fmt.Sprintf("  %s Stale: %s (%d failures)",
				WarningMarker, cyberq.GetShortErrorMessage(m.state.LastError), m.state.Failures)) + "\n\n")
		}
		b.WriteString(m.probeTable())
		b.WriteString("\n")
		b.WriteString(m.outputView())
	}

	if m.hasState && !m.state.LastSuccess.IsZero() {
		b.WriteString(HelpStyle.Render("Updated " + m.state.LastSuccess.Format(time.TimeOnly)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	b.WriteString("\n")
	return b.String()
}

func (m DashboardModel) probeTable() string {
	const row = "  %-8s %-18s %10s %10s  %s"

	var lines []string
	lines = append(lines, TableHeaderStyle.Render(fmt.Sprintf(row, "PROBE", "NAME", "TEMP", "SET", "STATUS")))
	for _, r := range cyberq.ReadProbes(m.state.Snapshot) {
		temp := "--"
		if r.HasTemp {
			temp = fmt.Sprintf("%.1f°F", r.Temperature)
		} else if v, err := m.state.Snapshot.Get(r.Probe.TempKey()); err == nil && v.Raw() != "" {
			temp = v.Raw()
		}
		set := "--"
		if r.HasSetpoint {
			set = fmt.Sprintf("%.0f°F", r.Setpoint)
		}
		line := TableCellStyle.Render(fmt.Sprintf(row, r.Probe.Label, truncate(r.DisplayName(), 18), temp, set, ""))
		lines = append(lines, line+StatusStyle(r.Status).Render(r.Status))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m DashboardModel) outputView() string {
	var lines []string
	snap := m.state.Snapshot

	if v, err := snap.Get("OUTPUT_PERCENT"); err == nil {
		if pct, ok := v.Float(); ok {
			lines = append(lines, fmt.Sprintf("  %-8s %s %3.0f%%", "Fan", m.fan.ViewAs(pct/100), pct))
		}
	}
	if v, err := snap.Get("FAN_SHORTED"); err == nil {
		if shorted, ok := v.Bool(); ok && shorted {
			lines = append(lines, ErrorMessageStyle.Render("  "+FailureMarker+" Fan shorted"))
		}
	}
	if v, err := snap.Get("TIMER_CURR"); err == nil {
		timer := "  Timer    " + v.String()
		if s, err := snap.Get("TIMER_STATUS"); err == nil {
			if label, ok := s.Label(); ok {
				timer += "  " + StatusStyle(label).Render(label)
			}
		}
		lines = append(lines, timer)
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
