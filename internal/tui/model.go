// Package tui is a terminal shell over a session: it lists the flows of the
// current view and maps keys to the session's command handlers.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MalithGihan/rabbitflow/internal/broker"
	"github.com/MalithGihan/rabbitflow/internal/render"
	"github.com/MalithGihan/rabbitflow/pkg/types"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6600")).
			MarginLeft(2).
			MarginTop(1)

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2)

	tableBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#888888")).
			MarginLeft(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true).
			MarginLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			MarginLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

// Shell is what the terminal drives; *session.Session implements it.
type Shell interface {
	Refresh(ctx context.Context) error
	SetVhost(ctx context.Context, name string) error
	SetMode(mode types.MetricMode) error
	SetFilter(pattern string) error
	View() types.View
	State() types.ViewState
	StatusLine() string
}

// Vhosts lists the vhosts the shell can switch between.
type Vhosts interface {
	ListVhosts(ctx context.Context) ([]broker.Vhost, error)
}

type keyMap struct {
	Refresh key.Binding
	Mode    key.Binding
	Vhost   key.Binding
	Filter  key.Binding
	Apply   key.Binding
	Cancel  key.Binding
	Up      key.Binding
	Down    key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Mode: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "rate/count"),
	),
	Vhost: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "next vhost"),
	),
	Filter: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter queues"),
	),
	Apply: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "apply filter"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Mode, k.Vhost, k.Filter, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Mode, k.Vhost},
		{k.Filter, k.Apply, k.Cancel},
		{k.Up, k.Down, k.Quit},
	}
}

type refreshedMsg struct{ err error }

type vhostsMsg struct {
	names []string
	err   error
}

type tickMsg time.Time

type Model struct {
	ctx      context.Context
	shell    Shell
	vhosts   Vhosts
	interval time.Duration

	names   []string
	current string

	filter  textinput.Model
	flows   table.Model
	help    help.Model
	keys    keyMap
	width   int
	height  int
	loading bool
	message string
	msgErr  bool
}

type Option func(*Model)

// WithInterval refreshes every d; zero disables it.
func WithInterval(d time.Duration) Option {
	return func(m *Model) { m.interval = d }
}

// WithVhost names the vhost the session starts on.
func WithVhost(name string) Option {
	return func(m *Model) { m.current = name }
}

func New(ctx context.Context, shell Shell, vhosts Vhosts, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "regular expression on queue names"
	ti.Prompt = "filter: "
	ti.CharLimit = 200
	ti.Width = 60
	ti.SetValue(shell.State().Filter)

	t := table.New(
		table.WithColumns(columns(30)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF6600")).
		Bold(false)
	t.SetStyles(s)

	m := Model{
		ctx:     ctx,
		shell:   shell,
		vhosts:  vhosts,
		current: broker.DefaultVhost,
		filter:  ti,
		flows:   t,
		help:    help.New(),
		keys:    keys,
	}
	for _, o := range opts {
		o(&m)
	}
	m.syncRows()
	return m
}

func columns(nameWidth int) []table.Column {
	return []table.Column{
		{Title: "Exchange", Width: nameWidth},
		{Title: "Queue", Width: nameWidth},
		{Title: "Flow", Width: 14},
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.refreshCmd(), m.listVhostsCmd()}
	if m.interval > 0 {
		cmds = append(cmds, m.tickCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{err: m.shell.Refresh(m.ctx)}
	}
}

func (m Model) setVhostCmd(name string) tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{err: m.shell.SetVhost(m.ctx, name)}
	}
}

func (m Model) listVhostsCmd() tea.Cmd {
	if m.vhosts == nil {
		return nil
	}
	return func() tea.Msg {
		vs, err := m.vhosts.ListVhosts(m.ctx)
		if err != nil {
			return vhostsMsg{err: err}
		}
		names := make([]string, len(vs))
		for i, v := range vs {
			names[i] = v.Name
		}
		return vhostsMsg{names: names}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.flows.SetColumns(columns(max(12, (msg.Width-24)/2)))
		m.flows.SetHeight(max(5, msg.Height-12))
		return m, nil

	case refreshedMsg:
		m.loading = false
		m.setMessage(m.shell.StatusLine(), msg.err != nil)
		m.syncRows()
		return m, nil

	case vhostsMsg:
		if msg.err != nil {
			m.setMessage("list vhosts: "+broker.Message(msg.err), true)
			return m, nil
		}
		m.names = msg.names
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{m.tickCmd()}
		if !m.loading {
			m.loading = true
			cmds = append(cmds, m.refreshCmd())
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.filter.Focused() {
			return m.updateFilter(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, m.refreshCmd()

		case key.Matches(msg, m.keys.Mode):
			next := types.ModeCount
			if m.shell.State().Mode == types.ModeCount {
				next = types.ModeRate
			}
			if err := m.shell.SetMode(next); err != nil {
				m.setMessage(err.Error(), true)
			}
			m.syncRows()
			return m, nil

		case key.Matches(msg, m.keys.Vhost):
			if len(m.names) == 0 {
				m.setMessage("no vhosts known yet", true)
				return m, m.listVhostsCmd()
			}
			m.current = m.nextVhost()
			m.loading = true
			return m, m.setVhostCmd(m.current)

		case key.Matches(msg, m.keys.Filter):
			m.filter.SetValue(m.shell.State().Filter)
			m.filter.CursorEnd()
			return m, m.filter.Focus()
		}
	}

	var cmd tea.Cmd
	m.flows, cmd = m.flows.Update(msg)
	return m, cmd
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Apply):
		// an invalid pattern keeps the input open and the previous view
		if err := m.shell.SetFilter(m.filter.Value()); err != nil {
			m.setMessage(err.Error(), true)
			return m, nil
		}
		m.filter.Blur()
		m.setMessage(m.shell.StatusLine(), false)
		m.syncRows()
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		m.filter.Blur()
		m.filter.SetValue(m.shell.State().Filter)
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

func (m Model) nextVhost() string {
	for i, n := range m.names {
		if n == m.current {
			return m.names[(i+1)%len(m.names)]
		}
	}
	return m.names[0]
}

func (m *Model) setMessage(s string, isErr bool) {
	m.message = s
	m.msgErr = isErr
}

func (m *Model) syncRows() {
	v := m.shell.View()
	mode := m.shell.State().Mode
	rows := make([]table.Row, 0, len(v.Links))
	for _, l := range v.Links {
		rows = append(rows, table.Row{
			render.Label(l.Source),
			render.Label(l.Target),
			render.ValueText(l.Value, mode),
		})
	}
	m.flows.SetRows(rows)
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("rabbitflow"))
	s.WriteString("\n")

	st := m.shell.State()
	filter := st.Filter
	if filter == "" {
		filter = "none"
	}
	state := fmt.Sprintf("vhost %s | mode %s (%s) | filter %s", m.current, st.Mode, st.Mode.Unit(), filter)
	if m.loading {
		state += " | refreshing..."
	}
	s.WriteString(stateStyle.Render(state))
	s.WriteString("\n\n")

	s.WriteString(tableBoxStyle.Render(m.flows.View()))
	s.WriteString("\n")

	if m.filter.Focused() {
		s.WriteString("  ")
		s.WriteString(m.filter.View())
		s.WriteString("\n")
	}

	if m.message != "" {
		s.WriteString("\n")
		if m.msgErr {
			s.WriteString(errorStyle.Render("✗ " + m.message))
		} else {
			s.WriteString(statusStyle.Render(m.message))
		}
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return s.String()
}
