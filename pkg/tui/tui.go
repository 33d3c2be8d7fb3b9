// Package tui provides a terminal user interface for sy1000sync
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/sy1000sync/pkg/bridge"
	"github.com/james-see/sy1000sync/pkg/capture"
	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/host"
)

// Boss orange on black
var (
	bossOrange = lipgloss.Color("#FF6A00")
	amber      = lipgloss.Color("#FFC000")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(bossOrange).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	rowStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(bossOrange).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(amber).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(bossOrange).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateParams State = iota
	StateStats
	StateFilePicker
	StateReplaying
)

// RefreshInterval is how often device driven changes are picked up
const RefreshInterval = 200 * time.Millisecond

// Model represents the TUI model
type Model struct {
	store *host.Store
	ctl   *bridge.Controller

	state      State
	params     []host.Parameter
	index      int
	offset     int
	rows       int
	filePicker filepicker.Model
	spinner    spinner.Model
	status     string
	err        error
	width      int
	height     int
}

type tickMsg time.Time

// replayDoneMsg signals the end of a capture replay
type replayDoneMsg struct {
	file    string
	applied int
	total   int
	err     error
}

// New creates a new TUI model over a store and its controller
func New(store *host.Store, ctl *bridge.Controller) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".syx", ".mid", ".midi"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(bossOrange)

	return Model{
		store:      store,
		ctl:        ctl,
		state:      StateParams,
		params:     store.Parameters(),
		rows:       16,
		filePicker: fp,
		spinner:    s,
	}
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateParams
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.state = StateReplaying
			return m, tea.Batch(m.spinner.Tick, m.replay(path))
		}
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if msg.Height > 14 {
			m.rows = msg.Height - 14
		}
		m.filePicker.SetHeight(msg.Height - 10)
		m.clampOffset()
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateParams:
			return m.updateParams(msg)
		case StateStats:
			return m.updateStats(msg)
		}

	case tickMsg:
		m.params = m.store.Parameters()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case replayDoneMsg:
		m.state = StateParams
		m.err = msg.err
		if msg.err == nil {
			m.status = fmt.Sprintf("replayed %s: %d of %d messages applied", filepath.Base(msg.file), msg.applied, msg.total)
		}
		m.params = m.store.Parameters()
		return m, nil
	}

	return m, nil
}

func (m Model) updateParams(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.index > 0 {
			m.index--
		}
	case "down", "j":
		if m.index < len(m.params)-1 {
			m.index++
		}
	case "pgup":
		m.index = max(0, m.index-m.rows)
	case "pgdown":
		m.index = min(len(m.params)-1, m.index+m.rows)
	case "left", "h":
		m.adjust(-1)
	case "right", "l":
		m.adjust(1)
	case "[":
		m.adjust(-10)
	case "]":
		m.adjust(10)
	case "p":
		if p, ok := m.selected(); ok {
			if m.ctl.Push(p.ID) {
				m.status = "pushed " + p.ID
			} else {
				m.status = "nothing sent for " + p.ID
			}
		}
	case "a":
		m.ctl.Activate()
		m.status = "sync activation sent"
	case "r":
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	case "tab":
		m.state = StateStats
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	m.clampOffset()
	return m, nil
}

func (m Model) updateStats(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "esc", "enter":
		m.state = StateParams
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) selected() (host.Parameter, bool) {
	if m.index < 0 || m.index >= len(m.params) {
		return host.Parameter{}, false
	}
	return m.params[m.index], true
}

// adjust changes the selected parameter like a user edit
func (m *Model) adjust(delta int) {
	p, ok := m.selected()
	if !ok {
		return
	}
	m.store.SetValue(p.ID, p.Value+delta)
	m.params = m.store.Parameters()
	m.err = nil
	m.status = ""
}

func (m *Model) clampOffset() {
	if m.index < m.offset {
		m.offset = m.index
	}
	if m.index >= m.offset+m.rows {
		m.offset = m.index - m.rows + 1
	}
}

func (m Model) replay(path string) tea.Cmd {
	return func() tea.Msg {
		events, err := capture.ReadFile(path)
		if err != nil {
			return replayDoneMsg{file: path, err: err}
		}
		applied := 0
		for _, ev := range events {
			if ev.Direction != capture.FromDevice {
				continue
			}
			if m.ctl.HandleInbound(ev.Message.Bytes()) {
				applied++
			}
		}
		return replayDoneMsg{file: path, applied: applied, total: len(events)}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Foreground(bossOrange).Render(logo))
	s.WriteString("\n")

	switch m.state {
	case StateParams:
		s.WriteString(m.viewParams())
	case StateStats:
		s.WriteString(m.viewStats())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateReplaying:
		s.WriteString(boxStyle.Render(fmt.Sprintf("%s Replaying capture...", m.spinner.View())))
	}

	if m.err != nil {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render("✗ " + m.err.Error()))
	} else if m.status != "" {
		s.WriteString("\n")
		s.WriteString(statusStyle.Render(m.status))
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • ←/→: adjust • [/]: ±10 • p: push • a: activate • r: replay • tab: stats • q: quit"))

	return s.String()
}

func formatValue(p host.Parameter) string {
	switch {
	case p.Kind == catalog.RegisterBit:
		if p.Value != 0 {
			return "ON"
		}
		return "OFF"
	case p.HasChoices() && p.Value >= 0 && p.Value < len(p.Choices):
		return p.Choices[p.Value]
	case p.Kind == catalog.DualBpm && p.Value == 0:
		return "-"
	}
	return fmt.Sprintf("%d", p.Value)
}

func (m Model) viewParams() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" PARAMETERS %d/%d ", m.index+1, len(m.params))))
	s.WriteString("\n\n")

	end := min(len(m.params), m.offset+m.rows)
	for i := m.offset; i < end; i++ {
		p := m.params[i]
		line := fmt.Sprintf("%-24s %-12s %s", p.Name, p.AddressString(), formatValue(p))
		if i == m.index {
			s.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			s.WriteString(rowStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewStats() string {
	var s strings.Builder
	st := m.ctl.Stats()

	s.WriteString(titleStyle.Render(" SYNC "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("Inbound:     %d\n", st.Inbound))
	s.WriteString(fmt.Sprintf("Ignored:     %d\n", st.Ignored))
	s.WriteString(fmt.Sprintf("Outbound:    %d\n", st.Outbound))
	s.WriteString(fmt.Sprintf("Suppressed:  %d\n", st.Suppressed))
	s.WriteString(fmt.Sprintf("Overwritten: %d\n", st.Overwritten))
	if st.Tempo > 0 {
		s.WriteString(fmt.Sprintf("Tempo:       %.1f BPM\n", st.Tempo))
	}
	s.WriteString("\n")
	for _, r := range m.ctl.Registers().All() {
		s.WriteString(fmt.Sprintf("Register %s: %0*b\n", r.Address, r.Bits, r.Load()))
	}
	s.WriteString("\n")
	if !st.LastIn.IsZero() {
		s.WriteString(statusStyle.Render("in:  " + st.LastIn.String()))
		s.WriteString("\n")
	}
	if !st.LastOut.IsZero() {
		s.WriteString(statusStyle.Render("out: " + st.LastOut.String()))
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT CAPTURE FILE "))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back"))

	return s.String()
}

const logo = `
   ______  __      _  ___   ___   ___    ______  ___   _  ___
  / __/\ \/ /____ / |/ _ \ / _ \ / _ \  / __/\ \/ / |/ |/ __/
 _\ \   \  /___/ // / // // // // // / _\ \   \  /    / /__
/___/   /_/     /_/\___/ \___/ \___/ /___/   /_/_/|_/\___/
`

// Run starts the TUI application
func Run(store *host.Store, ctl *bridge.Controller) error {
	p := tea.NewProgram(New(store, ctl), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
