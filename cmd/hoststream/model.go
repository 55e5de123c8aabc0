// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/stream"
	"github.com/bureau-foundation/hoststream/lib/tui"
)

// hostsMsg carries a directory announcement into the event loop.
type hostsMsg []schema.HostInfo

// overlayItems are the stream overlay's menu entries, in order.
var overlayItems = []string{"Resume", "Disconnect"}

const (
	overlayResume = iota
	overlayDisconnect
)

// statusBoard is what the controller's listener and the session media
// report to the view. It is only touched on the event loop goroutine:
// listener notifications and media calls arrive through the dispatcher
// or from Update itself.
type statusBoard struct {
	session     schema.SessionInfo
	connectedAt time.Time
	lastEvent   string
	overlay     bool
	forwarded   int

	// backHeld is the virtual pad's back button state.
	backHeld bool
}

var (
	_ stream.Listener = uiListener{}
	_ stream.Media    = (*terminalMedia)(nil)
)

type uiListener struct {
	board *statusBoard
}

func (l uiListener) Connected(info schema.SessionInfo) {
	l.board.session = info
	l.board.connectedAt = time.Now()
	l.board.forwarded = 0
	l.board.backHeld = false
	l.board.lastEvent = fmt.Sprintf("connected to %s", info.Host.Name)
}

func (l uiListener) Disconnected(info schema.SessionInfo, requested bool) {
	if requested {
		l.board.lastEvent = fmt.Sprintf("disconnected from %s", info.Host.Name)
	} else {
		l.board.lastEvent = fmt.Sprintf("%s ended the session", info.Host.Name)
	}
}

func (l uiListener) ConnectFailed(host schema.HostInfo, err error) {
	l.board.lastEvent = fmt.Sprintf("could not connect to %s: %v", host.Name, err)
}

// terminalMedia is the presentation of one session in the terminal.
// There is no decoded video; the view shows session details instead.
type terminalMedia struct {
	board *statusBoard
}

func (m *terminalMedia) SetOverlayShown(shown bool) {
	m.board.overlay = shown
}

func (m *terminalMedia) Close() {
	m.board.overlay = false
}

// virtualPad is the keyboard-driven controller exposed to the host.
type virtualPad struct{}

func (virtualPad) Devices() []stream.ControllerDevice {
	return []stream.ControllerDevice{{ID: 0, Name: "keyboard virtual pad"}}
}

type model struct {
	controller *stream.Controller
	board      *statusBoard
	keys       keyMap
	theme      tui.Theme
	help       help.Model
	spinner    spinner.Model

	hosts  []schema.HostInfo
	cursor int

	width, height int
	pointer       pointer

	overlayCursor int

	logLine  string
	logLevel slog.Level
}

func newModel(controller *stream.Controller, board *statusBoard) model {
	return model{
		controller: controller,
		board:      board,
		keys:       defaultKeyMap(),
		theme:      tui.DefaultTheme,
		help:       help.New(),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runTaskMsg:
		msg.fn()
		close(msg.ack)
		return m, nil

	case hostsMsg:
		m.hosts = msg
		m.cursor = min(m.cursor, max(len(m.hosts)-1, 0))
		return m, nil

	case tui.LogRecordMsg:
		m.logLine, m.logLevel = msg.Summary, msg.Level
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.controller.SetViewportSize(msg.Width, msg.Height)
		return m, nil

	case tea.MouseMsg:
		if event := mouseEvent(msg, &m.pointer); event != nil {
			m.forward(event)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	status := m.controller.Status()
	switch {
	case status.Phase == stream.PhaseStreaming && status.OverlayOpen:
		return m.handleOverlayKey(msg)
	case status.Phase == stream.PhaseStreaming:
		return m.handleStreamKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.cursor = min(m.cursor+1, max(len(m.hosts)-1, 0))
	case key.Matches(msg, m.keys.Connect):
		if m.cursor < len(m.hosts) && status.Phase == stream.PhaseIdle {
			m.controller.Start(m.hosts[m.cursor])
		}
	case key.Matches(msg, m.keys.Cancel):
		if status.Phase == stream.PhaseRequesting {
			m.controller.CancelRequest()
		}
	}
	return m, nil
}

func (m model) handleStreamKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.board.backHeld = !m.board.backHeld
		m.forward(stream.ControllerButtonEvent{Button: schema.ButtonBack, Pressed: m.board.backHeld})
		return m, nil
	case key.Matches(msg, m.keys.Menu):
		m.forward(stream.KeyEvent{Code: schema.KeyCodeExit, Pressed: true})
		m.forward(stream.KeyEvent{Code: schema.KeyCodeExit, Pressed: false})
		m.overlayCursor = overlayResume
		return m, nil
	}
	for _, stroke := range keyStrokes(msg) {
		m.forward(stroke)
	}
	return m, nil
}

func (m model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.overlayCursor = max(m.overlayCursor-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.overlayCursor = min(m.overlayCursor+1, len(overlayItems)-1)
	case key.Matches(msg, m.keys.Cancel):
		m.controller.SetOverlayOpened(false)
	case key.Matches(msg, m.keys.Select):
		m.controller.SetOverlayOpened(false)
		if m.overlayCursor == overlayDisconnect {
			m.releaseBack()
			m.controller.StopActive()
		}
	}
	return m, nil
}

// releaseBack lets go of a held virtual back button so a gesture does
// not outlive the session.
func (m *model) releaseBack() {
	if m.board.backHeld {
		m.board.backHeld = false
		m.forward(stream.ControllerButtonEvent{Button: schema.ButtonBack, Pressed: false})
	}
}

func (m *model) forward(event stream.InputEvent) {
	if m.controller.HandleInputEvent(event) {
		m.board.forwarded++
	}
}

func (m model) View() string {
	status := m.controller.Status()

	header := lipgloss.NewStyle().Bold(true).Foreground(m.theme.HeaderForeground).Render("hoststream")
	phase := lipgloss.NewStyle().Foreground(m.theme.PhaseColor(status.Phase)).Render(status.Phase.String())
	title := header + "  " + phase
	if status.Host.Name != "" {
		title += "  " + status.Host.Name
	}
	if status.Phase == stream.PhaseRequesting || status.Phase == stream.PhaseConnecting {
		title += " " + m.spinner.View()
	}

	var body string
	var bindings []key.Binding
	switch status.Phase {
	case stream.PhaseStreaming:
		body = m.streamView()
		bindings = m.keys.streamHelp()
		if status.OverlayOpen {
			bindings = m.keys.overlayHelp()
		}
	default:
		body = m.hostListView()
		bindings = m.keys.browseHelp()
	}

	footer := m.help.ShortHelpView(bindings)
	if m.logLine != "" {
		color := m.theme.FaintText
		switch {
		case m.logLevel >= slog.LevelError:
			color = m.theme.ErrorText
		case m.logLevel >= slog.LevelWarn:
			color = m.theme.WarnText
		}
		footer = lipgloss.NewStyle().Foreground(color).Render(m.logLine) + "\n" + footer
	}

	view := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", footer)
	if status.Phase == stream.PhaseStreaming && status.OverlayOpen {
		menu := tui.MenuBox(m.theme, "Stream menu", overlayItems, m.overlayCursor)
		x, y := tui.CenterAnchor(max(m.width, lipgloss.Width(view)), lipgloss.Height(view), menu)
		view = tui.SpliceOverlay(view, menu, x, y)
	}
	return view
}

func (m model) hostListView() string {
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	selected := lipgloss.NewStyle().
		Foreground(m.theme.SelectedForeground).
		Background(m.theme.SelectedBackground)

	var lines []string
	if len(m.hosts) == 0 {
		lines = append(lines, faint.Render("waiting for hosts..."))
	}
	for index, host := range m.hosts {
		line := fmt.Sprintf("%-24s %-22s %s", host.Name, host.Address, host.Version)
		if index == m.cursor {
			lines = append(lines, selected.Render("> "+line))
			continue
		}
		lines = append(lines, "  "+line)
	}
	if m.board.lastEvent != "" {
		lines = append(lines, "", faint.Render(m.board.lastEvent))
	}
	return strings.Join(lines, "\n")
}

func (m model) streamView() string {
	info := m.board.session
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.BorderColor).
		Padding(0, 1)
	lines := []string{
		fmt.Sprintf("host      %s (%s)", info.Host.Name, info.StreamAddress),
		fmt.Sprintf("session   %s", info.SessionID),
		fmt.Sprintf("uptime    %s", time.Since(m.board.connectedAt).Truncate(time.Second)),
		fmt.Sprintf("input     %d events", m.board.forwarded),
	}
	if m.board.backHeld {
		lines = append(lines, lipgloss.NewStyle().Foreground(m.theme.WarnText).Render("back held"))
	}
	return box.Render(strings.Join(lines, "\n"))
}
