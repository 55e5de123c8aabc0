// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/stream"
)

// keyMap holds the client's own bindings. While streaming with the
// overlay closed, every key outside Quit, Back and Menu is forwarded to
// the host instead.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Connect key.Binding
	Cancel  key.Binding
	Quit    key.Binding

	// Back toggles the virtual pad's back button. Terminals report no
	// key releases, so one press holds it and the next lets go.
	Back key.Binding

	// Menu is the remote's exit key: it opens the stream overlay.
	Menu key.Binding

	Select key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Connect: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Back: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("ctrl+b", "hold/release back"),
		),
		Menu: key.NewBinding(
			key.WithKeys("f10"),
			key.WithHelp("f10", "menu"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "select"),
		),
	}
}

// browseHelp is shown while no session is active.
func (keys keyMap) browseHelp() []key.Binding {
	return []key.Binding{keys.Up, keys.Down, keys.Connect, keys.Cancel, keys.Quit}
}

// streamHelp is shown while streaming. Only ctrl+c quits; q goes to
// the host.
func (keys keyMap) streamHelp() []key.Binding {
	quit := key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))
	return []key.Binding{keys.Back, keys.Menu, quit}
}

func (keys keyMap) overlayHelp() []key.Binding {
	resume := key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "resume"))
	return []key.Binding{keys.Up, keys.Down, keys.Select, resume}
}

// runeKeyCodes maps printable characters to USB HID usage IDs. Shifted
// characters map to their unshifted key.
var runeKeyCodes = map[rune]schema.KeyCode{
	'-': 0x2d, '_': 0x2d,
	'=': 0x2e, '+': 0x2e,
	'[': 0x2f, '{': 0x2f,
	']': 0x30, '}': 0x30,
	'\\': 0x31, '|': 0x31,
	';': 0x33, ':': 0x33,
	'\'': 0x34, '"': 0x34,
	'`': 0x35, '~': 0x35,
	',': 0x36, '<': 0x36,
	'.': 0x37, '>': 0x37,
	'/': 0x38, '?': 0x38,
}

var typeKeyCodes = map[tea.KeyType]schema.KeyCode{
	tea.KeyEnter:     0x28,
	tea.KeyEsc:       schema.KeyCodeEscape,
	tea.KeyBackspace: 0x2a,
	tea.KeyTab:       0x2b,
	tea.KeySpace:     0x2c,
	tea.KeyInsert:    0x49,
	tea.KeyHome:      0x4a,
	tea.KeyPgUp:      0x4b,
	tea.KeyDelete:    0x4c,
	tea.KeyEnd:       0x4d,
	tea.KeyPgDown:    0x4e,
	tea.KeyRight:     0x4f,
	tea.KeyLeft:      0x50,
	tea.KeyDown:      0x51,
	tea.KeyUp:        0x52,
	tea.KeyF1:        0x3a,
	tea.KeyF2:        0x3b,
	tea.KeyF3:        0x3c,
	tea.KeyF4:        0x3d,
	tea.KeyF5:        0x3e,
	tea.KeyF6:        0x3f,
	tea.KeyF7:        0x40,
	tea.KeyF8:        0x41,
	tea.KeyF9:        0x42,
	tea.KeyF10:       0x43,
	tea.KeyF11:       0x44,
	tea.KeyF12:       0x45,
}

// keyCode translates a terminal key to a HID usage ID. Keys with
// modifiers other than shift, and runes outside US ASCII, report false.
func keyCode(msg tea.KeyMsg) (schema.KeyCode, bool) {
	if msg.Alt {
		return 0, false
	}
	if msg.Type != tea.KeyRunes {
		code, ok := typeKeyCodes[msg.Type]
		return code, ok
	}
	if len(msg.Runes) != 1 {
		return 0, false
	}
	r := msg.Runes[0]
	switch {
	case r >= 'a' && r <= 'z':
		return 0x04 + schema.KeyCode(r-'a'), true
	case r >= 'A' && r <= 'Z':
		return 0x04 + schema.KeyCode(r-'A'), true
	case r >= '1' && r <= '9':
		return 0x1e + schema.KeyCode(r-'1'), true
	case r == '0':
		return 0x27, true
	case r == ' ':
		return 0x2c, true
	}
	code, ok := runeKeyCodes[r]
	return code, ok
}

// keyStrokes converts one terminal key into the press and release pair
// the host expects.
func keyStrokes(msg tea.KeyMsg) []stream.KeyEvent {
	code, ok := keyCode(msg)
	if !ok {
		return nil
	}
	return []stream.KeyEvent{
		{Code: code, Pressed: true},
		{Code: code, Pressed: false},
	}
}

// mouseEvent translates a terminal mouse report. Terminal cells stand
// in for pixels; last is the previous pointer position, for relative
// motion.
func mouseEvent(msg tea.MouseMsg, last *pointer) stream.InputEvent {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		return stream.MouseWheelEvent{Y: 1}
	case tea.MouseButtonWheelDown:
		return stream.MouseWheelEvent{Y: -1}
	case tea.MouseButtonWheelLeft:
		return stream.MouseWheelEvent{X: 1}
	case tea.MouseButtonWheelRight:
		return stream.MouseWheelEvent{X: -1}
	}

	if msg.Action == tea.MouseActionMotion {
		event := stream.MouseMotionEvent{X: msg.X, Y: msg.Y}
		if last.known {
			event.RelX, event.RelY = msg.X-last.x, msg.Y-last.y
		}
		last.x, last.y, last.known = msg.X, msg.Y, true
		return event
	}

	var button uint8
	switch msg.Button {
	case tea.MouseButtonLeft:
		button = stream.PlatformMouseLeft
	case tea.MouseButtonMiddle:
		button = stream.PlatformMouseMiddle
	case tea.MouseButtonRight:
		button = stream.PlatformMouseRight
	case tea.MouseButtonBackward:
		button = stream.PlatformMouseX1
	case tea.MouseButtonForward:
		button = stream.PlatformMouseX2
	default:
		return nil
	}
	switch msg.Action {
	case tea.MouseActionPress:
		return stream.MouseButtonEvent{Button: button, Pressed: true}
	case tea.MouseActionRelease:
		return stream.MouseButtonEvent{Button: button, Pressed: false}
	default:
		return nil
	}
}

// pointer is the last reported mouse position.
type pointer struct {
	x, y  int
	known bool
}
