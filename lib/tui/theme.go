// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/hoststream/lib/stream"
)

// Theme is the client's color palette. Colors are ANSI 256-color codes
// so the client renders the same over SSH and on bare consoles.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Phase colors for the status line.
	PhaseIdle          lipgloss.Color
	PhaseRequesting    lipgloss.Color
	PhaseConnecting    lipgloss.Color
	PhaseStreaming     lipgloss.Color
	PhaseDisconnecting lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	WarnText  lipgloss.Color
	ErrorText lipgloss.Color

	OverlayForeground lipgloss.Color
	OverlayBackground lipgloss.Color
}

// PhaseColor returns the status color for phase.
func (theme Theme) PhaseColor(phase stream.Phase) lipgloss.Color {
	switch phase {
	case stream.PhaseIdle:
		return theme.PhaseIdle
	case stream.PhaseRequesting:
		return theme.PhaseRequesting
	case stream.PhaseConnecting:
		return theme.PhaseConnecting
	case stream.PhaseStreaming:
		return theme.PhaseStreaming
	case stream.PhaseDisconnecting:
		return theme.PhaseDisconnecting
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the palette used unless the caller supplies one.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("243"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	PhaseIdle:          lipgloss.Color("243"),
	PhaseRequesting:    lipgloss.Color("75"),
	PhaseConnecting:    lipgloss.Color("220"),
	PhaseStreaming:     lipgloss.Color("114"),
	PhaseDisconnecting: lipgloss.Color("208"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("243"),

	WarnText:  lipgloss.Color("214"),
	ErrorText: lipgloss.Color("196"),

	OverlayForeground: lipgloss.Color("255"),
	OverlayBackground: lipgloss.Color("237"),
}
