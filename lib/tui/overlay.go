// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// SpliceOverlay replaces the region of view starting at (anchorX,
// anchorY) with overlayLines. Every overlay line must have the display
// width of the first. Escape sequences in view survive on both sides of
// the overlay; lines outside the view are clipped.
func SpliceOverlay(view string, overlayLines []string, anchorX, anchorY int) string {
	if len(overlayLines) == 0 {
		return view
	}

	viewLines := strings.Split(view, "\n")
	overlayWidth := ansi.StringWidth(overlayLines[0])

	for offset, overlayLine := range overlayLines {
		row := anchorY + offset
		if row < 0 || row >= len(viewLines) {
			continue
		}
		base := viewLines[row]

		var line strings.Builder
		if anchorX > 0 {
			prefix := ansi.Truncate(base, anchorX, "")
			line.WriteString(prefix)
			// Short lines are padded so the overlay lands at anchorX.
			if gap := anchorX - ansi.StringWidth(prefix); gap > 0 {
				line.WriteString(strings.Repeat(" ", gap))
			}
		}
		line.WriteString("\x1b[0m")
		line.WriteString(overlayLine)
		line.WriteString("\x1b[0m")

		if resume := anchorX + overlayWidth; resume < ansi.StringWidth(base) {
			line.WriteString(ansi.TruncateLeft(base, resume, ""))
		}
		viewLines[row] = line.String()
	}

	return strings.Join(viewLines, "\n")
}

// CenterAnchor returns the anchor that centers overlayLines in a view of
// the given size. The anchor is never negative.
func CenterAnchor(viewWidth, viewHeight int, overlayLines []string) (x, y int) {
	if len(overlayLines) == 0 {
		return 0, 0
	}
	x = (viewWidth - ansi.StringWidth(overlayLines[0])) / 2
	y = (viewHeight - len(overlayLines)) / 2
	return max(x, 0), max(y, 0)
}

// MenuBox renders a bordered menu with title and items, highlighting the
// item at selected. The result is split into lines of equal width, ready
// for [SpliceOverlay].
func MenuBox(theme Theme, title string, items []string, selected int) []string {
	background := lipgloss.NewStyle().
		Foreground(theme.OverlayForeground).
		Background(theme.OverlayBackground)
	highlight := lipgloss.NewStyle().
		Foreground(theme.SelectedForeground).
		Background(theme.SelectedBackground).
		Bold(true)

	innerWidth := ansi.StringWidth(title)
	for _, item := range items {
		innerWidth = max(innerWidth, ansi.StringWidth(item)+2)
	}

	rows := []string{
		PadOverlayLine(background.Bold(true).Render(title), innerWidth, background),
		PadOverlayLine("", innerWidth, background),
	}
	for index, item := range items {
		if index == selected {
			rows = append(rows, PadOverlayLine(highlight.Render("> "+item), innerWidth, background))
			continue
		}
		rows = append(rows, PadOverlayLine(background.Render("  "+item), innerWidth, background))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.BorderColor).
		BorderBackground(theme.OverlayBackground).
		Render(strings.Join(rows, "\n"))
	return strings.Split(box, "\n")
}

// PadOverlayLine pads styled content to innerWidth with one column of
// margin on each side, filling the padding with the background style.
func PadOverlayLine(styledContent string, innerWidth int, backgroundStyle lipgloss.Style) string {
	rightPad := max(innerWidth-ansi.StringWidth(styledContent), 0)
	return backgroundStyle.Render(" ") +
		styledContent +
		backgroundStyle.Render(strings.Repeat(" ", rightPad+1))
}
