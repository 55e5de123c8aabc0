// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// LogRecordMsg carries a log record into the bubbletea program for the
// status line.
type LogRecordMsg struct {
	// Summary is "message (key=value, ...)".
	Summary string
	Level   slog.Level
}

// Sender is the part of *tea.Program the log handler needs.
type Sender interface {
	Send(msg tea.Msg)
}

type senderRef struct {
	Sender
}

// LogHandler is a slog.Handler that turns records into [LogRecordMsg]
// values for a bubbletea program. Records logged before SetSender are
// dropped.
//
// tea.Program.Send blocks until the event loop receives the message,
// so records logged from inside Update would deadlock. The handler
// therefore sends from a fresh goroutine; records may arrive out of
// order under heavy logging.
type LogHandler struct {
	level  slog.Leveler
	sender *atomic.Pointer[senderRef]
	attrs  []slog.Attr
	groups []string
}

// NewLogHandler creates a handler for records at or above level.
func NewLogHandler(level slog.Leveler) *LogHandler {
	return &LogHandler{
		level:  level,
		sender: &atomic.Pointer[senderRef]{},
	}
}

// SetSender attaches the program. Handlers derived with WithAttrs and
// WithGroup share the attachment.
func (handler *LogHandler) SetSender(sender Sender) {
	handler.sender.Store(&senderRef{sender})
}

func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level.Level()
}

func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	ref := handler.sender.Load()
	if ref == nil {
		return nil
	}

	var parts []string
	for _, attr := range handler.attrs {
		parts = append(parts, attr.Key+"="+attr.Value.String())
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, handler.qualify(attr.Key)+"="+attr.Value.String())
		return true
	})

	summary := record.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}

	go ref.Send(LogRecordMsg{Summary: summary, Level: record.Level})
	return nil
}

// qualify prefixes key with the handler's open groups.
func (handler *LogHandler) qualify(key string) string {
	if len(handler.groups) == 0 {
		return key
	}
	return strings.Join(handler.groups, ".") + "." + key
}

func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *handler
	derived.attrs = append([]slog.Attr(nil), handler.attrs...)
	for _, attr := range attrs {
		derived.attrs = append(derived.attrs, slog.Attr{Key: handler.qualify(attr.Key), Value: attr.Value})
	}
	return &derived
}

func (handler *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	derived := *handler
	derived.groups = append(append([]string(nil), handler.groups...), name)
	return &derived
}
