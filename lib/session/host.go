// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/hoststream/lib/clock"
	"github.com/bureau-foundation/hoststream/lib/netutil"
	"github.com/bureau-foundation/hoststream/lib/schema"
)

// HostEventKind classifies a [HostEvent].
type HostEventKind int

const (
	// HostEventJoined is delivered once per session after the welcome
	// is sent. Config carries the negotiated parameters.
	HostEventJoined HostEventKind = iota + 1

	// HostEventInput carries one decoded input message.
	HostEventInput

	// HostEventLeft is delivered when the session's connection ends.
	HostEventLeft
)

func (k HostEventKind) String() string {
	switch k {
	case HostEventJoined:
		return "joined"
	case HostEventInput:
		return "input"
	case HostEventLeft:
		return "left"
	default:
		return fmt.Sprintf("HostEventKind(%d)", int(k))
	}
}

// HostEvent is something that happened on a hosted session.
type HostEvent struct {
	SessionID string
	Kind      HostEventKind

	// Config is set for HostEventJoined.
	Config *schema.SessionConfig

	// Message is set for HostEventInput: one of the pointer payload
	// types from protocol.go, or nil for a controller reset.
	Message any

	// MessageType is the frame type of Message.
	MessageType byte
}

// Authorizer decides whether a hello may start a session. A non-nil
// error is sent back to the client as the reject reason.
type Authorizer func(hello *Hello) error

// HostOptions configures a [Host].
type HostOptions struct {
	// Name is reported to clients in the welcome.
	Name string

	// Authorize checks each hello. Required.
	Authorize Authorizer

	// OnEvent receives session events, called from the connection's
	// goroutine. Optional.
	OnEvent func(HostEvent)

	// HandshakeTimeout bounds how long a new connection may take to
	// send its hello. Zero selects DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// Clock measures the handshake deadline. If nil, the real clock is
	// used.
	Clock clock.Clock

	// Logger receives diagnostic messages. Required.
	Logger *slog.Logger
}

// Host serves the stream side of sessions. Handle is a
// [transport.ConnHandler].
type Host struct {
	options HostOptions

	mu       sync.Mutex
	sessions map[string]*hostConn
}

type hostConn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

func (c *hostConn) write(messageType byte, payload any) error {
	frame, err := encodeFrame(messageType, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteFrame(c.conn, frame)
}

// NewHost validates options and returns a host endpoint.
func NewHost(options HostOptions) (*Host, error) {
	if options.Authorize == nil {
		return nil, errors.New("session host: Authorize is required")
	}
	if options.Logger == nil {
		return nil, errors.New("session host: Logger is required")
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.HandshakeTimeout <= 0 {
		options.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &Host{
		options:  options,
		sessions: make(map[string]*hostConn),
	}, nil
}

// Handle serves one stream connection until it closes. It owns conn.
func (h *Host) Handle(conn net.Conn) {
	defer conn.Close()
	logger := h.options.Logger.With("remote", conn.RemoteAddr().String())

	deadline := h.options.Clock.AfterFunc(h.options.HandshakeTimeout, func() { conn.Close() })
	hello, err := readHello(conn)
	deadline.Stop()
	if err != nil {
		logger.Warn("stream handshake failed", "error", err)
		return
	}
	logger = logger.With("session", hello.SessionID)

	session := &hostConn{conn: conn}
	if err := h.options.Authorize(hello); err != nil {
		logger.Warn("rejecting session", "error", err)
		if writeErr := session.write(MessageReject, &Reject{Reason: err.Error()}); writeErr != nil {
			logger.Debug("sending reject failed", "error", writeErr)
		}
		return
	}
	if !h.register(hello.SessionID, session) {
		logger.Warn("rejecting duplicate session")
		session.write(MessageReject, &Reject{Reason: "session already connected"})
		return
	}
	defer h.unregister(hello.SessionID, session)

	if err := session.write(MessageWelcome, &Welcome{SessionID: hello.SessionID, HostName: h.options.Name}); err != nil {
		logger.Warn("sending welcome failed", "error", err)
		return
	}
	logger.Info("session joined",
		"client", hello.Config.ClientName,
		"width", hello.Config.Width,
		"height", hello.Config.Height,
		"hevc", hello.Config.EnableHEVC,
	)
	config := hello.Config
	h.emit(HostEvent{SessionID: hello.SessionID, Kind: HostEventJoined, Config: &config})
	defer h.emit(HostEvent{SessionID: hello.SessionID, Kind: HostEventLeft})

	for {
		frame, err := ReadFrame(conn)
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Warn("stream read failed", "error", err)
			}
			return
		}
		if frame.Type == MessageGoodbye {
			logger.Info("client ended session")
			return
		}
		message, err := DecodeFrame(frame)
		if err != nil {
			logger.Warn("dropping malformed frame", "type", frame.Type, "error", err)
			continue
		}
		h.emit(HostEvent{SessionID: hello.SessionID, Kind: HostEventInput, Message: message, MessageType: frame.Type})
	}
}

func readHello(conn net.Conn) (*Hello, error) {
	frame, err := ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("reading hello: %w", err)
	}
	if frame.Type != MessageHello {
		return nil, fmt.Errorf("expected hello, got frame 0x%02x", frame.Type)
	}
	message, err := DecodeFrame(frame)
	if err != nil {
		return nil, err
	}
	return message.(*Hello), nil
}

func (h *Host) register(sessionID string, session *hostConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.sessions[sessionID]; exists {
		return false
	}
	h.sessions[sessionID] = session
	return true
}

func (h *Host) unregister(sessionID string, session *hostConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sessionID] == session {
		delete(h.sessions, sessionID)
	}
}

func (h *Host) emit(event HostEvent) {
	if h.options.OnEvent != nil {
		h.options.OnEvent(event)
	}
}

// Sessions returns the IDs of connected sessions, sorted.
func (h *Host) Sessions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Disconnect says goodbye to a session and closes its connection. It
// reports whether the session was connected.
func (h *Host) Disconnect(sessionID, reason string) bool {
	h.mu.Lock()
	session, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	if err := session.write(MessageGoodbye, &Goodbye{Reason: reason}); err != nil {
		h.options.Logger.Debug("sending goodbye failed", "session", sessionID, "error", err)
	}
	session.conn.Close()
	return true
}

// Close disconnects every session.
func (h *Host) Close() {
	for _, id := range h.Sessions() {
		h.Disconnect(id, "host shutting down")
	}
}
