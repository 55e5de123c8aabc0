// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/hoststream/lib/clock"
	"github.com/bureau-foundation/hoststream/lib/netutil"
	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/stream"
	"github.com/bureau-foundation/hoststream/transport"
)

// DefaultHandshakeTimeout bounds dial plus negotiation.
const DefaultHandshakeTimeout = 10 * time.Second

// goodbyeTimeout bounds the farewell write on a stalled connection.
const goodbyeTimeout = time.Second

var (
	// ErrRejected is reported through Failed when the host refuses the
	// hello.
	ErrRejected = errors.New("session: rejected by host")

	// ErrHandshakeTimeout is reported through Failed when dial and
	// negotiation do not finish in time.
	ErrHandshakeTimeout = errors.New("session: handshake timed out")

	// ErrDisconnected is reported through Failed when Disconnect is
	// called before the session connected.
	ErrDisconnected = errors.New("session: disconnected before connecting")
)

// Compile-time interface checks.
var (
	_ stream.SessionFactory = (*Factory)(nil)
	_ stream.Session        = (*Session)(nil)
)

// Factory creates client sessions. It implements [stream.SessionFactory].
type Factory struct {
	// Dialer opens the stream connection. Required.
	Dialer transport.Dialer

	// Clock measures the handshake deadline. If nil, the real clock is
	// used.
	Clock clock.Clock

	// Logger receives diagnostic messages. Required.
	Logger *slog.Logger

	// HandshakeTimeout bounds dial plus negotiation. Zero selects
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration
}

// Create returns an unstarted session. The first Connect starts it.
func (f *Factory) Create(info schema.SessionInfo, config schema.SessionConfig, callbacks stream.SessionCallbacks) (stream.Session, error) {
	if f.Dialer == nil {
		return nil, errors.New("session factory: Dialer is required")
	}
	if f.Logger == nil {
		return nil, errors.New("session factory: Logger is required")
	}
	if info.StreamAddress == "" {
		return nil, fmt.Errorf("session %s: empty stream address", info.SessionID)
	}
	sessionClock := f.Clock
	if sessionClock == nil {
		sessionClock = clock.Real()
	}
	timeout := f.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		info:             info,
		config:           config,
		callbacks:        callbacks,
		dialer:           f.Dialer,
		clock:            sessionClock,
		logger:           f.Logger.With("session", info.SessionID),
		handshakeTimeout: timeout,
		ctx:              ctx,
		cancel:           cancel,
		proceed:          make(chan struct{}, 1),
		done:             make(chan struct{}),
	}, nil
}

// Session is a client streaming session. Its exported methods are safe
// for concurrent use.
type Session struct {
	info             schema.SessionInfo
	config           schema.SessionConfig
	callbacks        stream.SessionCallbacks
	dialer           transport.Dialer
	clock            clock.Clock
	logger           *slog.Logger
	handshakeTimeout time.Duration

	// ctx is cancelled by Disconnect and by the handshake deadline.
	ctx    context.Context
	cancel context.CancelFunc

	// proceed carries the second Connect to the worker.
	proceed chan struct{}

	// done is closed when the worker exits, or by Disconnect if the
	// worker never started.
	done chan struct{}

	mu        sync.Mutex
	connects  int
	conn      net.Conn
	welcomed  bool
	stopped   bool
	destroyed bool
	failure   error
	providers []stream.InputProvider

	// writeMu serializes frames on conn.
	writeMu sync.Mutex

	disconnectOnce sync.Once
}

// Info implements [stream.Session].
func (s *Session) Info() schema.SessionInfo { return s.info }

// Connect implements [stream.Session].
func (s *Session) Connect() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.connects++
	n := s.connects
	s.mu.Unlock()

	switch n {
	case 1:
		go s.run()
	case 2:
		select {
		case s.proceed <- struct{}{}:
		default:
		}
	default:
		s.logger.Debug("ignoring extra connect", "count", n)
	}
}

// Disconnect implements [stream.Session].
func (s *Session) Disconnect() {
	s.disconnectOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		started := s.connects > 0
		conn := s.conn
		welcomed := s.welcomed
		s.mu.Unlock()

		if welcomed {
			conn.SetWriteDeadline(time.Now().Add(goodbyeTimeout))
			if err := s.writeMessage(conn, MessageGoodbye, &Goodbye{Reason: "client disconnect"}); err != nil {
				s.logger.Debug("sending goodbye failed", "error", err)
			}
		}
		s.cancel()
		if conn != nil {
			conn.Close()
		}
		if !started {
			close(s.done)
		}
	})
}

// Join implements [stream.Session].
func (s *Session) Join() {
	<-s.done
}

// Destroy implements [stream.Session].
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.providers = nil
}

func (s *Session) run() {
	defer close(s.done)
	defer s.callbacks.Finalized(s)

	deadline := s.clock.AfterFunc(s.handshakeTimeout, s.abortHandshake)

	conn, err := s.dialer.DialContext(s.ctx, s.info.StreamAddress)
	if err != nil {
		deadline.Stop()
		s.callbacks.Failed(s, s.failureCause(fmt.Errorf("dialing %s: %w", s.info.StreamAddress, err)))
		return
	}
	if !s.attach(conn) {
		conn.Close()
		deadline.Stop()
		s.callbacks.Failed(s, s.failureCause(ErrDisconnected))
		return
	}
	defer conn.Close()
	s.logger.Debug("stream connection open", "address", s.info.StreamAddress)
	s.callbacks.Initialized(s)

	select {
	case <-s.proceed:
	case <-s.ctx.Done():
		deadline.Stop()
		s.callbacks.Failed(s, s.failureCause(ErrDisconnected))
		return
	}

	config := s.config
	s.callbacks.Configuring(s, &config)
	hello := &Hello{SessionID: s.info.SessionID, Token: s.info.Token, Config: config}
	if err := s.writeMessage(conn, MessageHello, hello); err != nil {
		deadline.Stop()
		s.callbacks.Failed(s, s.failureCause(err))
		return
	}
	welcome, err := awaitWelcome(conn)
	deadline.Stop()
	if err == nil {
		err = s.markWelcomed()
	}
	if err != nil {
		s.callbacks.Failed(s, s.failureCause(err))
		return
	}
	s.logger.Info("session negotiated", "host", welcome.HostName, "hevc", config.EnableHEVC)
	s.callbacks.Connected(s)

	s.readLoop(conn)

	s.mu.Lock()
	s.welcomed = false
	s.mu.Unlock()
	s.callbacks.Disconnected(s)
}

// attach records conn unless Disconnect already ran.
func (s *Session) attach(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conn = conn
	return true
}

func (s *Session) markWelcomed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if s.stopped {
		return ErrDisconnected
	}
	s.welcomed = true
	return nil
}

// abortHandshake runs on the clock when the handshake deadline passes.
func (s *Session) abortHandshake() {
	s.mu.Lock()
	if s.welcomed || s.stopped {
		s.mu.Unlock()
		return
	}
	s.failure = ErrHandshakeTimeout
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		conn.Close()
	}
}

// failureCause prefers the recorded reason (timeout, disconnect) over
// the I/O error it provoked.
func (s *Session) failureCause(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.failure != nil:
		return s.failure
	case s.stopped:
		return ErrDisconnected
	default:
		return err
	}
}

func awaitWelcome(conn net.Conn) (*Welcome, error) {
	frame, err := ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("awaiting welcome: %w", err)
	}
	message, err := DecodeFrame(frame)
	if err != nil {
		return nil, err
	}
	switch message := message.(type) {
	case *Welcome:
		return message, nil
	case *Reject:
		return nil, fmt.Errorf("%w: %s", ErrRejected, message.Reason)
	default:
		return nil, fmt.Errorf("expected welcome, got frame 0x%02x", frame.Type)
	}
}

func (s *Session) readLoop(conn net.Conn) {
	for {
		frame, err := ReadFrame(conn)
		if err != nil {
			if netutil.IsExpectedCloseError(err) || s.ctx.Err() != nil {
				s.logger.Debug("stream connection closed", "error", err)
			} else {
				s.logger.Warn("stream connection failed", "error", err)
			}
			return
		}
		if frame.Type == MessageGoodbye {
			reason := ""
			if message, err := DecodeFrame(frame); err == nil {
				reason = message.(*Goodbye).Reason
			}
			s.logger.Info("host ended session", "reason", reason)
			return
		}
		s.logger.Debug("ignoring host frame", "type", frame.Type)
	}
}

func (s *Session) writeMessage(conn net.Conn, messageType byte, payload any) error {
	frame, err := encodeFrame(messageType, payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return WriteFrame(conn, frame)
}

// send writes an input frame if the session is connected. It reports
// whether the frame was written.
func (s *Session) send(messageType byte, payload any) bool {
	s.mu.Lock()
	conn, ready := s.conn, s.welcomed
	s.mu.Unlock()
	if !ready {
		s.logger.Debug("dropping input while not connected", "type", messageType)
		return false
	}
	if err := s.writeMessage(conn, messageType, payload); err != nil {
		if !netutil.IsExpectedCloseError(err) && !errors.Is(err, os.ErrDeadlineExceeded) {
			s.logger.Warn("sending input failed", "type", messageType, "error", err)
		}
		return false
	}
	return true
}

// AddInputProvider implements [stream.Session].
func (s *Session) AddInputProvider(provider stream.InputProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, provider)
}

// NotifyDeviceChange implements [stream.Session].
func (s *Session) NotifyDeviceChange() {
	s.mu.Lock()
	providers := s.providers
	s.mu.Unlock()

	inventory := &DeviceInventory{Devices: []stream.ControllerDevice{}}
	for _, provider := range providers {
		inventory.Devices = append(inventory.Devices, provider.Devices()...)
	}
	s.send(MessageDeviceInventory, inventory)
}

// ResetControllers implements [stream.Session].
func (s *Session) ResetControllers() {
	s.send(MessageControllerReset, nil)
}

func (s *Session) SendMouseMovement(dx, dy int) {
	s.send(MessageMouseMove, &MouseMove{DX: dx, DY: dy})
}

func (s *Session) SendMousePosition(x, y float64) {
	s.send(MessageMousePosition, &MousePosition{X: x, Y: y})
}

func (s *Session) SendMouseButton(button schema.MouseButton, pressed bool) {
	s.send(MessageMouseButton, &MouseButton{Button: button, Pressed: pressed})
}

func (s *Session) SendMouseWheel(direction schema.WheelDirection) {
	s.send(MessageMouseWheel, &MouseWheel{Direction: direction})
}

func (s *Session) SendKey(code schema.KeyCode, pressed bool) {
	s.send(MessageKey, &Key{Code: code, Pressed: pressed})
}

// HandleControllerEvent implements [stream.Session]. It reports whether
// the event was sent.
func (s *Session) HandleControllerEvent(event stream.ControllerEvent) bool {
	switch event := event.(type) {
	case stream.ControllerButtonEvent:
		return s.send(MessageControllerButton, &ControllerButton{
			Device: event.Device, Button: event.Button, Pressed: event.Pressed,
		})
	case stream.ControllerAxisEvent:
		return s.send(MessageControllerAxis, &ControllerAxis{
			Device: event.Device, Axis: event.Axis, Value: event.Value,
		})
	case stream.ControllerDeviceEvent:
		return s.send(MessageDeviceChange, &DeviceChange{Device: event.Device, Change: event.Change})
	default:
		return false
	}
}
