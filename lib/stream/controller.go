// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/hoststream/lib/clock"
	"github.com/bureau-foundation/hoststream/lib/listeners"
	"github.com/bureau-foundation/hoststream/lib/mainloop"
	"github.com/bureau-foundation/hoststream/lib/schema"
)

const (
	// DefaultBackHoldInterval is the back gesture polling period.
	DefaultBackHoldInterval = 16 * time.Millisecond

	// DefaultBackHoldTicks is how many consecutive polls with the back
	// button held open the overlay.
	DefaultBackHoldTicks = 100
)

// Options configures a [Controller].
type Options struct {
	// Directory brokers session requests. Required.
	Directory HostDirectory

	// Sessions creates the session for an issued session description.
	// Required.
	Sessions SessionFactory

	// Dispatcher runs listener notifications and teardown on the main
	// goroutine. Required.
	Dispatcher mainloop.Dispatcher

	// NewMedia creates the presentation for each session. If nil,
	// sessions run without presentation.
	NewMedia func() Media

	// MotionFilter, if set, suppresses mouse motion already forwarded
	// by a capture path.
	MotionFilter MotionFilter

	// InputProviders are registered with every session.
	InputProviders []InputProvider

	// ClientConfig is the negotiation request for every session.
	ClientConfig schema.SessionConfig

	// RelativeMouse forwards motion as deltas instead of absolute
	// positions.
	RelativeMouse bool

	// BackHoldInterval and BackHoldTicks shape the back gesture. Zero
	// values select DefaultBackHoldInterval and DefaultBackHoldTicks.
	BackHoldInterval time.Duration
	BackHoldTicks    int

	// Clock drives the back gesture. If nil, the real clock is used.
	Clock clock.Clock

	// Logger receives diagnostic messages. If nil, errors are logged to
	// stderr.
	Logger *slog.Logger
}

// Controller supervises one streaming session at a time. See the
// package documentation for the lifecycle and threading model.
type Controller struct {
	directory        HostDirectory
	sessions         SessionFactory
	dispatcher       mainloop.Dispatcher
	newMedia         func() Media
	motion           MotionFilter
	providers        []InputProvider
	clientConfig     schema.SessionConfig
	relativeMouse    bool
	backHoldInterval time.Duration
	backHoldTicks    int
	clock            clock.Clock
	logger           *slog.Logger

	listeners    listeners.Registry[Listener]
	hostListener listeners.Handle

	mu       sync.Mutex
	state    state
	viewport viewport
	closed   bool

	// pending holds teardowns posted to the dispatcher that have not
	// started yet.
	pending map[*teardown]struct{}
}

type viewport struct {
	width, height int
}

// New creates a controller in the Idle state and registers it with the
// host directory.
func New(options Options) (*Controller, error) {
	if options.Directory == nil {
		return nil, errors.New("stream: Directory is required")
	}
	if options.Sessions == nil {
		return nil, errors.New("stream: Sessions is required")
	}
	if options.Dispatcher == nil {
		return nil, errors.New("stream: Dispatcher is required")
	}
	if options.BackHoldInterval < 0 || options.BackHoldTicks < 0 {
		return nil, fmt.Errorf("stream: negative back gesture parameters (%v, %d)",
			options.BackHoldInterval, options.BackHoldTicks)
	}
	if options.NewMedia == nil {
		options.NewMedia = func() Media { return nopMedia{} }
	}
	if options.BackHoldInterval == 0 {
		options.BackHoldInterval = DefaultBackHoldInterval
	}
	if options.BackHoldTicks == 0 {
		options.BackHoldTicks = DefaultBackHoldTicks
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	c := &Controller{
		directory:        options.Directory,
		sessions:         options.Sessions,
		dispatcher:       options.Dispatcher,
		newMedia:         options.NewMedia,
		motion:           options.MotionFilter,
		providers:        options.InputProviders,
		clientConfig:     options.ClientConfig,
		relativeMouse:    options.RelativeMouse,
		backHoldInterval: options.BackHoldInterval,
		backHoldTicks:    options.BackHoldTicks,
		clock:            options.Clock,
		logger:           options.Logger,
		state:            &idleState{},
	}
	c.hostListener = c.directory.RegisterListener(hostListener{c})
	return c, nil
}

// Start requests a session with host. It returns false, changing
// nothing, unless the controller is idle.
func (c *Controller) Start(host schema.HostInfo) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if _, ok := c.state.(*idleState); !ok {
		c.mu.Unlock()
		return false
	}
	c.transition(&requestingState{host: host})
	c.mu.Unlock()

	c.logger.Info("requesting session", "host", host.Name, "address", host.Address)
	c.directory.RequestSession(host)
	return true
}

// CancelRequest abandons a pending request and returns to Idle. A
// session issued for it afterwards is ignored. It returns false unless
// the controller is requesting.
func (c *Controller) CancelRequest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	requesting, ok := c.state.(*requestingState)
	if !ok {
		return false
	}
	c.transition(&idleState{})
	c.logger.Info("session request cancelled", "host", requesting.host.Name)
	return true
}

// ActiveSession returns the live session. It is only available while
// streaming.
func (c *Controller) ActiveSession() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	streaming, ok := c.state.(*streamingState)
	if !ok {
		return nil, false
	}
	return streaming.session, true
}

// StopActive asks the streaming session to disconnect. The state
// changes later, when the session reports Disconnected. It does nothing
// unless streaming.
func (c *Controller) StopActive() {
	c.mu.Lock()
	streaming, ok := c.state.(*streamingState)
	if !ok {
		c.mu.Unlock()
		return
	}
	streaming.disconnectRequested = true
	session := streaming.session
	c.mu.Unlock()

	c.logger.Info("disconnect requested", "session", session.Info().SessionID)
	session.Disconnect()
}

// IsOverlayOpened reports whether the overlay is open. It is false
// unless streaming.
func (c *Controller) IsOverlayOpened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	streaming, ok := c.state.(*streamingState)
	return ok && streaming.overlayOpen
}

// SetOverlayOpened opens or closes the overlay and shows or hides its
// chrome. It returns false unless streaming.
func (c *Controller) SetOverlayOpened(opened bool) bool {
	c.mu.Lock()
	streaming, ok := c.state.(*streamingState)
	if !ok {
		c.mu.Unlock()
		return false
	}
	streaming.overlayOpen = opened
	media := streaming.media
	c.mu.Unlock()

	media.SetOverlayShown(opened)
	return true
}

// SetViewportSize records the presentation size that absolute mouse
// positions are normalised against.
func (c *Controller) SetViewportSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = viewport{width: width, height: height}
}

// Status returns the current phase and target host.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch current := c.state.(type) {
	case *requestingState:
		return Status{Phase: PhaseRequesting, Host: current.host}
	case *connectingState:
		return Status{Phase: PhaseConnecting, Host: current.host}
	case *streamingState:
		return Status{Phase: PhaseStreaming, Host: current.host, OverlayOpen: current.overlayOpen}
	default:
		return Status{Phase: c.state.phase()}
	}
}

// RegisterListener adds a lifecycle listener.
func (c *Controller) RegisterListener(listener Listener) listeners.Handle {
	return c.listeners.Add(listener)
}

// UnregisterListener removes a lifecycle listener.
func (c *Controller) UnregisterListener(handle listeners.Handle) {
	c.listeners.Remove(handle)
}

// Close tears down any active session and detaches from the host
// directory. It blocks until the session's worker has exited. Cleanup
// posted to the dispatcher that has not run yet runs here instead.
// Session callbacks arriving after Close are ignored. Close is
// idempotent.
//
// Close must not be called on the dispatcher's goroutine while that
// goroutine is still serving the dispatcher: a worker blocked in a
// connect or disconnect notification would never be released.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true

	var (
		session Session
		media   Media
	)
	switch current := c.state.(type) {
	case *connectingState:
		session, media = current.session, current.media
	case *streamingState:
		if current.gesture != nil {
			current.gesture.cancel()
			current.gesture = nil
		}
		session, media = current.session, current.media
	case *disconnectingState:
		session, media = current.session, current.media
	}
	c.state = &idleState{}
	pending := c.takePendingLocked()
	c.mu.Unlock()

	for _, td := range pending {
		td.once.Do(td.fn)
	}
	if session != nil {
		c.logger.Info("tearing down active session", "session", session.Info().SessionID)
		session.Disconnect()
		session.Join()
		session.Destroy()
		media.Close()
	}
	c.directory.UnregisterListener(c.hostListener)
	c.listeners.Clear()
}

// hostListener receives issued sessions from the directory.
type hostListener struct {
	c *Controller
}

func (h hostListener) SessionStarted(info schema.SessionInfo) {
	c := h.c
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	requesting, ok := c.state.(*requestingState)
	if !ok {
		c.mu.Unlock()
		c.logger.Debug("ignoring session started while not requesting",
			"session", info.SessionID)
		return
	}
	if !requesting.host.SameHost(info.Host.Address) {
		c.mu.Unlock()
		c.logger.Debug("ignoring session started for another host",
			"session", info.SessionID, "want", requesting.host.Address, "got", info.Host.Address)
		return
	}
	host := requesting.host
	config := c.clientConfig
	c.mu.Unlock()

	// Session creation happens unlocked. A concurrent CancelRequest or
	// Close wins; the new session is then discarded.
	media := c.newMedia()
	session, err := c.sessions.Create(info, config, sessionCallbacks{c})
	if err != nil {
		c.postTeardown(media.Close)
		c.failRequest(host, fmt.Errorf("creating session: %w", err))
		return
	}
	for _, provider := range c.providers {
		session.AddInputProvider(provider)
	}

	c.mu.Lock()
	if current, ok := c.state.(*requestingState); c.closed || !ok || current != requesting {
		c.mu.Unlock()
		c.logger.Debug("discarding session for abandoned request", "session", info.SessionID)
		// The worker never started, so Disconnect releases Join at once.
		session.Disconnect()
		c.postTeardown(func() {
			session.Join()
			session.Destroy()
			media.Close()
		})
		return
	}
	c.transition(&connectingState{host: host, session: session, media: media})
	c.mu.Unlock()

	c.logger.Info("connecting", "host", host.Name, "session", info.SessionID)
	session.Connect()
}

// failRequest returns a requesting controller to Idle and reports the
// failure to listeners.
func (c *Controller) failRequest(host schema.HostInfo, err error) {
	c.mu.Lock()
	if _, ok := c.state.(*requestingState); c.closed || !ok {
		c.mu.Unlock()
		return
	}
	c.transition(&idleState{})
	c.mu.Unlock()

	c.logger.Error("session request failed", "host", host.Name, "error", err)
	c.dispatcher.PostSync(func() {
		c.listeners.Notify(func(l Listener) { l.ConnectFailed(host, err) })
	})
}

// sessionCallbacks adapts the controller to [SessionCallbacks].
type sessionCallbacks struct {
	c *Controller
}

// lockFor acquires c.mu for a session callback. It returns false,
// with the lock released, if the controller is closed.
func (c *Controller) lockFor(callback string, session Session) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("ignoring session callback after close",
			"callback", callback, "session", session.Info().SessionID)
		return false
	}
	return true
}

func (s sessionCallbacks) Initialized(session Session) {
	c := s.c
	if !c.lockFor("initialized", session) {
		return
	}
	connecting, ok := c.state.(*connectingState)
	if !ok || connecting.session != session {
		current := c.state
		c.mu.Unlock()
		contractViolation("initialized", current)
	}
	if !connecting.host.SameHost(session.Info().Host.Address) {
		c.mu.Unlock()
		panic(fmt.Sprintf("stream: initialized session for %s while connecting to %s",
			session.Info().Host.Address, connecting.host.Address))
	}
	c.mu.Unlock()

	session.Connect()
}

func (s sessionCallbacks) Configuring(session Session, config *schema.SessionConfig) {
	// HEVC stays disabled regardless of the client configuration.
	config.EnableHEVC = false
}

func (s sessionCallbacks) Connected(session Session) {
	c := s.c
	if !c.lockFor("connected", session) {
		return
	}
	connecting, ok := c.state.(*connectingState)
	if !ok || connecting.session != session {
		current := c.state
		c.mu.Unlock()
		contractViolation("connected", current)
	}
	c.transition(&streamingState{
		host:    connecting.host,
		session: connecting.session,
		media:   connecting.media,
	})
	c.mu.Unlock()

	info := session.Info()
	c.logger.Info("streaming", "host", info.Host.Name, "session", info.SessionID)
	c.dispatcher.PostSync(func() {
		c.listeners.Notify(func(l Listener) { l.Connected(info) })
	})
	session.NotifyDeviceChange()
}

func (s sessionCallbacks) Disconnected(session Session) {
	c := s.c
	if !c.lockFor("disconnected", session) {
		return
	}
	streaming, ok := c.state.(*streamingState)
	if !ok || streaming.session != session {
		current := c.state
		c.mu.Unlock()
		contractViolation("disconnected", current)
	}
	requested := streaming.disconnectRequested
	c.transition(&disconnectingState{session: streaming.session, media: streaming.media})
	c.mu.Unlock()

	info := session.Info()
	c.logger.Info("disconnected", "session", info.SessionID, "requested", requested)
	c.dispatcher.PostSync(func() {
		c.listeners.Notify(func(l Listener) { l.Disconnected(info, requested) })
	})
}

func (s sessionCallbacks) Failed(session Session, err error) {
	c := s.c
	if !c.lockFor("failed", session) {
		return
	}
	connecting, ok := c.state.(*connectingState)
	if !ok || connecting.session != session {
		current := c.state
		c.mu.Unlock()
		contractViolation("failed", current)
	}
	host := connecting.host
	c.transition(&disconnectingState{session: connecting.session, media: connecting.media})
	c.mu.Unlock()

	c.logger.Error("connect failed", "host", host.Name, "session", session.Info().SessionID, "error", err)
	c.dispatcher.PostSync(func() {
		c.listeners.Notify(func(l Listener) { l.ConnectFailed(host, err) })
	})
}

func (s sessionCallbacks) Finalized(session Session) {
	c := s.c
	if !c.lockFor("finalized", session) {
		return
	}
	disconnecting, ok := c.state.(*disconnectingState)
	if !ok || disconnecting.session != session {
		current := c.state
		c.mu.Unlock()
		contractViolation("finalized", current)
	}
	media := disconnecting.media
	c.transition(&idleState{})
	c.mu.Unlock()

	c.logger.Debug("session finalized", "session", session.Info().SessionID)
	c.postTeardown(func() {
		session.Join()
		session.Destroy()
		media.Close()
	})
}

type nopMedia struct{}

func (nopMedia) SetOverlayShown(bool) {}
func (nopMedia) Close()               {}
