// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"slices"
	"testing"

	"github.com/bureau-foundation/hoststream/lib/schema"
)

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"missing directory", func(o *Options) { o.Directory = nil }},
		{"missing sessions", func(o *Options) { o.Sessions = nil }},
		{"missing dispatcher", func(o *Options) { o.Dispatcher = nil }},
		{"negative ticks", func(o *Options) { o.BackHoldTicks = -1 }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			options := Options{
				Directory:  &fakeDirectory{},
				Sessions:   &fakeFactory{},
				Dispatcher: &queueDispatcher{},
			}
			test.modify(&options)
			if _, err := New(options); err == nil {
				t.Fatal("New succeeded with invalid options")
			}
		})
	}
}

func TestFullLifecycle(t *testing.T) {
	h := newHarness(t)
	h.requirePhase(PhaseIdle)

	if !h.controller.Start(hostA) {
		t.Fatal("Start from idle returned false")
	}
	h.requirePhase(PhaseRequesting)
	if len(h.directory.requests) != 1 || h.directory.requests[0] != hostA {
		t.Fatalf("directory requests = %v", h.directory.requests)
	}

	h.directory.sessionStarted(sessionFor(hostA, "s1"))
	h.requirePhase(PhaseConnecting)
	session, callbacks := h.factory.last()
	if session.connects != 1 {
		t.Fatalf("connects after session started = %d, want 1", session.connects)
	}
	if len(session.providers) != 1 {
		t.Fatalf("input providers = %d, want 1", len(session.providers))
	}
	if _, ok := h.controller.ActiveSession(); ok {
		t.Fatal("ActiveSession available while connecting")
	}

	callbacks.Initialized(session)
	if session.connects != 2 {
		t.Fatalf("connects after initialized = %d, want 2", session.connects)
	}

	config := session.config
	callbacks.Configuring(session, &config)
	if config.EnableHEVC {
		t.Fatal("Configuring left HEVC enabled")
	}
	if config.Width != 1920 || config.ClientName != "test" {
		t.Fatalf("Configuring changed unrelated fields: %+v", config)
	}

	callbacks.Connected(session)
	h.requirePhase(PhaseStreaming)
	if status := h.controller.Status(); status.Host != hostA || status.OverlayOpen {
		t.Fatalf("status = %+v", status)
	}
	if active, ok := h.controller.ActiveSession(); !ok || active != Session(session) {
		t.Fatal("ActiveSession not the streaming session")
	}
	if session.deviceChanges != 1 {
		t.Fatalf("device changes = %d, want 1", session.deviceChanges)
	}

	h.controller.StopActive()
	if session.disconnects != 1 {
		t.Fatalf("disconnects = %d, want 1", session.disconnects)
	}
	h.requirePhase(PhaseStreaming)

	callbacks.Disconnected(session)
	h.requirePhase(PhaseDisconnecting)

	callbacks.Finalized(session)
	h.requirePhase(PhaseIdle)
	if session.destroyed {
		t.Fatal("session destroyed before main goroutine ran")
	}
	if ran := h.dispatcher.drain(); ran != 1 {
		t.Fatalf("posted tasks = %d, want 1", ran)
	}
	if !session.joined || !session.destroyed {
		t.Fatalf("teardown incomplete: joined=%v destroyed=%v", session.joined, session.destroyed)
	}
	if h.media[0].closed != 1 {
		t.Fatalf("media closed %d times", h.media[0].closed)
	}

	want := []string{"connected:s1", "disconnected:s1:true"}
	if !slices.Equal(h.listener.events, want) {
		t.Fatalf("listener events = %v, want %v", h.listener.events, want)
	}
	if h.dispatcher.syncs != 2 {
		t.Fatalf("PostSync calls = %d, want 2", h.dispatcher.syncs)
	}

	// The controller is reusable once idle.
	if !h.controller.Start(hostB) {
		t.Fatal("Start after a full cycle returned false")
	}
}

func TestPeerDisconnectNotRequested(t *testing.T) {
	h := newHarness(t)
	session, callbacks := h.toStreaming()
	callbacks.Disconnected(session)
	callbacks.Finalized(session)
	if got := h.listener.events[len(h.listener.events)-1]; got != "disconnected:s1:false" {
		t.Fatalf("last event = %q", got)
	}
}

func TestStartTwice(t *testing.T) {
	h := newHarness(t)
	if !h.controller.Start(hostA) {
		t.Fatal("first Start returned false")
	}
	if h.controller.Start(hostB) {
		t.Fatal("second Start returned true")
	}
	status := h.controller.Status()
	if status.Phase != PhaseRequesting || status.Host != hostA {
		t.Fatalf("status after second Start = %+v", status)
	}
	if len(h.directory.requests) != 1 {
		t.Fatalf("directory requests = %d, want 1", len(h.directory.requests))
	}
}

func TestStopActiveOutsideStreaming(t *testing.T) {
	h := newHarness(t)

	h.controller.StopActive()
	h.controller.Start(hostA)
	h.controller.StopActive()
	h.directory.sessionStarted(sessionFor(hostA, "s1"))
	h.controller.StopActive()

	session, _ := h.factory.last()
	if session.disconnects != 0 {
		t.Fatalf("disconnects = %d, want 0", session.disconnects)
	}
	h.requirePhase(PhaseConnecting)
}

func TestMismatchedSessionStartedIgnored(t *testing.T) {
	h := newHarness(t)
	h.controller.Start(hostA)

	h.directory.sessionStarted(sessionFor(hostB, "stale"))
	status := h.controller.Status()
	if status.Phase != PhaseRequesting || status.Host != hostA {
		t.Fatalf("status after mismatched session = %+v", status)
	}
	if session, _ := h.factory.last(); session != nil {
		t.Fatal("session created for mismatched host")
	}

	// Same IP on a different port is the same host.
	info := sessionFor(hostA, "s1")
	info.Host.Address = netipWithPort(hostA, 40000)
	h.directory.sessionStarted(info)
	h.requirePhase(PhaseConnecting)
}

func TestSessionStartedOutsideRequestingIgnored(t *testing.T) {
	h := newHarness(t)
	h.directory.sessionStarted(sessionFor(hostA, "unsolicited"))
	h.requirePhase(PhaseIdle)

	session, _ := h.toConnecting()
	h.directory.sessionStarted(sessionFor(hostA, "duplicate"))
	if latest, _ := h.factory.last(); latest != session {
		t.Fatal("duplicate session started created a second session")
	}
}

func TestCancelRequest(t *testing.T) {
	h := newHarness(t)
	if h.controller.CancelRequest() {
		t.Fatal("CancelRequest while idle returned true")
	}
	h.controller.Start(hostA)
	if !h.controller.CancelRequest() {
		t.Fatal("CancelRequest while requesting returned false")
	}
	h.requirePhase(PhaseIdle)

	h.directory.sessionStarted(sessionFor(hostA, "late"))
	h.requirePhase(PhaseIdle)
}

func TestSessionCreateFailure(t *testing.T) {
	h := newHarness(t)
	h.factory.err = errDial
	h.controller.Start(hostA)
	h.directory.sessionStarted(sessionFor(hostA, "s1"))

	h.requirePhase(PhaseIdle)
	if len(h.listener.events) != 1 || h.listener.events[0] != "failed:den:creating session: dial refused" {
		t.Fatalf("listener events = %v", h.listener.events)
	}
	if h.media[0].closed != 0 {
		t.Fatal("media released off the main goroutine")
	}
	if ran := h.dispatcher.drain(); ran != 1 {
		t.Fatalf("posted tasks = %d, want 1", ran)
	}
	if h.media[0].closed != 1 {
		t.Fatal("media not released after create failure")
	}
}

func TestRequestAbandonedDuringCreate(t *testing.T) {
	h := newHarness(t)
	h.controller.Start(hostA)

	// The user cancels and asks again while the first session is being
	// built; the first session belongs to the abandoned request.
	h.factory.onCreate = func() {
		if !h.controller.CancelRequest() {
			t.Error("CancelRequest during create returned false")
		}
		if !h.controller.Start(hostA) {
			t.Error("Start during create returned false")
		}
	}
	h.directory.sessionStarted(sessionFor(hostA, "s1"))

	status := h.controller.Status()
	if status.Phase != PhaseRequesting || status.Host != hostA {
		t.Fatalf("status after abandoned create = %+v", status)
	}
	abandoned, _ := h.factory.last()
	if abandoned.connects != 0 {
		t.Fatalf("abandoned session connected %d times", abandoned.connects)
	}
	if abandoned.destroyed || h.media[0].closed != 0 {
		t.Fatal("abandoned session released off the main goroutine")
	}
	if ran := h.dispatcher.drain(); ran != 1 {
		t.Fatalf("posted tasks = %d, want 1", ran)
	}
	if !abandoned.joined || !abandoned.destroyed {
		t.Fatalf("abandoned session not torn down: joined=%v destroyed=%v", abandoned.joined, abandoned.destroyed)
	}
	if h.media[0].closed != 1 {
		t.Fatal("abandoned media not released")
	}

	// The fresh request still completes.
	h.directory.sessionStarted(sessionFor(hostA, "s2"))
	h.requirePhase(PhaseConnecting)
	if session, _ := h.factory.last(); session == abandoned || session.connects != 1 {
		t.Fatal("fresh request did not connect a new session")
	}
}

func TestConnectFailure(t *testing.T) {
	h := newHarness(t)
	session, callbacks := h.toConnecting()
	callbacks.Initialized(session)

	callbacks.Failed(session, errors.New("handshake rejected"))
	h.requirePhase(PhaseDisconnecting)
	callbacks.Finalized(session)
	h.requirePhase(PhaseIdle)
	h.dispatcher.drain()

	if !session.destroyed {
		t.Fatal("failed session not destroyed")
	}
	if want := []string{"failed:den:handshake rejected"}; !slices.Equal(h.listener.events, want) {
		t.Fatalf("listener events = %v, want %v", h.listener.events, want)
	}
}

func TestOutOfOrderCallbacks(t *testing.T) {
	// Every callback delivered in a state that could not have produced
	// it panics, and a panicking callback leaves the state unchanged.
	type step func(callbacks SessionCallbacks, session Session)
	initialized := func(c SessionCallbacks, s Session) { c.Initialized(s) }
	connected := func(c SessionCallbacks, s Session) { c.Connected(s) }
	disconnected := func(c SessionCallbacks, s Session) { c.Disconnected(s) }
	finalized := func(c SessionCallbacks, s Session) { c.Finalized(s) }
	failed := func(c SessionCallbacks, s Session) { c.Failed(s, errDial) }

	tests := []struct {
		name    string
		setup   func(h *harness) (*fakeSession, SessionCallbacks)
		phase   Phase
		illegal map[string]step
	}{
		{
			name: "idle",
			setup: func(h *harness) (*fakeSession, SessionCallbacks) {
				// Complete one cycle so a session and its callbacks exist.
				session, callbacks := h.toStreaming()
				callbacks.Disconnected(session)
				callbacks.Finalized(session)
				return session, callbacks
			},
			phase: PhaseIdle,
			illegal: map[string]step{
				"initialized": initialized, "connected": connected,
				"disconnected": disconnected, "finalized": finalized, "failed": failed,
			},
		},
		{
			name:  "connecting",
			setup: (*harness).toConnecting,
			phase: PhaseConnecting,
			illegal: map[string]step{
				"disconnected": disconnected, "finalized": finalized,
			},
		},
		{
			name:  "streaming",
			setup: (*harness).toStreaming,
			phase: PhaseStreaming,
			illegal: map[string]step{
				"initialized": initialized, "connected": connected,
				"finalized": finalized, "failed": failed,
			},
		},
		{
			name: "disconnecting",
			setup: func(h *harness) (*fakeSession, SessionCallbacks) {
				session, callbacks := h.toStreaming()
				callbacks.Disconnected(session)
				return session, callbacks
			},
			phase: PhaseDisconnecting,
			illegal: map[string]step{
				"initialized": initialized, "connected": connected,
				"disconnected": disconnected, "failed": failed,
			},
		},
	}
	for _, test := range tests {
		for name, call := range test.illegal {
			t.Run(test.name+"/"+name, func(t *testing.T) {
				h := newHarness(t)
				session, callbacks := test.setup(h)
				requirePanic(t, name, func() { call(callbacks, session) })
				h.requirePhase(test.phase)
			})
		}
	}
}

func TestCallbackFromForeignSessionPanics(t *testing.T) {
	h := newHarness(t)
	_, callbacks := h.toConnecting()
	foreign := &fakeSession{info: sessionFor(hostA, "other")}
	requirePanic(t, "connected from foreign session", func() { callbacks.Connected(foreign) })
	h.requirePhase(PhaseConnecting)
}

func TestInitializedHostMismatchPanics(t *testing.T) {
	h := newHarness(t)
	session, callbacks := h.toConnecting()
	session.info.Host = hostB
	requirePanic(t, "initialized for another host", func() { callbacks.Initialized(session) })
}

func TestOverlayOnlyWhileStreaming(t *testing.T) {
	h := newHarness(t)
	if h.controller.SetOverlayOpened(true) {
		t.Fatal("SetOverlayOpened while idle returned true")
	}
	if h.controller.IsOverlayOpened() {
		t.Fatal("IsOverlayOpened while idle")
	}

	session, callbacks := h.toStreaming()
	if !h.controller.SetOverlayOpened(true) {
		t.Fatal("SetOverlayOpened while streaming returned false")
	}
	if !h.controller.IsOverlayOpened() {
		t.Fatal("overlay not open after SetOverlayOpened(true)")
	}
	if !slices.Equal(h.media[0].overlay, []bool{true}) {
		t.Fatalf("media overlay calls = %v", h.media[0].overlay)
	}

	// Leaving Streaming discards the overlay flag.
	callbacks.Disconnected(session)
	if h.controller.IsOverlayOpened() {
		t.Fatal("overlay reported open while disconnecting")
	}
	callbacks.Finalized(session)
	h.dispatcher.drain()

	h.toStreaming()
	if h.controller.IsOverlayOpened() {
		t.Fatal("overlay open on entry to a new streaming state")
	}
}

func TestCloseWhileStreaming(t *testing.T) {
	h := newHarness(t)
	session, callbacks := h.toStreaming()
	h.controller.HandleInputEvent(ControllerButtonEvent{Button: schema.ButtonBack, Pressed: true})

	h.controller.Close()

	if session.disconnects != 1 || !session.joined || !session.destroyed {
		t.Fatalf("session not torn down: disconnects=%d joined=%v destroyed=%v",
			session.disconnects, session.joined, session.destroyed)
	}
	if h.media[0].closed != 1 {
		t.Fatal("media not released")
	}
	if h.controller.listeners.Len() != 0 {
		t.Fatalf("listeners remaining = %d", h.controller.listeners.Len())
	}
	if !h.directory.unregistered {
		t.Fatal("host listener not unregistered")
	}
	if h.clock.PendingCount() != 0 {
		t.Fatalf("gesture timer still pending after Close")
	}
	h.requirePhase(PhaseIdle)

	// The worker's late callbacks are ignored rather than treated as
	// contract violations.
	callbacks.Disconnected(session)
	callbacks.Finalized(session)
	h.requirePhase(PhaseIdle)

	// Idempotent.
	h.controller.Close()
	if session.disconnects != 1 {
		t.Fatal("second Close disconnected again")
	}
	if h.controller.Start(hostA) {
		t.Fatal("Start after Close returned true")
	}
}

func TestCloseRunsPendingTeardown(t *testing.T) {
	h := newHarness(t)
	session, callbacks := h.toStreaming()
	callbacks.Disconnected(session)
	callbacks.Finalized(session)

	// The main goroutine has stopped before running the teardown.
	h.controller.Close()
	if !session.joined || !session.destroyed || h.media[0].closed != 1 {
		t.Fatalf("pending teardown not run by Close: joined=%v destroyed=%v media closed=%d",
			session.joined, session.destroyed, h.media[0].closed)
	}

	// A dispatcher that wakes up late does not repeat it.
	h.dispatcher.drain()
	if h.media[0].closed != 1 {
		t.Fatalf("media closed %d times", h.media[0].closed)
	}
}

func TestCloseWhileIdle(t *testing.T) {
	h := newHarness(t)
	h.controller.Close()
	if session, _ := h.factory.last(); session != nil {
		t.Fatal("session created by Close")
	}
	if !h.directory.unregistered {
		t.Fatal("host listener not unregistered")
	}
}

func TestListenerRegistration(t *testing.T) {
	h := newHarness(t)
	second := &recordingListener{}
	handle := h.controller.RegisterListener(second)

	session, callbacks := h.toStreaming()
	h.controller.UnregisterListener(handle)
	callbacks.Disconnected(session)

	if want := []string{"connected:s1"}; !slices.Equal(second.events, want) {
		t.Fatalf("unregistered listener events = %v, want %v", second.events, want)
	}
	if len(h.listener.events) != 2 {
		t.Fatalf("remaining listener events = %v", h.listener.events)
	}
}
