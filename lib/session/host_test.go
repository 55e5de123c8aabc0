// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/hoststream/lib/clock"
	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/testutil"
)

type hostHarness struct {
	host   *Host
	tokens *TokenStore
	clock  *clock.FakeClock
	events chan HostEvent
}

func newHostHarness(t *testing.T) *hostHarness {
	t.Helper()
	harness := &hostHarness{
		clock:  clock.Fake(testEpoch),
		events: make(chan HostEvent, 32),
	}
	harness.tokens = NewTokenStore(harness.clock, time.Minute)
	host, err := NewHost(HostOptions{
		Name:      "den",
		Authorize: harness.tokens.Authorize,
		OnEvent:   func(event HostEvent) { harness.events <- event },
		Clock:     harness.clock,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	harness.host = host
	return harness
}

// serve starts Handle on one end of a pipe and returns the other.
func (h *hostHarness) serve(t *testing.T) (net.Conn, <-chan struct{}) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.host.Handle(server)
	}()
	return client, done
}

func (h *hostHarness) nextEvent(t *testing.T, kind HostEventKind) HostEvent {
	t.Helper()
	event := testutil.RequireReceive(t, h.events, testTimeout, "waiting for %s event", kind)
	if event.Kind != kind {
		t.Fatalf("event kind = %s, want %s", event.Kind, kind)
	}
	return event
}

func TestHostAcceptsIssuedToken(t *testing.T) {
	harness := newHostHarness(t)
	sessionID, token, err := harness.tokens.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	client, done := harness.serve(t)
	frames := readFrames(client)

	writeMessage(t, client, MessageHello, &Hello{
		SessionID: sessionID,
		Token:     token,
		Config:    schema.SessionConfig{ClientName: "hoststream", Width: 800, Height: 600},
	})
	welcome := requireMessage[*Welcome](t, frames, MessageWelcome)
	if welcome.HostName != "den" || welcome.SessionID != sessionID {
		t.Errorf("welcome = %+v", welcome)
	}
	joined := harness.nextEvent(t, HostEventJoined)
	if joined.Config == nil || joined.Config.Width != 800 {
		t.Errorf("joined config = %+v", joined.Config)
	}
	if sessions := harness.host.Sessions(); len(sessions) != 1 || sessions[0] != sessionID {
		t.Errorf("Sessions() = %v", sessions)
	}

	writeMessage(t, client, MessageMouseButton, &MouseButton{Button: schema.MouseMiddle, Pressed: true})
	input := harness.nextEvent(t, HostEventInput)
	button, ok := input.Message.(*MouseButton)
	if !ok || button.Button != schema.MouseMiddle || !button.Pressed {
		t.Errorf("input = %#v", input.Message)
	}
	if input.MessageType != MessageMouseButton {
		t.Errorf("input type = 0x%02x", input.MessageType)
	}

	writeMessage(t, client, MessageGoodbye, &Goodbye{})
	harness.nextEvent(t, HostEventLeft)
	testutil.RequireClosed(t, done, testTimeout, "Handle returns after goodbye")
	if sessions := harness.host.Sessions(); len(sessions) != 0 {
		t.Errorf("Sessions() after goodbye = %v", sessions)
	}
}

func TestHostRejectsBadToken(t *testing.T) {
	harness := newHostHarness(t)
	sessionID, _, err := harness.tokens.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	client, done := harness.serve(t)
	frames := readFrames(client)

	writeMessage(t, client, MessageHello, &Hello{SessionID: sessionID, Token: "guess"})
	reject := requireMessage[*Reject](t, frames, MessageReject)
	if !strings.Contains(reject.Reason, ErrTokenMismatch.Error()) {
		t.Errorf("reject reason = %q", reject.Reason)
	}
	testutil.RequireClosed(t, done, testTimeout, "Handle returns after reject")
	select {
	case event := <-harness.events:
		t.Errorf("unexpected event %s for rejected session", event.Kind)
	default:
	}
}

func TestHostHandshakeTimeout(t *testing.T) {
	harness := newHostHarness(t)
	_, done := harness.serve(t)

	harness.clock.WaitForTimers(1)
	harness.clock.Advance(DefaultHandshakeTimeout)
	testutil.RequireClosed(t, done, testTimeout, "Handle returns after silent client")
}

func TestHostDisconnect(t *testing.T) {
	harness := newHostHarness(t)
	sessionID, token, _ := harness.tokens.Issue()
	client, done := harness.serve(t)
	frames := readFrames(client)

	writeMessage(t, client, MessageHello, &Hello{SessionID: sessionID, Token: token})
	requireMessage[*Welcome](t, frames, MessageWelcome)
	harness.nextEvent(t, HostEventJoined)

	if !harness.host.Disconnect(sessionID, "maintenance") {
		t.Fatal("Disconnect reported session not connected")
	}
	goodbye := requireMessage[*Goodbye](t, frames, MessageGoodbye)
	if goodbye.Reason != "maintenance" {
		t.Errorf("goodbye reason = %q", goodbye.Reason)
	}
	harness.nextEvent(t, HostEventLeft)
	testutil.RequireClosed(t, done, testTimeout, "Handle returns after Disconnect")

	if harness.host.Disconnect(sessionID, "again") {
		t.Error("Disconnect of departed session reported true")
	}
}

// TestSessionAgainstHost runs the client worker against the host
// endpoint over a pipe.
func TestSessionAgainstHost(t *testing.T) {
	hostSide := newHostHarness(t)
	sessionID, token, _ := hostSide.tokens.Issue()

	callbacks := newRecordingCallbacks()
	dialer := newPipeDialer()
	factory := &Factory{Dialer: dialer, Clock: clock.Fake(testEpoch), Logger: discardLogger()}
	info := testSessionInfo
	info.SessionID, info.Token = sessionID, token
	created, err := factory.Create(info, schema.SessionConfig{ClientName: "hoststream", EnableHEVC: true}, callbacks)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	client := created.(*Session)
	defer client.Destroy()

	client.Connect()
	server := testutil.RequireReceive(t, dialer.servers, testTimeout, "waiting for dial")
	go hostSide.host.Handle(server)

	callbacks.expect(t, "initialized", "configuring", "connected")
	joined := hostSide.nextEvent(t, HostEventJoined)
	if joined.Config.EnableHEVC {
		t.Error("host saw HEVC enabled")
	}

	client.SendMouseWheel(schema.WheelUp)
	input := hostSide.nextEvent(t, HostEventInput)
	if wheel, ok := input.Message.(*MouseWheel); !ok || wheel.Direction != schema.WheelUp {
		t.Errorf("input = %#v", input.Message)
	}

	hostSide.host.Close()
	callbacks.expect(t, "disconnected", "finalized")
	client.Join()
}

func TestTokenStore(t *testing.T) {
	fake := clock.Fake(testEpoch)
	store := NewTokenStore(fake, time.Minute)

	sessionID, token, err := store.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := store.Redeem(sessionID, token); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if err := store.Redeem(sessionID, token); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("second Redeem = %v, want ErrUnknownSession", err)
	}

	sessionID, token, _ = store.Issue()
	fake.Advance(2 * time.Minute)
	if err := store.Redeem(sessionID, token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Redeem after ttl = %v, want ErrTokenExpired", err)
	}

	sessionID, _, _ = store.Issue()
	if err := store.Redeem(sessionID, "wrong"); !errors.Is(err, ErrTokenMismatch) {
		t.Errorf("Redeem with wrong token = %v, want ErrTokenMismatch", err)
	}
	if err := store.Redeem(sessionID, "wrong"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("mismatch did not consume token: %v", err)
	}
}
