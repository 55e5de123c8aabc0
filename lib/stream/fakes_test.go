// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/hoststream/lib/clock"
	"github.com/bureau-foundation/hoststream/lib/listeners"
	"github.com/bureau-foundation/hoststream/lib/schema"
)

var (
	hostA = schema.HostInfo{Name: "den", Address: netip.MustParseAddrPort("192.168.1.20:27036")}
	hostB = schema.HostInfo{Name: "office", Address: netip.MustParseAddrPort("192.168.1.30:27036")}
)

func sessionFor(host schema.HostInfo, id string) schema.SessionInfo {
	return schema.SessionInfo{
		Host:          host,
		SessionID:     id,
		StreamAddress: host.Address.Addr().String() + ":27040",
		Token:         "token-" + id,
	}
}

// fakeDirectory records requests and exposes the registered listener.
type fakeDirectory struct {
	mu           sync.Mutex
	requests     []schema.HostInfo
	listener     HostListener
	unregistered bool
}

func (d *fakeDirectory) RequestSession(host schema.HostInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, host)
}

func (d *fakeDirectory) RegisterListener(listener HostListener) listeners.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = listener
	return 1
}

func (d *fakeDirectory) UnregisterListener(handle listeners.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unregistered = true
}

func (d *fakeDirectory) sessionStarted(info schema.SessionInfo) {
	d.mu.Lock()
	listener := d.listener
	d.mu.Unlock()
	listener.SessionStarted(info)
}

// fakeSession records every call made on it.
type fakeSession struct {
	info   schema.SessionInfo
	config schema.SessionConfig

	mu                 sync.Mutex
	connects           int
	disconnects        int
	joined             bool
	destroyed          bool
	providers          []InputProvider
	deviceChanges      int
	controllerResets   int
	movements          [][2]int
	positions          [][2]float64
	buttons            []string
	wheel              []schema.WheelDirection
	keys               []KeyEvent
	controllerEvents   []ControllerEvent
	consumeControllers bool
}

func (s *fakeSession) Info() schema.SessionInfo { return s.info }

func (s *fakeSession) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
}

func (s *fakeSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
}

func (s *fakeSession) Join() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = true
}

func (s *fakeSession) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.joined {
		panic("Destroy before Join")
	}
	s.destroyed = true
}

func (s *fakeSession) AddInputProvider(provider InputProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, provider)
}

func (s *fakeSession) NotifyDeviceChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceChanges++
}

func (s *fakeSession) ResetControllers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllerResets++
}

func (s *fakeSession) SendMouseMovement(dx, dy int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = append(s.movements, [2]int{dx, dy})
}

func (s *fakeSession) SendMousePosition(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append(s.positions, [2]float64{x, y})
}

func (s *fakeSession) SendMouseButton(button schema.MouseButton, pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	action := "up"
	if pressed {
		action = "down"
	}
	s.buttons = append(s.buttons, fmt.Sprintf("%s-%s", button, action))
}

func (s *fakeSession) SendMouseWheel(direction schema.WheelDirection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wheel = append(s.wheel, direction)
}

func (s *fakeSession) SendKey(code schema.KeyCode, pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, KeyEvent{Code: code, Pressed: pressed})
}

func (s *fakeSession) HandleControllerEvent(event ControllerEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllerEvents = append(s.controllerEvents, event)
	return s.consumeControllers
}

// fakeFactory hands out fakeSessions and keeps their callbacks.
type fakeFactory struct {
	mu        sync.Mutex
	sessions  []*fakeSession
	callbacks SessionCallbacks
	err       error

	// onCreate, if set, runs once at the start of the next Create.
	onCreate func()
}

func (f *fakeFactory) Create(info schema.SessionInfo, config schema.SessionConfig, callbacks SessionCallbacks) (Session, error) {
	f.mu.Lock()
	hook := f.onCreate
	f.onCreate = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	session := &fakeSession{info: info, config: config, consumeControllers: true}
	f.sessions = append(f.sessions, session)
	f.callbacks = callbacks
	return session, nil
}

func (f *fakeFactory) last() (*fakeSession, SessionCallbacks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil, nil
	}
	return f.sessions[len(f.sessions)-1], f.callbacks
}

// queueDispatcher runs PostSync inline and queues Post so tests decide
// when the main goroutine gets to run.
type queueDispatcher struct {
	mu     sync.Mutex
	posted []func()
	syncs  int
}

func (d *queueDispatcher) Post(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.posted = append(d.posted, fn)
}

func (d *queueDispatcher) PostSync(fn func()) bool {
	d.mu.Lock()
	d.syncs++
	d.mu.Unlock()
	fn()
	return true
}

// drain runs queued posts, including any they queue, and returns how
// many ran.
func (d *queueDispatcher) drain() int {
	ran := 0
	for {
		d.mu.Lock()
		batch := d.posted
		d.posted = nil
		d.mu.Unlock()
		if len(batch) == 0 {
			return ran
		}
		for _, fn := range batch {
			fn()
			ran++
		}
	}
}

type fakeMedia struct {
	mu      sync.Mutex
	overlay []bool
	closed  int
}

func (m *fakeMedia) SetOverlayShown(shown bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlay = append(m.overlay, shown)
}

func (m *fakeMedia) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

type recordingListener struct {
	events []string
}

func (l *recordingListener) Connected(info schema.SessionInfo) {
	l.events = append(l.events, "connected:"+info.SessionID)
}

func (l *recordingListener) Disconnected(info schema.SessionInfo, requested bool) {
	l.events = append(l.events, fmt.Sprintf("disconnected:%s:%v", info.SessionID, requested))
}

func (l *recordingListener) ConnectFailed(host schema.HostInfo, err error) {
	l.events = append(l.events, fmt.Sprintf("failed:%s:%v", host.Name, err))
}

type staticProvider []ControllerDevice

func (p staticProvider) Devices() []ControllerDevice { return p }

type motionFlag struct{ consumed bool }

func (m *motionFlag) ConsumeMouseMovement() bool {
	consumed := m.consumed
	m.consumed = false
	return consumed
}

// harness wires a Controller to fakes.
type harness struct {
	t          *testing.T
	controller *Controller
	directory  *fakeDirectory
	factory    *fakeFactory
	dispatcher *queueDispatcher
	clock      *clock.FakeClock
	media      []*fakeMedia
	listener   *recordingListener
	motion     *motionFlag
}

func newHarness(t *testing.T, modify ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		t:          t,
		directory:  &fakeDirectory{},
		factory:    &fakeFactory{},
		dispatcher: &queueDispatcher{},
		clock:      clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		listener:   &recordingListener{},
		motion:     &motionFlag{},
	}
	options := Options{
		Directory:  h.directory,
		Sessions:   h.factory,
		Dispatcher: h.dispatcher,
		NewMedia: func() Media {
			media := &fakeMedia{}
			h.media = append(h.media, media)
			return media
		},
		MotionFilter:   h.motion,
		InputProviders: []InputProvider{staticProvider{{ID: 0, Name: "pad"}}},
		ClientConfig:   schema.SessionConfig{ClientName: "test", EnableHEVC: true, Width: 1920, Height: 1080},
		Clock:          h.clock,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range modify {
		fn(&options)
	}
	controller, err := New(options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.controller = controller
	controller.RegisterListener(h.listener)
	return h
}

func (h *harness) requirePhase(want Phase) {
	h.t.Helper()
	if got := h.controller.Status().Phase; got != want {
		h.t.Fatalf("phase = %s, want %s", got, want)
	}
}

// toConnecting drives the controller to Connecting for hostA.
func (h *harness) toConnecting() (*fakeSession, SessionCallbacks) {
	h.t.Helper()
	if !h.controller.Start(hostA) {
		h.t.Fatal("Start returned false")
	}
	h.directory.sessionStarted(sessionFor(hostA, "s1"))
	h.requirePhase(PhaseConnecting)
	session, callbacks := h.factory.last()
	return session, callbacks
}

// toStreaming drives the controller to Streaming for hostA.
func (h *harness) toStreaming() (*fakeSession, SessionCallbacks) {
	h.t.Helper()
	session, callbacks := h.toConnecting()
	callbacks.Initialized(session)
	callbacks.Connected(session)
	h.requirePhase(PhaseStreaming)
	return session, callbacks
}

// requirePanic runs fn and fails unless it panics.
func requirePanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s did not panic", name)
		}
	}()
	fn()
}

var errDial = errors.New("dial refused")

func netipWithPort(host schema.HostInfo, port uint16) netip.AddrPort {
	return netip.AddrPortFrom(host.Address.Addr(), port)
}
