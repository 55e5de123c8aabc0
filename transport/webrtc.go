// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
)

// Compile-time interface checks.
var (
	_ Dialer   = (*WebRTCDialer)(nil)
	_ Listener = (*WebRTCAnswerer)(nil)
)

// streamChannelLabel labels the single data channel of a stream
// PeerConnection.
const streamChannelLabel = "stream"

// iceGatherTimeout is the maximum time to wait for ICE candidate gathering
// to complete before sending the SDP.
const iceGatherTimeout = 15 * time.Second

// channelOpenTimeout bounds the wait for the data channel to open once
// the answer has been applied.
const channelOpenTimeout = 30 * time.Second

// WebRTCDialer opens stream connections over WebRTC data channels.
// Each DialContext call creates a new PeerConnection carrying one
// ordered, reliable data channel; closing the returned connection
// closes the PeerConnection.
type WebRTCDialer struct {
	signaler Signaler
	logger   *slog.Logger

	// configMu protects iceConfig, which can be replaced while dials are
	// in flight.
	configMu  sync.RWMutex
	iceConfig ICEConfig

	dialCounter atomic.Uint64
}

// NewWebRTCDialer creates a dialer that signals through signaler.
func NewWebRTCDialer(signaler Signaler, iceConfig ICEConfig, logger *slog.Logger) *WebRTCDialer {
	return &WebRTCDialer{
		signaler:  signaler,
		iceConfig: iceConfig,
		logger:    logger,
	}
}

// UpdateICEConfig replaces the ICE configuration for future dials.
func (d *WebRTCDialer) UpdateICEConfig(config ICEConfig) {
	d.configMu.Lock()
	defer d.configMu.Unlock()
	d.iceConfig = config
}

// DialContext establishes a PeerConnection with the host named address
// and returns its data channel as a net.Conn.
func (d *WebRTCDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	d.configMu.RLock()
	iceConfig := d.iceConfig
	d.configMu.RUnlock()

	pc, err := newPeerConnection(iceConfig)
	if err != nil {
		return nil, fmt.Errorf("creating PeerConnection: %w", err)
	}
	conn, err := d.establish(ctx, pc, address)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("dialing %s over webrtc: %w", address, err)
	}
	return conn, nil
}

func (d *WebRTCDialer) establish(ctx context.Context, pc *webrtc.PeerConnection, address string) (*DataChannelConn, error) {
	dialID := d.dialCounter.Add(1)

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		d.logger.Debug("ICE state change", "peer", address, "dial", dialID, "state", state.String())
	})

	// Creating the channel before the offer puts a data channel section
	// in the SDP.
	ordered := true
	dc, err := pc.CreateDataChannel(streamChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("creating data channel: %w", err)
	}
	opened := make(chan struct{})
	dc.OnOpen(func() { close(opened) })

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("creating SDP offer: %w", err)
	}
	if err := gatherLocalDescription(ctx, pc, offer); err != nil {
		return nil, err
	}

	answerSDP, err := d.signaler.Exchange(ctx, address, pc.LocalDescription().SDP)
	if err != nil {
		return nil, fmt.Errorf("exchanging SDP: %w", err)
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerSDP}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return nil, fmt.Errorf("setting remote description: %w", err)
	}

	openTimer := time.NewTimer(channelOpenTimeout)
	defer openTimer.Stop()
	select {
	case <-opened:
	case <-openTimer.C:
		return nil, fmt.Errorf("data channel did not open within %s", channelOpenTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rawChannel, err := dc.Detach()
	if err != nil {
		return nil, fmt.Errorf("detaching data channel: %w", err)
	}
	d.logger.Info("WebRTC stream connection established", "peer", address, "dial", dialID)

	conn := NewDataChannelConn(rawChannel, fmt.Sprintf("client/%d", dialID), address+"/"+streamChannelLabel)
	conn.owner = pc
	return conn, nil
}

// WebRTCAnswerer accepts stream connections over WebRTC on the host
// side. Offers reach it through [WebRTCAnswerer.Answer], typically
// registered with the broker or a [MemorySignaler]; each answered offer
// yields one connection from Serve.
type WebRTCAnswerer struct {
	name   string
	logger *slog.Logger

	configMu  sync.RWMutex
	iceConfig ICEConfig

	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]struct{}

	inbound chan net.Conn

	closed    chan struct{}
	closeOnce sync.Once
}

// NewWebRTCAnswerer creates an answerer. name is the signaling name
// clients dial, returned by Address.
func NewWebRTCAnswerer(name string, iceConfig ICEConfig, logger *slog.Logger) *WebRTCAnswerer {
	return &WebRTCAnswerer{
		name:      name,
		iceConfig: iceConfig,
		logger:    logger,
		peers:     make(map[*webrtc.PeerConnection]struct{}),
		inbound:   make(chan net.Conn, 16),
		closed:    make(chan struct{}),
	}
}

// Answer creates a PeerConnection for an SDP offer and returns the
// complete SDP answer. The data channel the offerer opened is delivered
// to Serve's handler once it opens.
func (a *WebRTCAnswerer) Answer(ctx context.Context, offerSDP string) (string, error) {
	select {
	case <-a.closed:
		return "", net.ErrClosed
	default:
	}

	a.configMu.RLock()
	iceConfig := a.iceConfig
	a.configMu.RUnlock()

	pc, err := newPeerConnection(iceConfig)
	if err != nil {
		return "", fmt.Errorf("creating PeerConnection: %w", err)
	}
	a.track(pc)

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		a.handleDataChannel(pc, dc)
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		a.logger.Debug("ICE state change", "state", state.String())
		if state == webrtc.ICEConnectionStateFailed || state == webrtc.ICEConnectionStateClosed {
			a.release(pc)
		}
	})

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := pc.SetRemoteDescription(offer); err != nil {
		a.release(pc)
		return "", fmt.Errorf("setting remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		a.release(pc)
		return "", fmt.Errorf("creating SDP answer: %w", err)
	}
	if err := gatherLocalDescription(ctx, pc, answer); err != nil {
		a.release(pc)
		return "", err
	}

	a.logger.Info("WebRTC offer answered", "name", a.name)
	return pc.LocalDescription().SDP, nil
}

func (a *WebRTCAnswerer) handleDataChannel(pc *webrtc.PeerConnection, dc *webrtc.DataChannel) {
	if dc.Label() != streamChannelLabel {
		a.logger.Warn("ignoring unexpected data channel", "label", dc.Label())
		dc.Close()
		return
	}
	dc.OnOpen(func() {
		rawChannel, err := dc.Detach()
		if err != nil {
			a.logger.Error("detaching inbound data channel failed", "error", err)
			a.release(pc)
			return
		}
		conn := NewDataChannelConn(rawChannel, a.name+"/"+streamChannelLabel, "client/"+streamChannelLabel)
		conn.owner = closerFunc(func() error {
			a.release(pc)
			return nil
		})
		select {
		case a.inbound <- conn:
		case <-a.closed:
			conn.Close()
		}
	})
}

func (a *WebRTCAnswerer) track(pc *webrtc.PeerConnection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peers[pc] = struct{}{}
}

// release closes pc and forgets it. Safe to call more than once.
func (a *WebRTCAnswerer) release(pc *webrtc.PeerConnection) {
	a.mu.Lock()
	_, tracked := a.peers[pc]
	delete(a.peers, pc)
	a.mu.Unlock()
	if tracked {
		pc.Close()
	}
}

// UpdateICEConfig replaces the ICE configuration for future answers.
func (a *WebRTCAnswerer) UpdateICEConfig(config ICEConfig) {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	a.iceConfig = config
}

// Serve runs handler for every data channel opened by a client. Blocks
// until ctx is cancelled or Close is called.
func (a *WebRTCAnswerer) Serve(ctx context.Context, handler ConnHandler) error {
	for {
		select {
		case conn := <-a.inbound:
			go handler(conn)
		case <-ctx.Done():
			return nil
		case <-a.closed:
			return nil
		}
	}
}

// Address returns the signaling name clients dial.
func (a *WebRTCAnswerer) Address() string {
	return a.name
}

// Close rejects further offers and closes every PeerConnection.
func (a *WebRTCAnswerer) Close() error {
	a.closeOnce.Do(func() {
		close(a.closed)
		a.mu.Lock()
		peers := a.peers
		a.peers = make(map[*webrtc.PeerConnection]struct{})
		a.mu.Unlock()
		for pc := range peers {
			pc.Close()
		}
	})
	return nil
}

// gatherLocalDescription sets description as the local description and
// waits for ICE gathering to complete (vanilla ICE).
func gatherLocalDescription(ctx context.Context, pc *webrtc.PeerConnection, description webrtc.SessionDescription) error {
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(description); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	timer := time.NewTimer(iceGatherTimeout)
	defer timer.Stop()
	select {
	case <-gatherComplete:
		return nil
	case <-timer.C:
		return fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newPeerConnection creates a pion PeerConnection with the given ICE config.
func newPeerConnection(iceConfig ICEConfig) (*webrtc.PeerConnection, error) {
	// Detached data channels give stream-oriented ReadWriteCloser
	// access. Loopback candidates make same-machine hosts and tests work
	// where loopback is the only interface.
	settingEngine := webrtc.SettingEngine{}
	settingEngine.DetachDataChannels()
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: iceConfig.Servers})
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
