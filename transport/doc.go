// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries the stream connection between a client and
// a streaming host.
//
// The package defines two interfaces: [Dialer] opens the client side of
// a stream connection (DialContext), and [Listener] accepts the host
// side (Serve, Address, Close). Session code above this package sees
// only a net.Conn.
//
// [TCPDialer] and [TCPListener] are the same-LAN transport: the stream
// address is "ip:port" and the host must be directly reachable.
//
// [WebRTCDialer] and [WebRTCAnswerer] traverse NAT with pion/webrtc.
// Each dial creates its own PeerConnection carrying a single ordered,
// reliable data channel, detached and wrapped as a [DataChannelConn].
// Closing the connection closes the PeerConnection. The stream address
// names the host in signaling.
//
// Signaling is abstracted behind [Signaler], which performs one offer /
// answer round trip (vanilla ICE: all candidates are gathered before
// the SDP is sent). The host directory client implements it over its
// broker connection; [MemorySignaler] connects dialers to answerers in
// the same process for tests and single-binary setups.
//
// [ICEConfig] holds STUN/TURN server configuration.
package transport
