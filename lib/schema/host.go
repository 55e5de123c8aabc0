// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "net/netip"

// HostInfo describes a streaming host.
type HostInfo struct {
	// Name is the host's display name.
	Name string `json:"name"`

	// Address is the host's control address. Hosts are identified by
	// the IP part; the port may differ between announcements.
	Address netip.AddrPort `json:"address"`

	// Version is the host's protocol version ("1", "1.2", "1.2.3").
	Version string `json:"version,omitempty"`
}

// SameHost reports whether address refers to the same machine as h.
// Only the IP is compared; IPv4-mapped IPv6 addresses match their IPv4
// form.
func (h HostInfo) SameHost(address netip.AddrPort) bool {
	return h.Address.Addr().Unmap() == address.Addr().Unmap()
}

// SessionInfo is what a host hands back when it accepts a session
// request: where to connect and the token that proves the request.
type SessionInfo struct {
	// Host is the host that issued the session.
	Host HostInfo `json:"host"`

	// SessionID identifies the session in host and client logs.
	SessionID string `json:"session_id"`

	// StreamAddress is the transport address of the stream endpoint.
	// For TCP it is "ip:port"; for WebRTC it is the host's signaling
	// name.
	StreamAddress string `json:"stream_address"`

	// Token authenticates the session hello.
	Token string `json:"token"`
}

// DeviceInfo identifies the client machine to the host.
type DeviceInfo struct {
	OS              string `cbor:"os"`
	Platform        string `cbor:"pf,omitempty"`
	PlatformVersion string `cbor:"pv,omitempty"`
	KernelArch      string `cbor:"ka,omitempty"`
	Hostname        string `cbor:"hn,omitempty"`
}

// SessionConfig is the client's negotiation request. The controller's
// configuring hook may adjust it before it is sent.
type SessionConfig struct {
	ClientName    string     `cbor:"cn"`
	ClientVersion string     `cbor:"cv"`
	Device        DeviceInfo `cbor:"dv"`
	Width         int        `cbor:"w"`
	Height        int        `cbor:"h"`
	FrameRate     int        `cbor:"fps"`
	BitrateKbps   int        `cbor:"br"`

	// EnableHEVC offers H.265 in addition to H.264.
	EnableHEVC bool `cbor:"hevc"`
}
