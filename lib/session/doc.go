// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session implements the streaming session capability consumed
// by the stream controller, and the host endpoint that serves it.
//
// A client [Session] runs one worker goroutine per connection:
//
//   - the first Connect dials the stream address through a
//     [transport.Dialer] and reports Initialized
//   - the second Connect runs the Configuring hook, sends [Hello] and
//     waits for [Welcome], then reports Connected
//   - the worker reads frames until the host says [Goodbye], the
//     connection drops, or Disconnect is called, then reports
//     Disconnected
//   - the worker's last act is Finalized
//
// A dial or handshake failure reports Failed instead of Connected,
// followed by Finalized. The dial and the handshake share one deadline,
// measured on the injected clock.
//
// The wire format is a sequence of frames (see protocol.go): a 1-byte
// message type, a 4-byte big-endian payload length, and a CBOR payload
// encoded by lib/codec.
//
// [Host] is the other end: it accepts connections from a
// [transport.Listener], authorizes the Hello (typically against a
// [TokenStore] that issued the session token through the host
// directory), and surfaces input as [HostEvent]s.
package session
