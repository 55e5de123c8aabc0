// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
)

// ConnHandler serves one accepted stream connection. It owns conn and
// must close it.
type ConnHandler func(conn net.Conn)

// Listener accepts stream connections on the host side.
type Listener interface {
	// Serve accepts connections and runs handler for each on its own
	// goroutine. Blocks until ctx is cancelled or Close is called.
	// Returns nil on clean shutdown.
	Serve(ctx context.Context, handler ConnHandler) error

	// Address returns the stream address clients dial. The format is
	// transport-specific ("192.168.1.10:27040" for TCP, a signaling
	// name for WebRTC).
	Address() string

	// Close shuts down the listener. Subsequent calls to Serve return
	// immediately.
	Close() error
}

// Dialer opens stream connections to hosts.
type Dialer interface {
	// DialContext opens a connection to the host at the given stream
	// address. The address format matches what the host's
	// Listener.Address() returns.
	DialContext(ctx context.Context, address string) (net.Conn, error)
}
