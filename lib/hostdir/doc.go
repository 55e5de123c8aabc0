// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostdir is the host directory: a websocket broker that knows
// which streaming hosts exist, hands out session credentials, and
// relays WebRTC signaling between clients and hosts.
//
// [Directory] is the client side. It keeps one websocket connection to
// the broker alive with exponential reconnect backoff, tracks the
// announced hosts, forwards session requests, and delivers
// "session_started" replies to registered [stream.HostListener]s. It
// also implements [transport.Signaler], so a WebRTC dialer can reach a
// host through the same connection.
//
// [Broker] is the server side, an http.Handler that upgrades to a
// websocket. The development host runs one.
//
// Every websocket message is a JSON [Envelope]. Requests that expect a
// correlated reply carry an ID; the reply echoes it.
package hostdir
