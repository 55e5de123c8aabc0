// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream implements the session-lifecycle controller of a
// remote game-streaming client.
//
// A [Controller] supervises at most one streaming session at a time.
// Its state moves along a single path:
//
//	Idle -> Requesting -> Connecting -> Streaming -> Disconnecting -> Idle
//
// with two additional edges: Connecting -> Disconnecting when
// negotiation fails (the session reports Failed instead of Connected),
// and Requesting -> Idle when a pending request is cancelled or the
// session cannot be created.
//
// Three kinds of goroutine touch the controller:
//
//   - The main (UI) goroutine calls the public API: [Controller.Start],
//     [Controller.StopActive], [Controller.HandleInputEvent], overlay
//     accessors, listener registration.
//   - Session worker goroutines deliver lifecycle callbacks through
//     [SessionCallbacks], and the [HostDirectory] delivers
//     SessionStarted through [HostListener].
//   - Clock timer goroutines drive the back-button hold gesture.
//
// State lives behind one mutex. No collaborator is ever called with
// the mutex held. Side effects that belong to the main goroutine go
// through a [mainloop.Dispatcher]: listener notifications for connect
// and disconnect use PostSync so the worker does not proceed until the
// UI has reacted, and session teardown after Finalized uses Post.
//
// Errors fall into three classes. A callback that the current state
// could not have produced is a broken collaborator and panics. A stale
// event (a SessionStarted for a different host, a callback arriving
// after [Controller.Close]) is ignored. Misuse of the public API (Start
// while a session is active, overlay toggles while not streaming)
// returns false.
package stream
