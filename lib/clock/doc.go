// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the injectable time source used by hoststream.
//
// Anything that waits (the controller's back-button hold task, the host
// directory's reconnect backoff, the session handshake timeout) takes a
// [Clock] instead of calling the time package directly. Production code
// passes [Real]; tests pass a [FakeClock] from [Fake] and move time with
// [FakeClock.Advance].
//
// # Advancing fake time
//
// Advance walks the clock forward one deadline at a time. A callback
// registered with AfterFunc that re-arms itself from inside its own
// invocation is scheduled relative to the deadline that fired, so
//
//	c.Advance(100 * 16 * time.Millisecond)
//
// fires a self-rearming 16ms callback exactly 100 times. Goroutines that
// register timers asynchronously can be synchronized with
// [FakeClock.WaitForTimers] before advancing.
package clock
