// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
)

// Signaler exchanges WebRTC session descriptions between a client and a
// host. The production implementation relays through the host
// directory's broker connection; tests use [MemorySignaler].
//
// The signaling model is vanilla ICE: all ICE candidates are gathered
// before the SDP is sent, so connection establishment requires exactly
// one round trip (offer -> answer).
type Signaler interface {
	// Exchange delivers a complete SDP offer to the host named target
	// and returns the host's complete SDP answer.
	Exchange(ctx context.Context, target, offerSDP string) (answerSDP string, err error)
}

// AnswerFunc answers an SDP offer on the host side.
// [WebRTCAnswerer.Answer] has this signature.
type AnswerFunc func(ctx context.Context, offerSDP string) (answerSDP string, err error)

// ErrUnknownPeer is returned by a Signaler when no answerer is
// registered under the target name.
var ErrUnknownPeer = errors.New("transport: unknown signaling peer")
