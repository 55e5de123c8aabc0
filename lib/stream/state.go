// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"

	"github.com/bureau-foundation/hoststream/lib/schema"
)

// Phase names the controller's lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequesting
	PhaseConnecting
	PhaseStreaming
	PhaseDisconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRequesting:
		return "requesting"
	case PhaseConnecting:
		return "connecting"
	case PhaseStreaming:
		return "streaming"
	case PhaseDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Status is a point-in-time view of the controller.
type Status struct {
	Phase Phase

	// Host is the target host. It is the zero value while idle and
	// once the session is disconnecting.
	Host schema.HostInfo

	// OverlayOpen is only ever true while streaming.
	OverlayOpen bool
}

// state is one variant of the controller's lifecycle. Each variant
// carries only the fields that exist in that phase.
type state interface {
	phase() Phase
}

type idleState struct{}

type requestingState struct {
	host schema.HostInfo
}

type connectingState struct {
	host    schema.HostInfo
	session Session
	media   Media
}

type streamingState struct {
	host    schema.HostInfo
	session Session
	media   Media

	// gesture is non-nil only while the controller back button is held.
	gesture *backGesture

	overlayOpen         bool
	disconnectRequested bool
}

type disconnectingState struct {
	session Session
	media   Media
}

func (*idleState) phase() Phase          { return PhaseIdle }
func (*requestingState) phase() Phase    { return PhaseRequesting }
func (*connectingState) phase() Phase    { return PhaseConnecting }
func (*streamingState) phase() Phase     { return PhaseStreaming }
func (*disconnectingState) phase() Phase { return PhaseDisconnecting }

// legalTransitions lists every edge the lifecycle may take.
var legalTransitions = map[Phase][]Phase{
	PhaseIdle:          {PhaseRequesting},
	PhaseRequesting:    {PhaseConnecting, PhaseIdle},
	PhaseConnecting:    {PhaseStreaming, PhaseDisconnecting},
	PhaseStreaming:     {PhaseDisconnecting},
	PhaseDisconnecting: {PhaseIdle},
}

func legalTransition(from, to Phase) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition replaces the current state. It is the only place state
// changes, and the only place the back gesture is cancelled on leaving
// Streaming. Caller holds c.mu.
func (c *Controller) transition(next state) {
	from, to := c.state.phase(), next.phase()
	if !legalTransition(from, to) {
		panic(fmt.Sprintf("stream: illegal transition %s -> %s", from, to))
	}
	if streaming, ok := c.state.(*streamingState); ok && streaming.gesture != nil {
		streaming.gesture.cancel()
		streaming.gesture = nil
	}
	c.state = next
	c.logger.Debug("stream state changed", "from", from, "to", to)
}

// contractViolation panics for a callback that the current state could
// not have produced.
func contractViolation(callback string, current state) {
	panic(fmt.Sprintf("stream: %s callback in state %s", callback, current.phase()))
}
