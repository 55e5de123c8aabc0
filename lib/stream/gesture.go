// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "github.com/bureau-foundation/hoststream/lib/clock"

// backGesture counts timer ticks while the controller back button is
// held. Holding it for backHoldTicks intervals resets the host's
// controllers and opens the overlay, which gives the user a way out of
// a game that swallows every other button.
type backGesture struct {
	timer *clock.Timer
	ticks int
}

func (g *backGesture) cancel() {
	g.timer.Stop()
}

// backPressed starts the gesture. Caller holds c.mu and has verified
// the state is streaming.
func (c *Controller) backPressed(streaming *streamingState) {
	if streaming.gesture != nil {
		return
	}
	gesture := &backGesture{}
	gesture.timer = c.clock.AfterFunc(c.backHoldInterval, func() {
		c.backGestureTick(gesture)
	})
	streaming.gesture = gesture
}

// backReleased abandons the gesture. Caller holds c.mu.
func (c *Controller) backReleased(streaming *streamingState) {
	if streaming.gesture == nil {
		return
	}
	streaming.gesture.cancel()
	streaming.gesture = nil
}

func (c *Controller) backGestureTick(gesture *backGesture) {
	c.mu.Lock()
	streaming, ok := c.state.(*streamingState)
	if !ok || streaming.gesture != gesture {
		// Released or left Streaming after this tick was scheduled.
		c.mu.Unlock()
		return
	}
	gesture.ticks++
	if gesture.ticks < c.backHoldTicks {
		gesture.timer.Reset(c.backHoldInterval)
		c.mu.Unlock()
		return
	}
	streaming.gesture = nil
	session := streaming.session
	c.mu.Unlock()

	c.logger.Info("back button held, opening overlay")
	session.ResetControllers()
	c.dispatcher.Post(func() { c.SetOverlayOpened(true) })
}
