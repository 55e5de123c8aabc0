// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"github.com/bureau-foundation/hoststream/lib/schema"
)

// InputEvent is a raw input event captured by the client.
type InputEvent interface {
	inputEvent()
}

// ControllerEvent is an [InputEvent] from a game controller, forwarded
// to the session's controller emulation.
type ControllerEvent interface {
	InputEvent
	controllerEvent()
}

// Platform mouse button identifiers, as reported by the capture layer.
const (
	PlatformMouseLeft   uint8 = 1
	PlatformMouseMiddle uint8 = 2
	PlatformMouseRight  uint8 = 3
	PlatformMouseX1     uint8 = 4
	PlatformMouseX2     uint8 = 5
)

// MouseMotionEvent is pointer motion. X and Y are the position in
// viewport pixels; RelX and RelY the movement since the previous event.
type MouseMotionEvent struct {
	X, Y       int
	RelX, RelY int
}

// MouseButtonEvent is a press or release of the platform button Button.
type MouseButtonEvent struct {
	Button  uint8
	Pressed bool
}

// MouseWheelEvent is a wheel step. Positive Y scrolls up. Flipped is set
// when the platform reports natural scrolling.
type MouseWheelEvent struct {
	X, Y    int
	Flipped bool
}

// KeyEvent is a key press or release.
type KeyEvent struct {
	Code    schema.KeyCode
	Pressed bool
}

// ControllerButtonEvent is a controller button press or release.
type ControllerButtonEvent struct {
	Device  int
	Button  schema.ControllerButton
	Pressed bool
}

// ControllerAxisEvent is a controller axis position.
type ControllerAxisEvent struct {
	Device int
	Axis   schema.ControllerAxis
	Value  int16
}

// DeviceChange is the kind of a [ControllerDeviceEvent].
type DeviceChange uint8

const (
	DeviceAdded DeviceChange = iota + 1
	DeviceRemoved
	DeviceRemapped
)

// ControllerDeviceEvent reports a change in controller topology.
type ControllerDeviceEvent struct {
	Device int
	Change DeviceChange
}

func (MouseMotionEvent) inputEvent()      {}
func (MouseButtonEvent) inputEvent()      {}
func (MouseWheelEvent) inputEvent()       {}
func (KeyEvent) inputEvent()              {}
func (ControllerButtonEvent) inputEvent() {}
func (ControllerAxisEvent) inputEvent()   {}
func (ControllerDeviceEvent) inputEvent() {}

func (ControllerButtonEvent) controllerEvent() {}
func (ControllerAxisEvent) controllerEvent()   {}
func (ControllerDeviceEvent) controllerEvent() {}

// HandleInputEvent routes event to the streaming session. It reports
// whether the event was consumed; nothing is consumed unless streaming.
//
// While the overlay is open every event except controller topology
// changes is intercepted, so the overlay has exclusive input and the
// host's device inventory stays in sync.
func (c *Controller) HandleInputEvent(event InputEvent) bool {
	c.mu.Lock()
	streaming, ok := c.state.(*streamingState)
	if !ok {
		c.mu.Unlock()
		return false
	}
	if button, ok := event.(ControllerButtonEvent); ok && button.Button == schema.ButtonBack {
		if button.Pressed {
			c.backPressed(streaming)
		} else {
			c.backReleased(streaming)
		}
	}
	if streaming.overlayOpen {
		if _, topology := event.(ControllerDeviceEvent); !topology {
			c.mu.Unlock()
			return true
		}
	}
	session := streaming.session
	viewport := c.viewport
	c.mu.Unlock()

	switch event := event.(type) {
	case MouseMotionEvent:
		return c.handleMouseMotion(session, viewport, event)
	case MouseButtonEvent:
		if button := mapMouseButton(event.Button); button != 0 {
			session.SendMouseButton(button, event.Pressed)
		}
		return true
	case MouseWheelEvent:
		for _, direction := range wheelDirections(event) {
			session.SendMouseWheel(direction)
		}
		return true
	case KeyEvent:
		return c.handleKey(session, event)
	case ControllerEvent:
		return session.HandleControllerEvent(event)
	default:
		return false
	}
}

func (c *Controller) handleMouseMotion(session Session, viewport viewport, event MouseMotionEvent) bool {
	if c.motion != nil && c.motion.ConsumeMouseMovement() {
		return false
	}
	if c.relativeMouse {
		session.SendMouseMovement(event.RelX, event.RelY)
		return true
	}
	if viewport.width <= 0 || viewport.height <= 0 {
		return false
	}
	session.SendMousePosition(
		normalize(event.X, viewport.width),
		normalize(event.Y, viewport.height),
	)
	return true
}

func normalize(position, extent int) float64 {
	fraction := float64(position) / float64(extent)
	return min(max(fraction, 0), 1)
}

func (c *Controller) handleKey(session Session, event KeyEvent) bool {
	switch event.Code {
	case schema.KeyCodeExit:
		if !event.Pressed {
			c.SetOverlayOpened(true)
		}
		return true
	case schema.KeyCodeBack:
		// TODO: forward as escape once the host side maps it.
		return true
	}
	if event.Code.IsPlatformKey() {
		return true
	}
	session.SendKey(event.Code, event.Pressed)
	return true
}

func mapMouseButton(platform uint8) schema.MouseButton {
	switch platform {
	case PlatformMouseLeft:
		return schema.MouseLeft
	case PlatformMouseRight:
		return schema.MouseRight
	case PlatformMouseMiddle:
		return schema.MouseMiddle
	case PlatformMouseX1:
		return schema.MouseX1
	case PlatformMouseX2:
		return schema.MouseX2
	default:
		return 0
	}
}

// wheelDirections converts a wheel event into discrete steps,
// horizontal first. A negative horizontal delta is reported as right.
func wheelDirections(event MouseWheelEvent) []schema.WheelDirection {
	x, y := event.X, event.Y
	if event.Flipped {
		x, y = -x, -y
	}
	var directions []schema.WheelDirection
	switch {
	case x < 0:
		directions = append(directions, schema.WheelRight)
	case x > 0:
		directions = append(directions, schema.WheelLeft)
	}
	switch {
	case y > 0:
		directions = append(directions, schema.WheelUp)
	case y < 0:
		directions = append(directions, schema.WheelDown)
	}
	return directions
}
