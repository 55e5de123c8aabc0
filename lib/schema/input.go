// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "fmt"

// MouseButton is a remote mouse button. The zero value is not a button.
type MouseButton uint8

const (
	MouseLeft MouseButton = iota + 1
	MouseRight
	MouseMiddle
	MouseX1
	MouseX2
)

func (b MouseButton) String() string {
	switch b {
	case MouseLeft:
		return "left"
	case MouseRight:
		return "right"
	case MouseMiddle:
		return "middle"
	case MouseX1:
		return "x1"
	case MouseX2:
		return "x2"
	default:
		return fmt.Sprintf("MouseButton(%d)", uint8(b))
	}
}

// WheelDirection is one discrete wheel step.
type WheelDirection uint8

const (
	WheelUp WheelDirection = iota + 1
	WheelDown
	WheelLeft
	WheelRight
)

func (d WheelDirection) String() string {
	switch d {
	case WheelUp:
		return "up"
	case WheelDown:
		return "down"
	case WheelLeft:
		return "left"
	case WheelRight:
		return "right"
	default:
		return fmt.Sprintf("WheelDirection(%d)", uint8(d))
	}
}

// ControllerButton is a game controller button in the standard
// (Xbox-style) layout.
type ControllerButton uint8

const (
	ButtonA ControllerButton = iota
	ButtonB
	ButtonX
	ButtonY
	ButtonBack
	ButtonGuide
	ButtonStart
	ButtonLeftStick
	ButtonRightStick
	ButtonLeftShoulder
	ButtonRightShoulder
	ButtonDPadUp
	ButtonDPadDown
	ButtonDPadLeft
	ButtonDPadRight
)

var controllerButtonNames = [...]string{
	ButtonA:             "a",
	ButtonB:             "b",
	ButtonX:             "x",
	ButtonY:             "y",
	ButtonBack:          "back",
	ButtonGuide:         "guide",
	ButtonStart:         "start",
	ButtonLeftStick:     "left_stick",
	ButtonRightStick:    "right_stick",
	ButtonLeftShoulder:  "left_shoulder",
	ButtonRightShoulder: "right_shoulder",
	ButtonDPadUp:        "dpad_up",
	ButtonDPadDown:      "dpad_down",
	ButtonDPadLeft:      "dpad_left",
	ButtonDPadRight:     "dpad_right",
}

func (b ControllerButton) String() string {
	if int(b) < len(controllerButtonNames) {
		return controllerButtonNames[b]
	}
	return fmt.Sprintf("ControllerButton(%d)", uint8(b))
}

// ControllerAxis is an analog controller input.
type ControllerAxis uint8

const (
	AxisLeftX ControllerAxis = iota
	AxisLeftY
	AxisRightX
	AxisRightY
	AxisTriggerLeft
	AxisTriggerRight
)

// KeyCode is a keyboard scancode (USB HID usage IDs). Values at or above
// KeyCodePlatformBase are hardware keys of the client platform (TV
// remotes and similar) that have no HID equivalent; they are handled
// locally and never forwarded.
type KeyCode uint32

const (
	KeyCodeEscape KeyCode = 0x29

	KeyCodePlatformBase KeyCode = 0x10000

	// KeyCodeExit is the remote's dedicated exit key.
	KeyCodeExit KeyCode = KeyCodePlatformBase + 1

	// KeyCodeBack is the remote's back key.
	KeyCodeBack KeyCode = KeyCodePlatformBase + 2
)

// IsPlatformKey reports whether k is a client-platform hardware key.
func (k KeyCode) IsPlatformKey() bool { return k >= KeyCodePlatformBase }
