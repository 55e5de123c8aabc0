// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"github.com/bureau-foundation/hoststream/lib/listeners"
	"github.com/bureau-foundation/hoststream/lib/schema"
)

// Session is one streaming connection to a host. The controller owns a
// Session from creation until its Finalized callback; after that the
// teardown task joins and destroys it.
type Session interface {
	// Info describes the session as issued by the host.
	Info() schema.SessionInfo

	// Connect advances the connection. The first call establishes the
	// transport and leads to Initialized; the second negotiates and
	// leads to Configuring and then Connected or Failed.
	Connect()

	// Disconnect asks the session to close. It returns immediately;
	// Disconnected (if the session was connected) and Finalized follow
	// on the worker. Calling it more than once has no further effect.
	Disconnect()

	// Join blocks until the session's worker has exited.
	Join()

	// Destroy releases the session's resources. It must be called after
	// Join.
	Destroy()

	// AddInputProvider registers a source of controller device
	// inventory, consulted by NotifyDeviceChange.
	AddInputProvider(provider InputProvider)

	// NotifyDeviceChange sends the current device inventory to the host.
	NotifyDeviceChange()

	// ResetControllers releases every button and centres every axis on
	// the host's virtual controllers.
	ResetControllers()

	SendMouseMovement(dx, dy int)
	SendMousePosition(x, y float64)
	SendMouseButton(button schema.MouseButton, pressed bool)
	SendMouseWheel(direction schema.WheelDirection)
	SendKey(code schema.KeyCode, pressed bool)

	// HandleControllerEvent forwards a controller event and reports
	// whether the session consumed it.
	HandleControllerEvent(event ControllerEvent) bool
}

// SessionCallbacks receives a session's lifecycle events. Calls for one
// session are serialized by the session.
type SessionCallbacks interface {
	Initialized(session Session)
	Configuring(session Session, config *schema.SessionConfig)
	Connected(session Session)
	Disconnected(session Session)
	Finalized(session Session)

	// Failed reports that the session could not be established. It is
	// only delivered before Connected, and Finalized follows it.
	Failed(session Session, err error)
}

// SessionFactory creates sessions for issued session descriptions.
type SessionFactory interface {
	Create(info schema.SessionInfo, config schema.SessionConfig, callbacks SessionCallbacks) (Session, error)
}

// HostDirectory brokers session creation with remote hosts.
type HostDirectory interface {
	// RequestSession asks host to issue a session. The answer arrives
	// later through SessionStarted on registered listeners.
	RequestSession(host schema.HostInfo)

	RegisterListener(listener HostListener) listeners.Handle
	UnregisterListener(handle listeners.Handle)
}

// HostListener observes sessions issued by hosts.
type HostListener interface {
	SessionStarted(info schema.SessionInfo)
}

// Listener observes the controller's connection lifecycle. All methods
// are called on the main goroutine.
type Listener interface {
	Connected(info schema.SessionInfo)
	Disconnected(info schema.SessionInfo, requested bool)
	ConnectFailed(host schema.HostInfo, err error)
}

// Media is the audio/video presentation for one session.
type Media interface {
	// SetOverlayShown shows or hides the in-stream overlay chrome.
	SetOverlayShown(shown bool)

	// Close releases the presentation. Called on the main goroutine.
	Close()
}

// MotionFilter reports mouse motion that a dedicated capture path
// already forwarded.
type MotionFilter interface {
	// ConsumeMouseMovement reports whether pending motion was already
	// handled and clears the flag.
	ConsumeMouseMovement() bool
}

// ControllerDevice is one attached game controller.
type ControllerDevice struct {
	ID   int    `cbor:"id"`
	Name string `cbor:"name"`
}

// InputProvider enumerates attached game controllers.
type InputProvider interface {
	Devices() []ControllerDevice
}
