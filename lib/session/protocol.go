// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bureau-foundation/hoststream/lib/codec"
	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/stream"
)

// Message type constants for the session wire format. Each frame is a
// 5-byte header (1 byte type + 4 byte big-endian payload length)
// followed by a CBOR payload.
const (
	// MessageHello opens negotiation. Client→host, first frame.
	MessageHello byte = 0x01

	// MessageWelcome accepts the hello. Host→client.
	MessageWelcome byte = 0x02

	// MessageReject refuses the hello; the host closes after sending it.
	MessageReject byte = 0x03

	MessageMouseMove     byte = 0x10
	MessageMousePosition byte = 0x11
	MessageMouseButton   byte = 0x12
	MessageMouseWheel    byte = 0x13
	MessageKey           byte = 0x14

	MessageControllerButton byte = 0x20
	MessageControllerAxis   byte = 0x21

	// MessageControllerReset releases every button and centres every
	// axis on the host's virtual controllers. Empty payload.
	MessageControllerReset byte = 0x22

	// MessageDeviceInventory lists the client's attached controllers.
	MessageDeviceInventory byte = 0x23

	// MessageDeviceChange reports one controller topology change.
	MessageDeviceChange byte = 0x24

	// MessageGoodbye ends the session. Either direction.
	MessageGoodbye byte = 0x30
)

// frameHeaderLength is the fixed size of a frame header: 1 byte type
// + 4 bytes payload length.
const frameHeaderLength = 5

// maxPayloadLength bounds a single frame. Control and input payloads
// are tens of bytes; the bound only guards against a corrupt stream.
const maxPayloadLength = 64 * 1024

// Frame is a single session protocol frame.
type Frame struct {
	Type    byte
	Payload []byte
}

// WriteFrame writes a framed message to w as a single Write, so
// concurrent writers serialized by a mutex never interleave headers.
func WriteFrame(w io.Writer, frame Frame) error {
	buffer := make([]byte, frameHeaderLength+len(frame.Payload))
	buffer[0] = frame.Type
	binary.BigEndian.PutUint32(buffer[1:5], uint32(len(frame.Payload)))
	copy(buffer[frameHeaderLength:], frame.Payload)
	if _, err := w.Write(buffer); err != nil {
		return fmt.Errorf("write frame 0x%02x: %w", frame.Type, err)
	}
	return nil
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}
	payloadLength := binary.BigEndian.Uint32(header[1:5])
	if payloadLength > maxPayloadLength {
		return Frame{}, fmt.Errorf("payload length %d exceeds maximum %d", payloadLength, maxPayloadLength)
	}
	payload := make([]byte, payloadLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("read frame payload: %w", err)
	}
	return Frame{Type: header[0], Payload: payload}, nil
}

// Hello is the client's negotiation request.
type Hello struct {
	SessionID string               `cbor:"sid"`
	Token     string               `cbor:"tok"`
	Config    schema.SessionConfig `cbor:"cfg"`
}

// Welcome accepts a Hello.
type Welcome struct {
	SessionID string `cbor:"sid"`
	HostName  string `cbor:"host"`
}

// Reject refuses a Hello.
type Reject struct {
	Reason string `cbor:"reason"`
}

// Goodbye ends a session.
type Goodbye struct {
	Reason string `cbor:"reason,omitempty"`
}

type MouseMove struct {
	DX int `cbor:"dx"`
	DY int `cbor:"dy"`
}

// MousePosition is an absolute pointer position; X and Y are fractions
// of the client viewport in [0,1].
type MousePosition struct {
	X float64 `cbor:"x"`
	Y float64 `cbor:"y"`
}

type MouseButton struct {
	Button  schema.MouseButton `cbor:"b"`
	Pressed bool               `cbor:"p"`
}

type MouseWheel struct {
	Direction schema.WheelDirection `cbor:"d"`
}

type Key struct {
	Code    schema.KeyCode `cbor:"k"`
	Pressed bool           `cbor:"p"`
}

type ControllerButton struct {
	Device  int                     `cbor:"dev"`
	Button  schema.ControllerButton `cbor:"b"`
	Pressed bool                    `cbor:"p"`
}

type ControllerAxis struct {
	Device int                   `cbor:"dev"`
	Axis   schema.ControllerAxis `cbor:"a"`
	Value  int16                 `cbor:"v"`
}

type DeviceInventory struct {
	Devices []stream.ControllerDevice `cbor:"devices"`
}

type DeviceChange struct {
	Device int                 `cbor:"dev"`
	Change stream.DeviceChange `cbor:"c"`
}

// encodeFrame marshals payload into a frame of the given type. A nil
// payload produces an empty frame.
func encodeFrame(messageType byte, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Type: messageType}, nil
	}
	data, err := codec.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding frame 0x%02x: %w", messageType, err)
	}
	return Frame{Type: messageType, Payload: data}, nil
}

// DecodeFrame unmarshals a frame's payload into the message struct for
// its type. An empty payload decodes to the zero message, except a
// controller reset, which has no message and decodes to nil.
func DecodeFrame(frame Frame) (any, error) {
	var message any
	switch frame.Type {
	case MessageHello:
		message = &Hello{}
	case MessageWelcome:
		message = &Welcome{}
	case MessageReject:
		message = &Reject{}
	case MessageGoodbye:
		message = &Goodbye{}
	case MessageMouseMove:
		message = &MouseMove{}
	case MessageMousePosition:
		message = &MousePosition{}
	case MessageMouseButton:
		message = &MouseButton{}
	case MessageMouseWheel:
		message = &MouseWheel{}
	case MessageKey:
		message = &Key{}
	case MessageControllerButton:
		message = &ControllerButton{}
	case MessageControllerAxis:
		message = &ControllerAxis{}
	case MessageDeviceInventory:
		message = &DeviceInventory{}
	case MessageDeviceChange:
		message = &DeviceChange{}
	case MessageControllerReset:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown frame type 0x%02x", frame.Type)
	}
	if len(frame.Payload) == 0 {
		return message, nil
	}
	if err := codec.Unmarshal(frame.Payload, message); err != nil {
		return nil, fmt.Errorf("decoding frame 0x%02x: %w", frame.Type, err)
	}
	return message, nil
}
