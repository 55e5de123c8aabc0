// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostdir

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/hoststream/lib/schema"
)

// Message types carried in [Envelope.Type].
const (
	// MessageHosts announces the full host list (broker to client).
	MessageHosts = "hosts"

	// MessageRequestSession asks for a session on a host (client to
	// broker).
	MessageRequestSession = "request_session"

	// MessageSessionStarted carries session credentials (broker to
	// client).
	MessageSessionStarted = "session_started"

	// MessageSessionFailed reports that a session request could not be
	// served (broker to client).
	MessageSessionFailed = "session_failed"

	// MessageOffer relays an SDP offer toward a host (client to broker).
	MessageOffer = "offer"

	// MessageAnswer returns the host's SDP answer (broker to client).
	MessageAnswer = "answer"

	// MessageError reports a malformed or unsupported message.
	MessageError = "error"
)

// Envelope is one websocket message.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HostsPayload is the body of MessageHosts.
type HostsPayload struct {
	Hosts []schema.HostInfo `json:"hosts"`
}

// RequestSessionPayload is the body of MessageRequestSession.
type RequestSessionPayload struct {
	Host schema.HostInfo `json:"host"`
}

// SessionStartedPayload is the body of MessageSessionStarted.
type SessionStartedPayload struct {
	Session schema.SessionInfo `json:"session"`
}

// SessionFailedPayload is the body of MessageSessionFailed.
type SessionFailedPayload struct {
	Host   schema.HostInfo `json:"host"`
	Reason string          `json:"reason"`
}

// OfferPayload is the body of MessageOffer.
type OfferPayload struct {
	Target string `json:"target"`
	SDP    string `json:"sdp"`
}

// AnswerPayload is the body of MessageAnswer. Error is set instead of
// SDP when the offer could not be answered.
type AnswerPayload struct {
	SDP   string `json:"sdp,omitempty"`
	Error string `json:"error,omitempty"`
}

// ErrorPayload is the body of MessageError.
type ErrorPayload struct {
	Reason string `json:"reason"`
}

// newEnvelope marshals payload into an envelope.
func newEnvelope(messageType, id string, payload any) (Envelope, error) {
	envelope := Envelope{Type: messageType, ID: id}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encoding %s payload: %w", messageType, err)
		}
		envelope.Payload = data
	}
	return envelope, nil
}

// decodePayload unmarshals the envelope's payload into v.
func (e Envelope) decodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return nil
}
