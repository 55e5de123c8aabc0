// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds hoststream's CBOR configuration.
//
// The session protocol (see lib/session) carries CBOR payloads inside
// length-prefixed frames; the host directory's websocket protocol stays
// JSON so it can be inspected with ordinary tools. Both sides of the
// session protocol encode through this package so the same message always
// produces the same bytes:
//
//	payload, err := codec.Marshal(message)
//	err = codec.Unmarshal(payload, &message)
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2). Types that
// implement encoding.TextMarshaler, such as netip.AddrPort, are written as
// CBOR text strings and read back through UnmarshalText.
//
// Struct fields are tagged `cbor:"..."` with short keys; session frames
// are sent at input rate and the keys are repeated in every frame.
package codec
