// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the value types shared by hoststream's
// components: host and session descriptions exchanged with the host
// directory, the client configuration sent in the session hello, and the
// closed input enumerations forwarded to a remote host.
//
// Key types:
//
//   - [HostInfo] -- a host announced by the directory
//   - [SessionInfo] -- a session issued by a host in response to a request
//   - [SessionConfig], [DeviceInfo] -- client parameters sent at negotiation
//   - [MouseButton], [WheelDirection], [ControllerButton],
//     [ControllerAxis], [KeyCode] -- remote input vocabulary
//
// Host and session types carry `json` tags (the directory protocol is
// JSON); negotiation and input types carry `cbor` tags (they only travel
// inside session frames).
//
// This package depends on no other hoststream packages.
package schema
