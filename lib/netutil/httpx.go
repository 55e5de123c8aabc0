// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides network and HTTP I/O helpers.
//
// HTTP response helpers (DecodeResponse, ErrorBody) bound body reads at
// MaxResponseSize. They are for small JSON replies from the host
// directory broker, including the body of a refused websocket upgrade.
//
// IsExpectedCloseError classifies errors that occur when a stream or
// directory connection is torn down.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds JSON response body reads: 1 MiB.
const MaxResponseSize int64 = 1 << 20

// DecodeResponse reads a JSON response body (up to MaxResponseSize
// bytes) and JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an error response body for a diagnostic message.
// Read errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
