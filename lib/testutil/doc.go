// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by hoststream tests.
//
// [RequireReceive], [RequireSend] and [RequireClosed] bound a channel
// operation with a wall-clock timeout and fail the test when it
// expires. They are the only real timeouts in the test suite; anything
// that measures time in the code under test goes through a fake
// clock.Clock instead.
//
// [Logger] routes slog output to t.Log so it is shown only for failing
// tests or under -v.
package testutil
