// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds the terminal presentation pieces shared by the
// hoststream client: the color theme keyed by controller phase, ANSI
// aware overlay splicing for the in-stream menu, and a slog handler that
// delivers log records into a running bubbletea program.
//
// The package renders strings and produces messages. It owns no model;
// cmd/hoststream composes these pieces into its bubbletea program.
package tui
