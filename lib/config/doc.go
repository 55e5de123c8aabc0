// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the hoststream
// client and development host.
//
// Configuration is loaded from a single file specified by either the
// HOSTSTREAM_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no discovery and no search path.
// Running without a file uses [Default], which works on a LAN with a
// broker on localhost.
//
// ${VAR} and ${VAR:-default} are expanded in the broker URL, the log
// output path, and the dev host's advertise address after loading. No
// environment variable overrides a value set in the file.
//
// [Config.Validate] reports every problem at once; each is wrapped in
// [ErrInvalid].
package config
