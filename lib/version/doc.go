// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version carries build information for the hoststream
// binaries and parses the dotted version strings hosts announce.
//
// # Build information
//
// [Version], [Commit], [Dirty] and [BuildTime] are set at link time
// with -ldflags -X. [Banner] formats them for --version.
//
// # Protocol versions
//
// Hosts announce a "major.minor.patch" protocol version. [Parse] reads
// one, leaving missing trailing segments at -1 so that "1.2" and
// "1.2.0" stay distinguishable. [Number.AtLeast] treats a missing
// segment as zero for ordering. The host directory uses it to hide
// hosts older than [MinimumHostProtocol].
package version
