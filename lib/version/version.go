// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build metadata, injected with
// -ldflags "-X github.com/bureau-foundation/hoststream/lib/version.Commit=...".
var (
	// Version is the client release, sent to hosts in the session hello.
	Version = "0.3.0-dev"

	Commit    = "unknown"
	Dirty     = "false"
	BuildTime = "unknown"
)

// Banner is the --version output for program: release, commit, build
// time, and the toolchain and platform it was built for.
func Banner(program string) string {
	commit := Commit
	if Dirty == "true" {
		commit += "-dirty"
	}
	var banner strings.Builder
	fmt.Fprintf(&banner, "%s %s (%s, built %s)\n", program, Version, commit, BuildTime)
	fmt.Fprintf(&banner, "  %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return banner.String()
}
