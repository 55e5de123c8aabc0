// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package platform describes the machine the client runs on, for the
// device section of the session hello.
package platform

import (
	"context"
	"log/slog"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/bureau-foundation/hoststream/lib/schema"
)

// hostInfo is replaced in tests.
var hostInfo = host.InfoWithContext

// Describe returns the OS and platform of this machine. Fields gopsutil
// cannot determine fall back to the Go runtime's view; Describe never
// fails.
func Describe(ctx context.Context, logger *slog.Logger) schema.DeviceInfo {
	device := schema.DeviceInfo{
		OS:         runtime.GOOS,
		KernelArch: runtime.GOARCH,
	}
	if hostname, err := os.Hostname(); err == nil {
		device.Hostname = hostname
	}

	info, err := hostInfo(ctx)
	if err != nil || info == nil {
		if logger != nil {
			logger.Debug("host info unavailable, using runtime defaults", "error", err)
		}
		return device
	}
	if info.OS != "" {
		device.OS = info.OS
	}
	if info.KernelArch != "" {
		device.KernelArch = info.KernelArch
	}
	if info.Hostname != "" {
		device.Hostname = info.Hostname
	}
	device.Platform = info.Platform
	device.PlatformVersion = info.PlatformVersion
	return device
}
