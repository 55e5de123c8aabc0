// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/shirou/gopsutil/v3/host"
)

func withHostInfo(t *testing.T, fn func(context.Context) (*host.InfoStat, error)) {
	t.Helper()
	original := hostInfo
	hostInfo = fn
	t.Cleanup(func() { hostInfo = original })
}

func TestDescribeUsesHostInfo(t *testing.T) {
	withHostInfo(t, func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{
			Hostname:        "couch",
			OS:              "linux",
			Platform:        "steamos",
			PlatformVersion: "3.6",
			KernelArch:      "x86_64",
		}, nil
	})

	device := Describe(context.Background(), nil)
	if device.Hostname != "couch" || device.Platform != "steamos" || device.PlatformVersion != "3.6" {
		t.Errorf("device = %+v", device)
	}
	if device.KernelArch != "x86_64" {
		t.Errorf("kernel arch = %q", device.KernelArch)
	}
}

func TestDescribeFallsBackToRuntime(t *testing.T) {
	withHostInfo(t, func(context.Context) (*host.InfoStat, error) {
		return nil, errors.New("not implemented on this platform")
	})

	device := Describe(context.Background(), nil)
	if device.OS != runtime.GOOS || device.KernelArch != runtime.GOARCH {
		t.Errorf("fallback device = %+v", device)
	}
	if device.Platform != "" {
		t.Errorf("platform = %q, want empty", device.Platform)
	}
}

func TestDescribeRealHost(t *testing.T) {
	device := Describe(context.Background(), nil)
	if device.OS == "" || device.KernelArch == "" {
		t.Errorf("Describe on this machine returned %+v", device)
	}
}
