// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/bureau-foundation/hoststream/lib/clock"
	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/session"
)

func gather(t *testing.T, registry *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, family := range families {
		byName[family.GetName()] = family
	}
	return byName
}

func counterValue(t *testing.T, families map[string]*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	family, ok := families[name]
	if !ok {
		t.Fatalf("metric %s not gathered", name)
	}
	for _, metric := range family.GetMetric() {
		match := true
		for _, pair := range metric.GetLabel() {
			if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
				match = false
			}
		}
		if match {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s has no series matching %v", name, labels)
	return 0
}

func TestRecorderSessionLifecycle(t *testing.T) {
	registry := prometheus.NewRegistry()
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	recorder := NewRecorder(registry, fake)

	info := schema.SessionInfo{Host: schema.HostInfo{Name: "den"}, SessionID: "s1"}
	recorder.Connected(info)

	families := gather(t, registry)
	if got := families["hoststream_sessions_active"].GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}

	fake.Advance(90 * time.Second)
	recorder.Disconnected(info, true)

	families = gather(t, registry)
	if got := counterValue(t, families, "hoststream_sessions_connected_total", map[string]string{"host": "den"}); got != 1 {
		t.Errorf("connected = %v", got)
	}
	if got := counterValue(t, families, "hoststream_sessions_disconnected_total", map[string]string{"host": "den", "initiator": "client"}); got != 1 {
		t.Errorf("disconnected = %v", got)
	}
	if got := families["hoststream_sessions_active"].GetMetric()[0].GetGauge().GetValue(); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
	histogram := families["hoststream_session_duration_seconds"].GetMetric()[0].GetHistogram()
	if histogram.GetSampleCount() != 1 || histogram.GetSampleSum() != 90 {
		t.Errorf("duration histogram = %d samples, sum %v", histogram.GetSampleCount(), histogram.GetSampleSum())
	}
}

func TestRecorderConnectFailureReasons(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry, nil)
	host := schema.HostInfo{Name: "office"}

	recorder.ConnectFailed(host, fmt.Errorf("%w: token expired", session.ErrRejected))
	recorder.ConnectFailed(host, session.ErrHandshakeTimeout)
	recorder.ConnectFailed(host, errors.New("connection refused"))
	recorder.ConnectFailed(host, errors.New("no route"))

	families := gather(t, registry)
	for reason, want := range map[string]float64{"rejected": 1, "timeout": 1, "error": 2} {
		got := counterValue(t, families, "hoststream_connect_failures_total", map[string]string{"host": "office", "reason": reason})
		if got != want {
			t.Errorf("failures{reason=%s} = %v, want %v", reason, got, want)
		}
	}
}

func TestRecorderRegistersOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewRecorder(registry, nil)
	defer func() {
		if recover() == nil {
			t.Error("second registration on the same registry did not panic")
		}
	}()
	NewRecorder(registry, nil)
}
