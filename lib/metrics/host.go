// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bureau-foundation/hoststream/lib/session"
)

// HostRecorder counts stream endpoint activity on a host. Pass
// Observe as session.HostOptions.OnEvent, or call it from one.
type HostRecorder struct {
	joined prometheus.Counter
	active prometheus.Gauge
	input  *prometheus.CounterVec
}

func NewHostRecorder(registerer prometheus.Registerer) *HostRecorder {
	factory := promauto.With(registerer)
	return &HostRecorder{
		joined: factory.NewCounter(prometheus.CounterOpts{
			Name: "hoststream_host_sessions_joined_total",
			Help: "Client sessions that completed the handshake",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hoststream_host_sessions_active",
			Help: "Client sessions currently connected",
		}),
		input: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hoststream_host_input_messages_total",
			Help: "Input messages received from clients, by kind",
		}, []string{"kind"}),
	}
}

func (r *HostRecorder) Observe(event session.HostEvent) {
	switch event.Kind {
	case session.HostEventJoined:
		r.joined.Inc()
		r.active.Inc()
	case session.HostEventLeft:
		r.active.Dec()
	case session.HostEventInput:
		r.input.WithLabelValues(inputKind(event.Message)).Inc()
	}
}

func inputKind(message any) string {
	switch message.(type) {
	case *session.MouseMove, *session.MousePosition, *session.MouseButton, *session.MouseWheel:
		return "mouse"
	case *session.Key:
		return "keyboard"
	case *session.ControllerButton, *session.ControllerAxis, nil:
		return "controller"
	case *session.DeviceInventory, *session.DeviceChange:
		return "device"
	default:
		return "other"
	}
}
