// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exports stream controller activity to Prometheus and
// serves the registry over HTTP.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bureau-foundation/hoststream/lib/clock"
	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/session"
	"github.com/bureau-foundation/hoststream/lib/stream"
)

var _ stream.Listener = (*Recorder)(nil)

// Recorder is a [stream.Listener] that counts sessions. Register it on
// the controller with Controller.RegisterListener.
type Recorder struct {
	clock clock.Clock

	connects        *prometheus.CounterVec
	disconnects     *prometheus.CounterVec
	connectFailures *prometheus.CounterVec
	active          prometheus.Gauge
	duration        prometheus.Histogram

	mu      sync.Mutex
	started map[string]time.Time
}

// NewRecorder creates the collectors on registerer. A nil clock selects
// the real clock.
func NewRecorder(registerer prometheus.Registerer, c clock.Clock) *Recorder {
	if c == nil {
		c = clock.Real()
	}
	factory := promauto.With(registerer)
	return &Recorder{
		clock: c,
		connects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hoststream_sessions_connected_total",
			Help: "Sessions that reached streaming, by host",
		}, []string{"host"}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hoststream_sessions_disconnected_total",
			Help: "Streaming sessions that ended, by host and initiator",
		}, []string{"host", "initiator"}),
		connectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hoststream_connect_failures_total",
			Help: "Sessions that failed before streaming, by host and reason",
		}, []string{"host", "reason"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hoststream_sessions_active",
			Help: "Sessions currently streaming",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hoststream_session_duration_seconds",
			Help:    "Time from connected to disconnected",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		started: make(map[string]time.Time),
	}
}

func (r *Recorder) Connected(info schema.SessionInfo) {
	r.connects.WithLabelValues(info.Host.Name).Inc()
	r.active.Inc()
	r.mu.Lock()
	r.started[info.SessionID] = r.clock.Now()
	r.mu.Unlock()
}

func (r *Recorder) Disconnected(info schema.SessionInfo, requested bool) {
	initiator := "host"
	if requested {
		initiator = "client"
	}
	r.disconnects.WithLabelValues(info.Host.Name, initiator).Inc()
	r.active.Dec()

	r.mu.Lock()
	started, ok := r.started[info.SessionID]
	delete(r.started, info.SessionID)
	r.mu.Unlock()
	if ok {
		r.duration.Observe(r.clock.Now().Sub(started).Seconds())
	}
}

func (r *Recorder) ConnectFailed(host schema.HostInfo, err error) {
	r.connectFailures.WithLabelValues(host.Name, failureReason(err)).Inc()
}

// failureReason maps an error to a bounded label value.
func failureReason(err error) string {
	switch {
	case errors.Is(err, session.ErrRejected):
		return "rejected"
	case errors.Is(err, session.ErrHandshakeTimeout):
		return "timeout"
	case errors.Is(err, session.ErrDisconnected):
		return "cancelled"
	default:
		return "error"
	}
}
