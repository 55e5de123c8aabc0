// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/session"
	"github.com/bureau-foundation/hoststream/lib/testutil"
)

func TestServeExposesRegistry(t *testing.T) {
	registry := NewRegistry()
	recorder := NewRecorder(registry, nil)
	recorder.ConnectFailed(schema.HostInfo{Name: "den"}, session.ErrDisconnected)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, listener, registry, testutil.Logger(t))
	}()

	response, err := http.Get("http://" + listener.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, err := io.ReadAll(response.Body)
	response.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, want := range []string{
		`hoststream_connect_failures_total{host="den",reason="cancelled"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}

	cancel()
	if err := testutil.RequireReceive(t, served, 5*time.Second, "waiting for Serve to return"); err != nil {
		t.Errorf("Serve: %v", err)
	}
}
