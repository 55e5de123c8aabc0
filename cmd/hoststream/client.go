// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/hoststream/lib/config"
	"github.com/bureau-foundation/hoststream/lib/hostdir"
	"github.com/bureau-foundation/hoststream/lib/mainloop"
	"github.com/bureau-foundation/hoststream/lib/metrics"
	"github.com/bureau-foundation/hoststream/lib/platform"
	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/session"
	"github.com/bureau-foundation/hoststream/lib/stream"
	"github.com/bureau-foundation/hoststream/lib/version"
	"github.com/bureau-foundation/hoststream/transport"
)

// clientOptions is what the interactive and headless front ends supply.
type clientOptions struct {
	Config     *config.Config
	Logger     *slog.Logger
	Dispatcher mainloop.Dispatcher

	NewMedia       func() stream.Media
	InputProviders []stream.InputProvider

	// OnHostsChanged runs on the directory goroutine.
	OnHostsChanged func([]schema.HostInfo)
}

// client wires the host directory, the transport, and the session
// factory into a stream controller.
type client struct {
	config     *config.Config
	logger     *slog.Logger
	directory  *hostdir.Directory
	controller *stream.Controller
	registry   *prometheus.Registry

	wait sync.WaitGroup
}

func newClient(ctx context.Context, options clientOptions) (*client, error) {
	cfg := options.Config
	logger := options.Logger
	c := &client{
		config:   cfg,
		logger:   logger,
		registry: metrics.NewRegistry(),
	}

	directory, err := hostdir.New(hostdir.Options{
		URL:                cfg.Directory.URL,
		Logger:             logger.With("component", "directory"),
		ReconnectBaseDelay: cfg.Directory.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Directory.ReconnectMaxDelay,
		MinimumVersion:     cfg.Directory.MinimumVersion(),
		OnHostsChanged:     options.OnHostsChanged,
		OnRequestFailed: func(host schema.HostInfo, reason string) {
			logger.Warn("host refused session", "host", host.Name, "reason", reason)
			options.Dispatcher.Post(func() {
				if status := c.controller.Status(); status.Phase == stream.PhaseRequesting && status.Host.SameHost(host.Address) {
					c.controller.CancelRequest()
				}
			})
		},
	})
	if err != nil {
		return nil, err
	}
	c.directory = directory

	var dialer transport.Dialer
	switch cfg.Transport.Kind {
	case config.TransportWebRTC:
		dialer = transport.NewWebRTCDialer(directory, cfg.Transport.ICEConfig(), logger.With("component", "webrtc"))
	default:
		dialer = &transport.TCPDialer{Timeout: cfg.Transport.DialTimeout}
	}

	controller, err := stream.New(stream.Options{
		Directory: directory,
		Sessions: &session.Factory{
			Dialer:           dialer,
			Logger:           logger.With("component", "session"),
			HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		},
		Dispatcher:       options.Dispatcher,
		NewMedia:         options.NewMedia,
		InputProviders:   options.InputProviders,
		ClientConfig:     clientSessionConfig(ctx, cfg, logger),
		RelativeMouse:    cfg.Input.RelativeMouse,
		BackHoldInterval: cfg.Input.BackHoldInterval,
		BackHoldTicks:    cfg.Input.BackHoldTicks,
		Logger:           logger.With("component", "controller"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating controller: %w", err)
	}
	c.controller = controller
	controller.RegisterListener(metrics.NewRecorder(c.registry, nil))
	return c, nil
}

// clientSessionConfig is the negotiation request sent with every hello.
func clientSessionConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) schema.SessionConfig {
	return schema.SessionConfig{
		ClientName:    cfg.Client.Name,
		ClientVersion: version.Version,
		Device:        platform.Describe(ctx, logger),
		Width:         cfg.Stream.Width,
		Height:        cfg.Stream.Height,
		FrameRate:     cfg.Stream.FrameRate,
		BitrateKbps:   cfg.Stream.BitrateKbps,
		EnableHEVC:    cfg.Stream.PreferHEVC,
	}
}

// start runs the directory connection and, if configured, the metrics
// endpoint until ctx is done.
func (c *client) start(ctx context.Context) error {
	var metricsListener net.Listener
	if c.config.Metrics.Listen != "" {
		listener, err := net.Listen("tcp", c.config.Metrics.Listen)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		metricsListener = listener
	}

	c.wait.Add(1)
	go func() {
		defer c.wait.Done()
		if err := c.directory.Run(ctx); err != nil {
			c.logger.Error("directory stopped", "error", err)
		}
	}()

	if metricsListener != nil {
		c.wait.Add(1)
		go func() {
			defer c.wait.Done()
			if err := metrics.Serve(ctx, metricsListener, c.registry, c.logger); err != nil {
				c.logger.Error("metrics server stopped", "error", err)
			}
		}()
	}
	return nil
}

// close tears down the active session, then waits for the background
// goroutines. ctx passed to start must already be done. close must not
// run on a goroutine that is serving the dispatcher.
func (c *client) close() {
	c.controller.Close()
	c.wait.Wait()
}
