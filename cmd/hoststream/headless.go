// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/hoststream/lib/clock"
	"github.com/bureau-foundation/hoststream/lib/config"
	"github.com/bureau-foundation/hoststream/lib/mainloop"
	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/stream"
)

// headlessRetryDelay is how long a headless client waits after a
// session ends before trying its host again.
const headlessRetryDelay = 5 * time.Second

// autoConnect keeps a session open to one named host. All methods run
// on the main loop.
type autoConnect struct {
	target     string
	controller *stream.Controller
	clock      clock.Clock
	dispatcher mainloop.Dispatcher
	logger     *slog.Logger

	hosts []schema.HostInfo
	retry *clock.Timer
}

var _ stream.Listener = (*autoConnect)(nil)

func (a *autoConnect) hostsChanged(hosts []schema.HostInfo) {
	a.hosts = hosts
	a.tryStart()
}

func (a *autoConnect) tryStart() {
	if a.controller.Status().Phase != stream.PhaseIdle {
		return
	}
	for _, host := range a.hosts {
		if host.Name == a.target {
			a.controller.Start(host)
			return
		}
	}
	a.logger.Debug("target host not announced", "host", a.target)
}

func (a *autoConnect) scheduleRetry() {
	if a.retry != nil {
		a.retry.Stop()
	}
	a.retry = a.clock.AfterFunc(headlessRetryDelay, func() {
		a.dispatcher.Post(a.tryStart)
	})
}

func (a *autoConnect) stop() {
	if a.retry != nil {
		a.retry.Stop()
	}
}

func (a *autoConnect) Connected(info schema.SessionInfo) {
	a.logger.Info("streaming", "host", info.Host.Name, "session", info.SessionID)
}

func (a *autoConnect) Disconnected(info schema.SessionInfo, requested bool) {
	a.logger.Info("session ended", "host", info.Host.Name, "session", info.SessionID, "requested", requested)
	if !requested {
		a.scheduleRetry()
	}
}

func (a *autoConnect) ConnectFailed(host schema.HostInfo, err error) {
	a.logger.Warn("connect failed", "host", host.Name, "error", err)
	a.scheduleRetry()
}

// runHeadless connects to target whenever it is announced, with no
// terminal UI, until ctx is done.
func runHeadless(ctx context.Context, cfg *config.Config, target, logOutput string) error {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}), logOutput)
	if err != nil {
		return err
	}
	defer closer.Close()

	loop := mainloop.New()
	auto := &autoConnect{
		target:     target,
		clock:      clock.Real(),
		dispatcher: loop,
		logger:     logger,
	}

	c, err := newClient(ctx, clientOptions{
		Config:     cfg,
		Logger:     logger,
		Dispatcher: loop,
		OnHostsChanged: func(hosts []schema.HostInfo) {
			loop.Post(func() { auto.hostsChanged(hosts) })
		},
	})
	if err != nil {
		return err
	}
	auto.controller = c.controller
	c.controller.RegisterListener(auto)

	if err := c.start(ctx); err != nil {
		return err
	}
	logger.Info("headless client started", "host", target, "directory", cfg.Directory.URL)

	// Close blocks on the session worker, which may be waiting on the
	// loop, so the loop keeps running until Close returns.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()

	<-ctx.Done()
	loop.PostSync(auto.stop)
	c.close()
	stopLoop()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
