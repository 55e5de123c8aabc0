// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/hoststream/lib/clock"
	"github.com/bureau-foundation/hoststream/lib/config"
	"github.com/bureau-foundation/hoststream/lib/hostdir"
	"github.com/bureau-foundation/hoststream/lib/metrics"
	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/session"
	"github.com/bureau-foundation/hoststream/transport"
)

const shutdownTimeout = 5 * time.Second

// hostServer is the broker, token store, and stream endpoint of one
// host.
type hostServer struct {
	logger   *slog.Logger
	info     schema.HostInfo
	tokens   *session.TokenStore
	endpoint *session.Host
	listener transport.Listener
	broker   *hostdir.Broker
	registry *prometheus.Registry

	brokerListen string

	// streamAddress is what issued sessions tell clients to dial.
	streamAddress string
}

func newHostServer(cfg *config.Config, logger *slog.Logger, logInput bool) (*hostServer, error) {
	s := &hostServer{
		logger:       logger,
		tokens:       session.NewTokenStore(clock.Real(), cfg.Host.TokenTTL),
		registry:     metrics.NewRegistry(),
		brokerListen: cfg.Host.BrokerListen,
	}
	recorder := metrics.NewHostRecorder(s.registry)

	var err error
	s.endpoint, err = session.NewHost(session.HostOptions{
		Name:      cfg.Host.Name,
		Authorize: s.tokens.Authorize,
		OnEvent: func(event session.HostEvent) {
			recorder.Observe(event)
			if logInput && event.Kind == session.HostEventInput {
				logger.Debug("input", "session", event.SessionID, "type", fmt.Sprintf("0x%02x", event.MessageType), "message", event.Message)
			}
		},
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		Logger:           logger.With("component", "stream"),
	})
	if err != nil {
		return nil, err
	}

	answerers := make(map[string]transport.AnswerFunc)
	advertise := cfg.Host.AdvertiseAddress
	switch cfg.Transport.Kind {
	case config.TransportWebRTC:
		answerer := transport.NewWebRTCAnswerer(cfg.Host.Name, cfg.Transport.ICEConfig(), logger.With("component", "webrtc"))
		answerers[answerer.Address()] = answerer.Answer
		s.listener = answerer
		s.streamAddress = answerer.Address()
		if advertise == "" {
			advertise = cfg.Host.StreamListen
		}
	default:
		listener, err := transport.NewTCPListener(cfg.Host.StreamListen)
		if err != nil {
			return nil, fmt.Errorf("stream listener: %w", err)
		}
		s.listener = listener
		if advertise == "" {
			advertise = listener.Address()
		}
		s.streamAddress = advertise
	}

	address, err := netip.ParseAddrPort(advertise)
	if err != nil {
		s.listener.Close()
		return nil, fmt.Errorf("host advertise address %q: %w", advertise, err)
	}
	s.info = schema.HostInfo{
		Name:    cfg.Host.Name,
		Address: address,
		Version: cfg.Host.Version,
	}

	s.broker, err = hostdir.NewBroker(hostdir.BrokerOptions{
		Hosts:     []schema.HostInfo{s.info},
		Issue:     s.issue,
		Answerers: answerers,
		Logger:    logger.With("component", "broker"),
	})
	if err != nil {
		s.listener.Close()
		return nil, err
	}
	return s, nil
}

// issue hands out a session for a directory request.
func (s *hostServer) issue(requested schema.HostInfo) (schema.SessionInfo, error) {
	if requested.Name != s.info.Name {
		return schema.SessionInfo{}, fmt.Errorf("unknown host %q", requested.Name)
	}
	sessionID, token, err := s.tokens.Issue()
	if err != nil {
		return schema.SessionInfo{}, err
	}
	return schema.SessionInfo{
		Host:          s.info,
		SessionID:     sessionID,
		StreamAddress: s.streamAddress,
		Token:         token,
	}, nil
}

func (s *hostServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/directory", s.broker)
	mux.Handle("/hosts", s.broker.HostsHandler())
	mux.Handle("/metrics", metrics.Handler(s.registry))
	return mux
}

// run serves until ctx is done, then disconnects every client.
func (s *hostServer) run(ctx context.Context) error {
	brokerListener, err := net.Listen("tcp", s.brokerListen)
	if err != nil {
		s.listener.Close()
		return fmt.Errorf("broker listener: %w", err)
	}
	return s.serve(ctx, brokerListener)
}

func (s *hostServer) serve(ctx context.Context, brokerListener net.Listener) error {
	server := &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var (
		wait sync.WaitGroup
		errs = make(chan error, 2)
	)
	wait.Add(2)
	go func() {
		defer wait.Done()
		if err := s.listener.Serve(ctx, s.endpoint.Handle); err != nil {
			errs <- fmt.Errorf("stream listener: %w", err)
		}
	}()
	go func() {
		defer wait.Done()
		if err := server.Serve(brokerListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("broker: %w", err)
		}
	}()
	s.logger.Info("host ready",
		"name", s.info.Name,
		"broker", brokerListener.Addr().String(),
		"stream", s.streamAddress,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.broker.DisconnectAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("broker shutdown", "error", err)
	}
	s.listener.Close()
	s.endpoint.Close()
	wait.Wait()
	return runErr
}
