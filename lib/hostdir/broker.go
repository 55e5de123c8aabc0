// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostdir

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/hoststream/lib/netutil"
	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/transport"
)

// answerTimeout bounds one relayed SDP answer.
const answerTimeout = 30 * time.Second

// SessionIssuer creates session credentials for a requested host.
type SessionIssuer func(host schema.HostInfo) (schema.SessionInfo, error)

// BrokerOptions configures a [Broker].
type BrokerOptions struct {
	// Hosts is the initial announcement.
	Hosts []schema.HostInfo

	// Issue serves session requests. Required.
	Issue SessionIssuer

	// Answerers map a host name to the function that answers WebRTC
	// offers for it. Offers to other names are refused with
	// transport.ErrUnknownPeer.
	Answerers map[string]transport.AnswerFunc

	// CheckOrigin is passed to the websocket upgrader. If nil, the
	// gorilla default (same origin) applies.
	CheckOrigin func(r *http.Request) bool

	// Logger receives diagnostic messages. Required.
	Logger *slog.Logger
}

// Broker is the server side of the host directory.
type Broker struct {
	options  BrokerOptions
	upgrader websocket.Upgrader

	mu      sync.Mutex
	hosts   []schema.HostInfo
	clients map[*brokerClient]struct{}
}

type brokerClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *brokerClient) send(messageType, id string, payload any) error {
	envelope, err := newEnvelope(messageType, id, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(envelope)
}

// NewBroker validates options and returns a broker.
func NewBroker(options BrokerOptions) (*Broker, error) {
	if options.Issue == nil {
		return nil, errors.New("hostdir broker: Issue is required")
	}
	if options.Logger == nil {
		return nil, errors.New("hostdir broker: Logger is required")
	}
	return &Broker{
		options:  options,
		upgrader: websocket.Upgrader{CheckOrigin: options.CheckOrigin},
		hosts:    append([]schema.HostInfo(nil), options.Hosts...),
		clients:  make(map[*brokerClient]struct{}),
	}, nil
}

// SetHosts replaces the announced host list and pushes it to every
// connected client.
func (b *Broker) SetHosts(hosts []schema.HostInfo) {
	b.mu.Lock()
	b.hosts = append([]schema.HostInfo(nil), hosts...)
	clients := make([]*brokerClient, 0, len(b.clients))
	for client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.Unlock()

	for _, client := range clients {
		if err := client.send(MessageHosts, "", &HostsPayload{Hosts: hosts}); err != nil {
			b.options.Logger.Debug("announcing hosts failed", "remote", client.conn.RemoteAddr().String(), "error", err)
		}
	}
}

// DisconnectAll drops every client connection. Clients are free to
// reconnect.
func (b *Broker) DisconnectAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for client := range b.clients {
		client.conn.Close()
	}
}

// Clients returns the number of connected clients.
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// ServeHTTP upgrades the request to a websocket and serves it until
// the client disconnects.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.options.Logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	logger := b.options.Logger.With("remote", r.RemoteAddr)
	client := &brokerClient{conn: conn}

	b.mu.Lock()
	b.clients[client] = struct{}{}
	hosts := append([]schema.HostInfo(nil), b.hosts...)
	b.mu.Unlock()
	logger.Info("directory client connected")

	defer func() {
		b.mu.Lock()
		delete(b.clients, client)
		b.mu.Unlock()
		conn.Close()
		logger.Info("directory client disconnected")
	}()

	if err := client.send(MessageHosts, "", &HostsPayload{Hosts: hosts}); err != nil {
		logger.Warn("announcing hosts failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	for {
		var envelope Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			if !netutil.IsExpectedCloseError(err) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("directory client read failed", "error", err)
			}
			return
		}
		b.handle(ctx, logger, client, envelope)
	}
}

func (b *Broker) handle(ctx context.Context, logger *slog.Logger, client *brokerClient, envelope Envelope) {
	switch envelope.Type {
	case MessageRequestSession:
		var payload RequestSessionPayload
		if err := envelope.decodePayload(&payload); err != nil {
			b.reply(logger, client, MessageError, envelope.ID, &ErrorPayload{Reason: err.Error()})
			return
		}
		info, err := b.options.Issue(payload.Host)
		if err != nil {
			logger.Warn("session request refused", "host", payload.Host.Name, "error", err)
			b.reply(logger, client, MessageSessionFailed, envelope.ID, &SessionFailedPayload{Host: payload.Host, Reason: err.Error()})
			return
		}
		logger.Info("session issued", "host", info.Host.Name, "session", info.SessionID)
		b.reply(logger, client, MessageSessionStarted, envelope.ID, &SessionStartedPayload{Session: info})

	case MessageOffer:
		var payload OfferPayload
		if err := envelope.decodePayload(&payload); err != nil {
			b.reply(logger, client, MessageAnswer, envelope.ID, &AnswerPayload{Error: err.Error()})
			return
		}
		answer, ok := b.options.Answerers[payload.Target]
		if !ok {
			b.reply(logger, client, MessageAnswer, envelope.ID, &AnswerPayload{Error: transport.ErrUnknownPeer.Error()})
			return
		}
		// Answering gathers ICE candidates, which takes a while; the
		// read loop keeps serving other messages meanwhile.
		go func() {
			answerCtx, cancel := context.WithTimeout(ctx, answerTimeout)
			defer cancel()
			sdp, err := answer(answerCtx, payload.SDP)
			if err != nil {
				logger.Warn("answering offer failed", "target", payload.Target, "error", err)
				b.reply(logger, client, MessageAnswer, envelope.ID, &AnswerPayload{Error: err.Error()})
				return
			}
			b.reply(logger, client, MessageAnswer, envelope.ID, &AnswerPayload{SDP: sdp})
		}()

	default:
		b.reply(logger, client, MessageError, envelope.ID, &ErrorPayload{Reason: "unsupported message type " + envelope.Type})
	}
}

func (b *Broker) reply(logger *slog.Logger, client *brokerClient, messageType, id string, payload any) {
	if err := client.send(messageType, id, payload); err != nil {
		logger.Debug("reply failed", "type", messageType, "error", err)
	}
}

// HostsHandler serves the current host list as JSON, for tools that
// want a snapshot without holding a websocket.
func (b *Broker) HostsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		hosts := append([]schema.HostInfo(nil), b.hosts...)
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(&HostsPayload{Hosts: hosts}); err != nil {
			b.options.Logger.Debug("writing host list failed", "error", err)
		}
	})
}
