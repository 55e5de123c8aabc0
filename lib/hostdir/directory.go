// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostdir

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/hoststream/lib/clock"
	"github.com/bureau-foundation/hoststream/lib/listeners"
	"github.com/bureau-foundation/hoststream/lib/netutil"
	"github.com/bureau-foundation/hoststream/lib/schema"
	"github.com/bureau-foundation/hoststream/lib/stream"
	"github.com/bureau-foundation/hoststream/lib/version"
	"github.com/bureau-foundation/hoststream/transport"
)

const (
	DefaultReconnectBaseDelay = time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second

	writeTimeout = 10 * time.Second
)

// ErrNotConnected is returned by Exchange while the broker connection
// is down.
var ErrNotConnected = errors.New("hostdir: not connected to broker")

// Compile-time interface checks.
var (
	_ stream.HostDirectory = (*Directory)(nil)
	_ transport.Signaler   = (*Directory)(nil)
)

// Options configures a [Directory].
type Options struct {
	// URL is the broker's websocket URL (ws:// or wss://). Required.
	URL string

	// Dialer opens the websocket. If nil, websocket.DefaultDialer is
	// used.
	Dialer *websocket.Dialer

	// Clock drives reconnect backoff. If nil, the real clock is used.
	Clock clock.Clock

	// Logger receives diagnostic messages. Required.
	Logger *slog.Logger

	// ReconnectBaseDelay and ReconnectMaxDelay bound the exponential
	// backoff between connection attempts. Zero selects the defaults.
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration

	// MinimumVersion hides announced hosts older than it. The zero
	// value selects version.MinimumHostProtocol.
	MinimumVersion version.Number

	// OnHostsChanged is called with the filtered host list after each
	// announcement. Optional; called from the read goroutine.
	OnHostsChanged func([]schema.HostInfo)

	// OnRequestFailed is called when the broker cannot serve a session
	// request. Optional; called from the read goroutine.
	OnRequestFailed func(host schema.HostInfo, reason string)
}

// Directory is the broker client. Its methods are safe for concurrent
// use; [Directory.Run] drives the connection.
type Directory struct {
	options Options

	listeners listeners.Registry[stream.HostListener]

	mu        sync.Mutex
	conn      *websocket.Conn
	hosts     []schema.HostInfo
	pending   *schema.HostInfo
	exchanges map[string]chan AnswerPayload
	nextID    uint64

	// writeMu serializes writes on conn.
	writeMu sync.Mutex
}

// New validates options and returns an unconnected directory.
func New(options Options) (*Directory, error) {
	if options.URL == "" {
		return nil, errors.New("hostdir: URL is required")
	}
	if options.Logger == nil {
		return nil, errors.New("hostdir: Logger is required")
	}
	if options.Dialer == nil {
		options.Dialer = websocket.DefaultDialer
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.ReconnectBaseDelay <= 0 {
		options.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if options.ReconnectMaxDelay < options.ReconnectBaseDelay {
		options.ReconnectMaxDelay = max(DefaultReconnectMaxDelay, options.ReconnectBaseDelay)
	}
	if options.MinimumVersion == (version.Number{}) {
		options.MinimumVersion = version.MinimumHostProtocol
	}
	return &Directory{
		options:   options,
		exchanges: make(map[string]chan AnswerPayload),
	}, nil
}

// Run connects to the broker and serves the connection, reconnecting
// with exponential backoff until ctx is cancelled. It returns nil on
// cancellation.
func (d *Directory) Run(ctx context.Context) error {
	delay := d.options.ReconnectBaseDelay
	for {
		conn, response, err := d.options.Dialer.DialContext(ctx, d.options.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			attrs := []any{"url", d.options.URL, "error", err, "retry_in", delay}
			if response != nil {
				attrs = append(attrs, "status", response.StatusCode, "body", netutil.ErrorBody(response.Body))
				response.Body.Close()
			}
			d.options.Logger.Warn("broker dial failed", attrs...)
			select {
			case <-d.options.Clock.After(delay):
			case <-ctx.Done():
				return nil
			}
			delay = min(delay*2, d.options.ReconnectMaxDelay)
			continue
		}

		delay = d.options.ReconnectBaseDelay
		d.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// serve owns conn until it fails or ctx is cancelled.
func (d *Directory) serve(ctx context.Context, conn *websocket.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	d.mu.Lock()
	d.conn = conn
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	d.options.Logger.Info("connected to broker", "url", d.options.URL)

	if pending != nil {
		d.RequestSession(*pending)
	}

	for {
		var envelope Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			if ctx.Err() != nil || netutil.IsExpectedCloseError(err) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				d.options.Logger.Info("broker connection closed", "error", err)
			} else {
				d.options.Logger.Warn("broker connection failed", "error", err)
			}
			break
		}
		d.dispatch(envelope)
	}

	d.mu.Lock()
	if d.conn == conn {
		d.conn = nil
	}
	exchanges := d.exchanges
	d.exchanges = make(map[string]chan AnswerPayload)
	d.mu.Unlock()
	for _, reply := range exchanges {
		reply <- AnswerPayload{Error: ErrNotConnected.Error()}
	}
}

func (d *Directory) dispatch(envelope Envelope) {
	logger := d.options.Logger
	switch envelope.Type {
	case MessageHosts:
		var payload HostsPayload
		if err := envelope.decodePayload(&payload); err != nil {
			logger.Warn("dropping broker message", "error", err)
			return
		}
		hosts := d.filterHosts(payload.Hosts)
		d.mu.Lock()
		d.hosts = hosts
		d.mu.Unlock()
		logger.Debug("host list updated", "announced", len(payload.Hosts), "usable", len(hosts))
		if d.options.OnHostsChanged != nil {
			d.options.OnHostsChanged(append([]schema.HostInfo(nil), hosts...))
		}

	case MessageSessionStarted:
		var payload SessionStartedPayload
		if err := envelope.decodePayload(&payload); err != nil {
			logger.Warn("dropping broker message", "error", err)
			return
		}
		logger.Info("session started", "host", payload.Session.Host.Name, "session", payload.Session.SessionID)
		d.listeners.Notify(func(listener stream.HostListener) {
			listener.SessionStarted(payload.Session)
		})

	case MessageSessionFailed:
		var payload SessionFailedPayload
		if err := envelope.decodePayload(&payload); err != nil {
			logger.Warn("dropping broker message", "error", err)
			return
		}
		logger.Warn("session request failed", "host", payload.Host.Name, "reason", payload.Reason)
		if d.options.OnRequestFailed != nil {
			d.options.OnRequestFailed(payload.Host, payload.Reason)
		}

	case MessageAnswer:
		var payload AnswerPayload
		if err := envelope.decodePayload(&payload); err != nil {
			payload = AnswerPayload{Error: err.Error()}
		}
		d.mu.Lock()
		reply, ok := d.exchanges[envelope.ID]
		delete(d.exchanges, envelope.ID)
		d.mu.Unlock()
		if !ok {
			logger.Debug("dropping uncorrelated answer", "id", envelope.ID)
			return
		}
		reply <- payload

	case MessageError:
		var payload ErrorPayload
		envelope.decodePayload(&payload)
		logger.Warn("broker reported error", "reason", payload.Reason, "id", envelope.ID)

	default:
		logger.Debug("ignoring broker message", "type", envelope.Type)
	}
}

func (d *Directory) filterHosts(announced []schema.HostInfo) []schema.HostInfo {
	hosts := make([]schema.HostInfo, 0, len(announced))
	for _, host := range announced {
		if !Supported(host, d.options.MinimumVersion) {
			d.options.Logger.Debug("hiding host with unsupported version",
				"host", host.Name,
				"version", host.Version,
				"minimum", d.options.MinimumVersion.String(),
			)
			continue
		}
		hosts = append(hosts, host)
	}
	return hosts
}

// Supported reports whether host speaks at least protocol minimum. A
// host with a malformed version is never supported.
func Supported(host schema.HostInfo, minimum version.Number) bool {
	number, err := version.Parse(host.Version)
	return err == nil && number.AtLeast(minimum)
}

func (d *Directory) write(conn *websocket.Conn, envelope Envelope) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(envelope)
}

// RequestSession implements [stream.HostDirectory]. While the broker
// is unreachable the request is held and sent on the next connection;
// a newer request replaces a held one.
func (d *Directory) RequestSession(host schema.HostInfo) {
	envelope, err := newEnvelope(MessageRequestSession, "", &RequestSessionPayload{Host: host})
	if err != nil {
		d.options.Logger.Error("encoding session request", "error", err)
		return
	}

	d.mu.Lock()
	conn := d.conn
	if conn == nil {
		d.pending = &host
		d.mu.Unlock()
		d.options.Logger.Info("broker unreachable, holding session request", "host", host.Name)
		return
	}
	d.mu.Unlock()

	if err := d.write(conn, envelope); err != nil {
		d.mu.Lock()
		d.pending = &host
		d.mu.Unlock()
		d.options.Logger.Warn("sending session request failed, holding it", "host", host.Name, "error", err)
		conn.Close()
		return
	}
	d.options.Logger.Debug("session requested", "host", host.Name)
}

// RegisterListener implements [stream.HostDirectory].
func (d *Directory) RegisterListener(listener stream.HostListener) listeners.Handle {
	return d.listeners.Add(listener)
}

// UnregisterListener implements [stream.HostDirectory].
func (d *Directory) UnregisterListener(handle listeners.Handle) {
	d.listeners.Remove(handle)
}

// Hosts returns the most recent usable host list.
func (d *Directory) Hosts() []schema.HostInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]schema.HostInfo(nil), d.hosts...)
}

// Connected reports whether the broker connection is up.
func (d *Directory) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// Exchange implements [transport.Signaler] by relaying the offer
// through the broker and waiting for the correlated answer.
func (d *Directory) Exchange(ctx context.Context, target, offerSDP string) (string, error) {
	d.mu.Lock()
	conn := d.conn
	if conn == nil {
		d.mu.Unlock()
		return "", ErrNotConnected
	}
	d.nextID++
	id := "offer-" + strconv.FormatUint(d.nextID, 10)
	reply := make(chan AnswerPayload, 1)
	d.exchanges[id] = reply
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.exchanges, id)
		d.mu.Unlock()
	}()

	envelope, err := newEnvelope(MessageOffer, id, &OfferPayload{Target: target, SDP: offerSDP})
	if err != nil {
		return "", err
	}
	if err := d.write(conn, envelope); err != nil {
		return "", fmt.Errorf("sending offer to %s: %w", target, err)
	}

	select {
	case answer := <-reply:
		if answer.Error != "" {
			if answer.Error == transport.ErrUnknownPeer.Error() {
				return "", fmt.Errorf("%w: %s", transport.ErrUnknownPeer, target)
			}
			return "", fmt.Errorf("signaling %s: %s", target, answer.Error)
		}
		return answer.SDP, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
