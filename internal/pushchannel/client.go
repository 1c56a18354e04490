// Package pushchannel implements a Socket.IO client that keeps one
// long-lived connection to an event server, falls back from websocket to
// long-polling, and reconnects with a fixed delay.
package pushchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"example/merch-display/internal/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
)

// Lifecycle event names, delivered through the same registry as server events
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
	EventError        = "error"
)

var (
	// ErrNotConnected is returned by Emit while no connection is established
	ErrNotConnected = errors.New("push channel is not connected")
	// ErrAttemptsExhausted is reported once the reconnection cap is reached
	ErrAttemptsExhausted = errors.New("reconnection attempts exhausted")

	errServerClosed = errors.New("server closed the connection")
	errPingTimeout  = errors.New("ping timeout")
)

// Handler receives the first argument of an event, raw
type Handler func(payload json.RawMessage)

// LifecycleInfo is the payload of disconnect, connect_error and error events
type LifecycleInfo struct {
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// ConnectionState is the observable state of the connection
type ConnectionState struct {
	Connected bool   `json:"connected"`
	LastError string `json:"lastError,omitempty"`
}

// Status condenses the state into the indicator shown on the display
func (s ConnectionState) Status() string {
	switch {
	case s.Connected:
		return "connected"
	case s.LastError != "":
		return "error"
	default:
		return "connecting"
	}
}

// Options configures a Client
type Options struct {
	// AuthToken is presented as auth.token in the namespace handshake
	AuthToken string
	// ReconnectionDelay is the fixed pause between attempts
	ReconnectionDelay time.Duration
	// ReconnectionAttempts caps consecutive failed attempts; 0 retries forever
	ReconnectionAttempts int
	// Transports lists transports in preference order
	Transports []string
	// Path is the Engine.IO endpoint path
	Path string

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

func (o Options) withDefaults() Options {
	if o.ReconnectionDelay <= 0 {
		o.ReconnectionDelay = time.Second
	}
	if len(o.Transports) == 0 {
		o.Transports = []string{TransportWebsocket, TransportPolling}
	}
	if o.Path == "" {
		o.Path = "/socket.io/"
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	return o
}

// Subscription is a registered handler; Unsubscribe releases it
type Subscription struct {
	client *Client
	event  string
	fn     Handler
}

// Unsubscribe removes the handler from its client
func (s *Subscription) Unsubscribe() {
	if s != nil && s.client != nil {
		s.client.Off(s)
	}
}

// Client owns a single push-channel connection
type Client struct {
	rawURL string
	opts   Options

	mu       sync.Mutex
	handlers map[string][]*Subscription
	state    ConnectionState
	conn     transport
	started  bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}

	closeOnce sync.Once
}

// New creates a client for the event server at rawURL (http, https, ws or wss)
func New(rawURL string, opts Options) *Client {
	return &Client{
		rawURL:   rawURL,
		opts:     opts.withDefaults(),
		handlers: make(map[string][]*Subscription),
	}
}

// On registers h for event; handlers for one event run in registration order
func (c *Client) On(event string, h Handler) *Subscription {
	sub := &Subscription{client: c, event: event, fn: h}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return sub
	}
	c.handlers[event] = append(c.handlers[event], sub)
	return sub
}

// Off removes a subscription returned by On
func (c *Client) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.handlers[sub.event]
	for i, s := range subs {
		if s == sub {
			c.handlers[sub.event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(c.handlers[sub.event]) == 0 {
		delete(c.handlers, sub.event)
	}
}

// Listeners reports how many handlers are registered for event
func (c *Client) Listeners(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers[event])
}

// Status returns a snapshot of the connection state
func (c *Client) Status() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the connection loop in the background and returns at once
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.mu.Unlock()

	logger.Log.Infow("Push channel connecting", "url", c.rawURL, "transports", c.opts.Transports)
	go c.run(ctx)
}

// Emit sends an event when connected; otherwise the message is dropped
func (c *Client) Emit(event string, payload any) error {
	c.mu.Lock()
	t, connected := c.conn, c.state.Connected
	c.mu.Unlock()

	if !connected || t == nil {
		logger.Log.Warnw("Push channel is not connected, message dropped", "event", event)
		return ErrNotConnected
	}
	pkt, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}
	if err := t.WritePacket(pkt); err != nil {
		logger.Log.Warnw("Push channel write failed", "event", event, "error", err)
		return fmt.Errorf("emit %q: %w", event, err)
	}
	return nil
}

// Close stops reconnecting, closes the connection and drops all handlers.
// It must not be called from inside a handler.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.handlers = make(map[string][]*Subscription)
		c.state.Connected = false
		cancel, t, done := c.cancel, c.conn, c.done
		c.conn = nil
		c.mu.Unlock()

		if t != nil {
			_ = t.WritePacket(string([]byte{engineMessage, socketDisconnect}))
			_ = t.Close()
		}
		if cancel != nil {
			cancel()
		}
		if done != nil {
			<-done
		}
		logger.Log.Infow("Push channel closed", "url", c.rawURL)
	})
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	failures := 0
	for {
		established, err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if established {
			failures = 0
		} else {
			failures++
			c.fail(EventConnectError, err)
		}

		if c.opts.ReconnectionAttempts > 0 && failures >= c.opts.ReconnectionAttempts {
			logger.Log.Errorw("Push channel giving up", "url", c.rawURL, "attempts", failures)
			c.fail(EventError, ErrAttemptsExhausted)
			return
		}

		logger.Log.Debugw("Push channel reconnecting", "url", c.rawURL, "delay", c.opts.ReconnectionDelay, "failures", failures)
		timer := time.NewTimer(c.opts.ReconnectionDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connection until it ends. established reports whether
// the namespace handshake succeeded.
func (c *Client) session(ctx context.Context) (established bool, err error) {
	t, err := c.open(ctx)
	if err != nil {
		return false, err
	}
	defer t.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			t.Close()
		case <-stop:
		}
	}()

	first, err := t.ReadPacket()
	if err != nil {
		return false, fmt.Errorf("read open packet: %w", err)
	}
	hs, err := decodeHandshake(first)
	if err != nil {
		return false, err
	}

	var timedOut atomic.Bool
	var watchdog *time.Timer
	if hs.PingInterval > 0 {
		limit := time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond
		watchdog = time.AfterFunc(limit, func() {
			timedOut.Store(true)
			t.Close()
		})
		defer watchdog.Stop()
	}
	read := func() (string, error) {
		pkt, err := t.ReadPacket()
		if err != nil {
			if timedOut.Load() {
				return "", errPingTimeout
			}
			return "", err
		}
		if watchdog != nil {
			watchdog.Reset(time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond)
		}
		return pkt, nil
	}

	connectPkt, err := encodeConnect(c.opts.AuthToken)
	if err != nil {
		return false, err
	}
	if err := t.WritePacket(connectPkt); err != nil {
		return false, fmt.Errorf("send connect: %w", err)
	}

	if err := c.awaitConnect(t, read); err != nil {
		return false, err
	}

	if !c.setConnected(t) {
		return true, nil
	}
	logger.Log.Infow("Push channel connected", "url", c.rawURL, "transport", t.Name(), "sid", hs.SID)
	c.dispatch(EventConnect, nil)

	reason := c.readLoop(t, read)
	c.setDisconnected(reason)
	return true, nil
}

func (c *Client) awaitConnect(t transport, read func() (string, error)) error {
	for {
		pkt, err := read()
		if err != nil {
			return fmt.Errorf("await connect: %w", err)
		}
		if pkt == "" {
			continue
		}
		switch pkt[0] {
		case enginePing:
			if err := t.WritePacket(string(enginePong)); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		case engineClose:
			return errServerClosed
		case engineMessage:
			sp, err := decodeSocketPacket(pkt[1:])
			if err != nil {
				return err
			}
			switch sp.kind {
			case socketConnect:
				return nil
			case socketConnectError:
				return errors.New(sp.errorMessage())
			}
		}
	}
}

func (c *Client) readLoop(t transport, read func() (string, error)) string {
	for {
		pkt, err := read()
		if err != nil {
			if errors.Is(err, errPingTimeout) {
				return "ping timeout"
			}
			if c.isClosed() {
				return "io client disconnect"
			}
			logger.Log.Warnw("Push channel transport error", "url", c.rawURL, "error", err)
			return "transport error"
		}
		if pkt == "" {
			continue
		}
		switch pkt[0] {
		case enginePing:
			if err := t.WritePacket(string(enginePong)); err != nil {
				return "transport error"
			}
		case engineClose:
			return "transport close"
		case engineMessage:
			sp, err := decodeSocketPacket(pkt[1:])
			if err != nil {
				logger.Log.Warnw("Push channel dropped packet", "error", err, "packet", truncate(pkt))
				continue
			}
			switch sp.kind {
			case socketEvent:
				name, payload, err := sp.event()
				if err != nil {
					logger.Log.Warnw("Push channel dropped event", "error", err, "packet", truncate(pkt))
					continue
				}
				c.dispatch(name, payload)
			case socketDisconnect:
				return "io server disconnect"
			case socketConnectError:
				c.fail(EventError, errors.New(sp.errorMessage()))
			}
		}
	}
}

func (c *Client) open(ctx context.Context) (transport, error) {
	var errs error
	for _, name := range c.opts.Transports {
		u, err := c.endpoint(name)
		if err != nil {
			return nil, err
		}
		var t transport
		switch name {
		case TransportWebsocket:
			t, err = dialWebsocket(ctx, c.opts.Dialer, u)
		case TransportPolling:
			t, err = dialPolling(ctx, c.opts.HTTPClient, u)
		default:
			err = fmt.Errorf("unknown transport %q", name)
		}
		if err == nil {
			return t, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Log.Debugw("Push channel transport unavailable", "transport", name, "error", err)
		errs = multierr.Append(errs, err)
	}
	if errs == nil {
		errs = errors.New("no transport configured")
	}
	return nil, errs
}

func (c *Client) endpoint(name string) (*url.URL, error) {
	u, err := url.Parse(c.rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse push channel url: %w", err)
	}
	path := c.opts.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimRight(u.Path, "/") + path

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", name)
	u.RawQuery = q.Encode()

	switch {
	case name == TransportWebsocket && u.Scheme == "http":
		u.Scheme = "ws"
	case name == TransportWebsocket && u.Scheme == "https":
		u.Scheme = "wss"
	case name == TransportPolling && u.Scheme == "ws":
		u.Scheme = "http"
	case name == TransportPolling && u.Scheme == "wss":
		u.Scheme = "https"
	}
	return u, nil
}

func (c *Client) setConnected(t transport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conn = t
	c.state = ConnectionState{Connected: true}
	return true
}

func (c *Client) setDisconnected(reason string) {
	c.mu.Lock()
	c.conn = nil
	c.state.Connected = false
	closed := c.closed
	c.mu.Unlock()

	logger.Log.Infow("Push channel disconnected", "url", c.rawURL, "reason", reason)
	if !closed {
		c.dispatch(EventDisconnect, mustJSON(LifecycleInfo{Reason: reason}))
	}
}

func (c *Client) fail(event string, err error) {
	msg := "connection error"
	if err != nil {
		msg = err.Error()
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = ConnectionState{Connected: false, LastError: msg}
	c.mu.Unlock()

	logger.Log.Warnw("Push channel error", "url", c.rawURL, "event", event, "error", msg)
	c.dispatch(event, mustJSON(LifecycleInfo{Message: msg}))
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) dispatch(event string, payload json.RawMessage) {
	c.mu.Lock()
	subs := append([]*Subscription(nil), c.handlers[event]...)
	c.mu.Unlock()

	for _, sub := range subs {
		c.invoke(sub, payload)
	}
}

func (c *Client) invoke(sub *Subscription, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorw("Push channel handler panicked", "event", sub.event, "panic", r)
		}
	}()
	sub.fn(payload)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
