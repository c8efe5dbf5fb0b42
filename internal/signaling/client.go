package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 256 * 1024
	handshakeWait  = 10 * time.Second
)

// State is the connection state of the signaling socket.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Identity is the auth identity attached to the socket handshake.
// It is fixed at client construction time, not per request.
type Identity struct {
	UserID string
	Token  string
}

// EventHandler receives the payload of one server-pushed event.
type EventHandler func(payload json.RawMessage)

// Client manages the single WebSocket connection to the signaling
// server. All requests, acks and pushes are multiplexed over it.
type Client struct {
	serverURL string
	identity  Identity

	reconnectAttempts int
	reconnectDelay    time.Duration

	outgoing  chan *Envelope
	done      chan struct{}
	pumpOnce  sync.Once

	mu            sync.Mutex
	conn          *websocket.Conn
	state         State
	closed        bool
	handlers      map[string]map[int]EventHandler
	nextHandlerID int
	onResponse    func(*Envelope)
	onDropped     func(error)
	onState       func(State)
}

// NewClient creates a new signaling client. The identity travels in
// the connection handshake, so every message on the socket is already
// authenticated.
func NewClient(serverURL string, identity Identity) *Client {
	return &Client{
		serverURL:         serverURL,
		identity:          identity,
		reconnectAttempts: 5,
		reconnectDelay:    time.Second,
		outgoing:          make(chan *Envelope, 16),
		done:              make(chan struct{}),
		state:             StateDisconnected,
		handlers:          make(map[string]map[int]EventHandler),
	}
}

// SetReconnect overrides the bounded reconnection policy.
func (c *Client) SetReconnect(attempts int, delay time.Duration) {
	c.reconnectAttempts = attempts
	c.reconnectDelay = delay
}

// OnStateChange registers a callback invoked on every connection
// state transition. Must be set before Connect.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Connect establishes the WebSocket connection. It fails fast on a
// dial error instead of retrying; the bounded retry policy only
// applies to an established connection that drops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(StateConnecting)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.pumpOnce.Do(func() { go c.writePump() })
	c.attach(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	q := u.Query()
	q.Set("userId", c.identity.UserID)
	q.Set("token", c.identity.Token)
	u.RawQuery = q.Encode()

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeWait

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

// attach installs a live connection and starts reading from it.
func (c *Client) attach(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(StateConnected)

	go c.readPump(conn)
}

// readPump reads envelopes from one connection until it dies.
func (c *Client) readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		c.dispatch(&env)
	}
}

// dispatch routes one incoming envelope: correlated responses go to
// the correlator, everything else is a server push for the handler
// registry. Handlers run on the read loop, so they must not block.
func (c *Client) dispatch(env *Envelope) {
	if env.ID != 0 {
		c.mu.Lock()
		respond := c.onResponse
		c.mu.Unlock()
		if respond != nil {
			respond(env)
		} else {
			slog.Debug("dropping response with no correlator", "kind", env.Kind, "id", env.ID)
		}
		return
	}

	c.mu.Lock()
	registered := c.handlers[env.Kind]
	list := make([]EventHandler, 0, len(registered))
	for _, h := range registered {
		list = append(list, h)
	}
	c.mu.Unlock()

	if len(list) == 0 {
		slog.Debug("unhandled server event", "kind", env.Kind)
		return
	}
	for _, h := range list {
		h(env.Payload)
	}
}

// writePump is the single writer for the lifetime of the client. It
// survives reconnects by resolving the current connection per write.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.outgoing:
			if err := c.write(env); err != nil {
				slog.Warn("dropping outbound message", "kind", env.Kind, "error", err)
			}

		case <-ticker.C:
			c.writeControl(websocket.PingMessage)

		case <-c.done:
			c.writeControl(websocket.CloseMessage)
			return
		}
	}
}

func (c *Client) write(env *Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

func (c *Client) writeControl(messageType int) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(messageType, nil)
}

// handleDisconnect reacts to a dead connection by failing every
// in-flight request and entering the bounded reconnect loop.
func (c *Client) handleDisconnect(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		// Stale pump; a newer connection already took over.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	dropped := c.onDropped
	c.mu.Unlock()

	slog.Warn("signaling socket lost", "error", err)
	if dropped != nil {
		dropped(ErrConnectionLost)
	}
	c.reconnect()
}

func (c *Client) reconnect() {
	c.setState(StateConnecting)

	for attempt := 1; attempt <= c.reconnectAttempts; attempt++ {
		select {
		case <-c.done:
			c.setState(StateDisconnected)
			return
		case <-time.After(c.reconnectDelay):
		}

		conn, err := c.dial(context.Background())
		if err == nil {
			slog.Info("signaling socket reconnected", "attempt", attempt)
			c.attach(conn)
			return
		}
		slog.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
	}

	// Retries exhausted; terminal for this session.
	c.setState(StateError)
}

// Send queues one envelope for transmission.
func (c *Client) Send(env *Envelope) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	select {
	case c.outgoing <- env:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// On registers a handler for a server-pushed event and returns a
// function that removes exactly that handler.
func (c *Client) On(event string, fn EventHandler) (off func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]EventHandler)
	}
	id := c.nextHandlerID
	c.nextHandlerID++
	c.handlers[event][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
	}
}

// RemoveAllHandlers drops every registered event handler.
func (c *Client) RemoveAllHandlers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = make(map[string]map[int]EventHandler)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the socket is currently usable.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.state == StateConnected
}

// Close shuts the socket down. Safe to call more than once and safe
// to call on a client that never connected.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	dropped := c.onDropped
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		conn.Close()
	}
	if dropped != nil {
		dropped(ErrClosed)
	}
	c.setState(StateDisconnected)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	cb := c.onState
	c.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// bindResponses hands correlated responses to the correlator.
func (c *Client) bindResponses(fn func(*Envelope)) {
	c.mu.Lock()
	c.onResponse = fn
	c.mu.Unlock()
}

// bindDropped installs the callback fired when the connection drops
// with requests still in flight.
func (c *Client) bindDropped(fn func(error)) {
	c.mu.Lock()
	c.onDropped = fn
	c.mu.Unlock()
}
