// Package client provides a reconnecting websocket agent for the live
// show service. The hub keeps no event log, so missed events are never
// replayed; instead the agent invokes a resync hook on every fresh
// connection and the application re-fetches authoritative state (active
// look, own wishlist) over the REST API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// State describes the agent's connection lifecycle
type State string

const (
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

// ErrMaxAttempts is returned by Run when the reconnect budget is exhausted
var ErrMaxAttempts = errors.New("reconnect attempts exhausted")

// Message is the wire envelope exchanged with the hub
type Message struct {
	Type         string      `json:"type"`
	Timestamp    int64       `json:"timestamp,omitempty"`
	GuestID      string      `json:"guest_id,omitempty"`
	LookID       string      `json:"look_id,omitempty"`
	ProductID    string      `json:"product_id,omitempty"`
	WishKind     string      `json:"wish_kind,omitempty"`
	Action       string      `json:"action,omitempty"`
	Position     int         `json:"position,omitempty"`
	TotalCount   int         `json:"total_count,omitempty"`
	Message      string      `json:"message,omitempty"`
	Connections  int         `json:"connections,omitempty"`
	ActiveGuests int         `json:"active_guests,omitempty"`
	ActiveLookID string      `json:"active_look_id,omitempty"`
	Look         interface{} `json:"look,omitempty"`
	Data         interface{} `json:"data,omitempty"`
}

// Config configures the agent
type Config struct {
	// URL is the websocket endpoint, e.g. wss://host/ws.
	URL string
	// Token is the guest or operator JWT; optional.
	Token string

	// MaxAttempts bounds consecutive failed connection attempts before
	// Run gives up with ErrMaxAttempts. Zero means retry forever.
	MaxAttempts int
	// BaseDelay is the first reconnect delay; it doubles per failed
	// attempt up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// HeartbeatInterval is how often an app-level heartbeat is sent.
	HeartbeatInterval time.Duration

	// OnState is invoked on every state transition.
	OnState func(State)
	// OnEvent is invoked for every message received from the hub.
	OnEvent func(Message)
	// Resync is invoked after every successful connection, initial or
	// reconnect. The application should re-fetch authoritative state
	// here rather than assume missed events will be replayed.
	Resync func(ctx context.Context) error
}

// Agent maintains a hub connection with automatic reconnection
type Agent struct {
	cfg    Config
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	state   State
}

// New creates a new agent. Zero durations fall back to defaults.
func New(cfg Config) *Agent {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 25 * time.Second
	}
	return &Agent{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		state:  StateDisconnected,
	}
}

// State returns the agent's current connection state
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	changed := a.state != s
	a.state = s
	a.mu.Unlock()
	if changed && a.cfg.OnState != nil {
		a.cfg.OnState(s)
	}
}

// Run connects to the hub and blocks, reconnecting on loss, until the
// context is cancelled or the reconnect budget runs out.
func (a *Agent) Run(ctx context.Context) error {
	attempts := 0
	for {
		conn, err := a.dial(ctx)
		if err != nil {
			attempts++
			if a.cfg.MaxAttempts > 0 && attempts >= a.cfg.MaxAttempts {
				a.setState(StateDisconnected)
				return fmt.Errorf("%w after %d attempts: %v", ErrMaxAttempts, attempts, err)
			}
			a.setState(StateReconnecting)
			select {
			case <-ctx.Done():
				a.setState(StateDisconnected)
				return ctx.Err()
			case <-time.After(a.backoff(attempts)):
			}
			continue
		}

		// Fresh connection: reset the backoff and let the application
		// reconcile against server-authoritative state.
		attempts = 0
		a.setConn(conn)
		a.setState(StateConnected)
		if a.cfg.Resync != nil {
			if err := a.cfg.Resync(ctx); err != nil {
				log.Error().Err(err).Msg("State resync failed")
			}
		}

		a.readLoop(ctx, conn)
		a.setConn(nil)

		if ctx.Err() != nil {
			a.setState(StateDisconnected)
			return ctx.Err()
		}
		a.setState(StateReconnecting)
	}
}

func (a *Agent) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint := a.cfg.URL
	if a.cfg.Token != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid hub url: %w", err)
		}
		q := u.Query()
		q.Set("token", a.cfg.Token)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	conn, resp, err := a.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return conn, nil
}

func (a *Agent) backoff(attempts int) time.Duration {
	delay := a.cfg.BaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= a.cfg.MaxDelay {
			return a.cfg.MaxDelay
		}
	}
	if delay > a.cfg.MaxDelay {
		delay = a.cfg.MaxDelay
	}
	return delay
}

func (a *Agent) setConn(conn *websocket.Conn) {
	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
}

// readLoop consumes messages until the connection drops or the context is
// cancelled. It also runs the heartbeat ticker for the connection's
// lifetime.
func (a *Agent) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go a.heartbeatLoop(done)

	// ReadMessage does not observe the context on its own; closing the
	// connection is what unblocks it when the caller shuts down.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Hub connection lost")
			}
			conn.Close()
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Error().Err(err).Msg("Failed to parse hub message")
			continue
		}
		if msg.Type == "heartbeat_ack" {
			continue
		}
		if a.cfg.OnEvent != nil {
			a.cfg.OnEvent(msg)
		}
	}
}

func (a *Agent) heartbeatLoop(done <-chan struct{}) {
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := a.Send(Message{Type: "heartbeat"}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Send delivers a message to the hub over the current connection
func (a *Agent) Send(msg Message) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Join announces the guest identity to the hub
func (a *Agent) Join(guestID string) error {
	return a.Send(Message{Type: "join", GuestID: guestID})
}

// Leave clears the guest association
func (a *Agent) Leave(guestID string) error {
	return a.Send(Message{Type: "leave", GuestID: guestID})
}

// RequestStats asks the hub for a stats snapshot, delivered via OnEvent
func (a *Agent) RequestStats() error {
	return a.Send(Message{Type: "stats_request"})
}
