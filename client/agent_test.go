package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hubStub is a minimal server standing in for the real hub: it upgrades,
// optionally drops the first connection, and records received frames.
type hubStub struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []Message

	dropFirst bool
	dropped   atomic.Bool
}

func newHubStub(t *testing.T) *hubStub {
	t.Helper()
	s := &hubStub{}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *hubStub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	first := len(s.conns) == 1
	s.mu.Unlock()

	if s.dropFirst && first && s.dropped.CompareAndSwap(false, true) {
		conn.Close()
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if json.Unmarshal(data, &msg) == nil {
			s.mu.Lock()
			s.received = append(s.received, msg)
			s.mu.Unlock()
		}
	}
}

func (s *hubStub) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *hubStub) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *hubStub) sendToLatest(t *testing.T, msg Message) {
	t.Helper()
	s.mu.Lock()
	conn := s.conns[len(s.conns)-1]
	s.mu.Unlock()
	require.NoError(t, conn.WriteJSON(msg))
}

func (s *hubStub) receivedTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var types []string
	for _, m := range s.received {
		types = append(types, m.Type)
	}
	return types
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestAgent_ConnectsAndResyncs(t *testing.T) {
	stub := newHubStub(t)

	var resyncs atomic.Int32
	events := make(chan Message, 8)
	agent := New(Config{
		URL:       stub.url(),
		BaseDelay: 10 * time.Millisecond,
		OnEvent:   func(m Message) { events <- m },
		Resync: func(context.Context) error {
			resyncs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- agent.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return agent.State() == StateConnected })
	assert.Equal(t, int32(1), resyncs.Load())

	stub.sendToLatest(t, Message{Type: "announcement", Message: "doors open"})
	select {
	case msg := <-events:
		assert.Equal(t, "announcement", msg.Type)
		assert.Equal(t, "doors open", msg.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	require.ErrorIs(t, <-runErr, context.Canceled)
	assert.Equal(t, StateDisconnected, agent.State())
}

func TestAgent_CancelUnblocksConnectedRun(t *testing.T) {
	stub := newHubStub(t)

	agent := New(Config{URL: stub.url(), BaseDelay: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- agent.Run(ctx) }()

	// The connection is idle: the server sends nothing, so Run is parked
	// in a blocking read. Cancellation alone must still bring it down.
	waitFor(t, 2*time.Second, func() bool { return agent.State() == StateConnected })
	cancel()

	select {
	case err := <-runErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, StateDisconnected, agent.State())
}

func TestAgent_ReconnectsAfterDrop(t *testing.T) {
	stub := newHubStub(t)
	stub.dropFirst = true

	var resyncs atomic.Int32
	var stateMu sync.Mutex
	var states []State
	agent := New(Config{
		URL:       stub.url(),
		BaseDelay: 10 * time.Millisecond,
		MaxDelay:  50 * time.Millisecond,
		OnState: func(s State) {
			stateMu.Lock()
			states = append(states, s)
			stateMu.Unlock()
		},
		Resync: func(context.Context) error {
			resyncs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agent.Run(ctx)

	// Two distinct connections: the dropped one and its replacement,
	// each triggering a resync since the hub never replays events.
	waitFor(t, 2*time.Second, func() bool { return stub.connCount() >= 2 })
	waitFor(t, 2*time.Second, func() bool { return resyncs.Load() >= 2 })
	waitFor(t, 2*time.Second, func() bool { return agent.State() == StateConnected })

	stateMu.Lock()
	defer stateMu.Unlock()
	assert.Contains(t, states, StateReconnecting)
	assert.Equal(t, StateConnected, states[len(states)-1])
}

func TestAgent_MaxAttemptsExhausted(t *testing.T) {
	agent := New(Config{
		URL:         "ws://127.0.0.1:1/ws",
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
	})

	err := agent.Run(context.Background())
	require.ErrorIs(t, err, ErrMaxAttempts)
	assert.Equal(t, StateDisconnected, agent.State())
}

func TestAgent_SendsHeartbeats(t *testing.T) {
	stub := newHubStub(t)

	agent := New(Config{
		URL:               stub.url(),
		BaseDelay:         10 * time.Millisecond,
		HeartbeatInterval: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agent.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		for _, typ := range stub.receivedTypes() {
			if typ == "heartbeat" {
				return true
			}
		}
		return false
	})
}

func TestAgent_SendWhileDisconnected(t *testing.T) {
	agent := New(Config{URL: "ws://127.0.0.1:1/ws"})

	err := agent.Join("guest-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestAgent_JoinAndStatsFrames(t *testing.T) {
	stub := newHubStub(t)

	agent := New(Config{URL: stub.url(), BaseDelay: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agent.Run(ctx)

	waitFor(t, 2*time.Second, func() bool { return agent.State() == StateConnected })

	require.NoError(t, agent.Join("guest-1"))
	require.NoError(t, agent.RequestStats())
	require.NoError(t, agent.Leave("guest-1"))

	waitFor(t, 2*time.Second, func() bool { return len(stub.receivedTypes()) >= 3 })
	types := stub.receivedTypes()
	assert.Equal(t, []string{"join", "stats_request", "leave"}, types[:3])

	stub.mu.Lock()
	assert.Equal(t, "guest-1", stub.received[0].GuestID)
	stub.mu.Unlock()
}
