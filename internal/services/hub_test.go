package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runway-live-backend/internal/models"
)

// hubFixture exposes a hub behind a real websocket server. Each accepted
// connection is registered with the hub and its connection id is pushed on
// ids so the test can drive Join/Leave/SendTo directly.
type hubFixture struct {
	hub    *Hub
	server *httptest.Server
	ids    chan string
}

func newHubFixture(t *testing.T, activeLookID string) *hubFixture {
	t.Helper()

	var looks []*models.Look
	if activeLookID != "" {
		looks = append(looks, &models.Look{ID: activeLookID, Sequence: 1, Name: "Finale", Active: true})
	}
	hub := NewHub(NewShowService(newFakeLooks(looks...), nil))

	f := &hubFixture{
		hub: hub,
		ids: make(chan string, 16),
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		connID := uuid.New().String()
		require.NoError(t, hub.Register(connID, conn))
		f.ids <- connID
	}))
	t.Cleanup(f.server.Close)
	return f
}

// dial connects a client and returns the connection and its hub-side id
func (f *hubFixture) dial(t *testing.T) (*websocket.Conn, string) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	select {
	case id := <-f.ids:
		return conn, id
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
		return nil, ""
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func expectNoMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var msg WSMessage
	err := conn.ReadJSON(&msg)
	assert.Error(t, err, "expected no message, got %+v", msg)
}

func TestHub_BroadcastReachesAllSessions(t *testing.T) {
	f := newHubFixture(t, "")

	connA, _ := f.dial(t)
	connB, _ := f.dial(t)
	connC, _ := f.dial(t)

	f.hub.Broadcast(WSMessage{Type: EventAnnouncement, Message: "doors closing"})

	for _, conn := range []*websocket.Conn{connA, connB, connC} {
		msg := readMessage(t, conn)
		assert.Equal(t, EventAnnouncement, msg.Type)
		assert.Equal(t, "doors closing", msg.Message)
		assert.NotZero(t, msg.Timestamp, "broadcasts are timestamped")
	}
}

func TestHub_JoinNotifiesGuestCount(t *testing.T) {
	f := newHubFixture(t, "look-9")

	_, idA := f.dial(t)
	connB, _ := f.dial(t)

	require.NoError(t, f.hub.Join(idA, "guest-1"))

	msg := readMessage(t, connB)
	assert.Equal(t, EventStatsUpdated, msg.Type)
	assert.Equal(t, 2, msg.Connections)
	assert.Equal(t, 1, msg.ActiveGuests)
	assert.Equal(t, "look-9", msg.ActiveLookID)
}

func TestHub_GuestCountIsDistinctGuests(t *testing.T) {
	f := newHubFixture(t, "")

	_, idA := f.dial(t)
	_, idB := f.dial(t)

	// Two sessions joined under one guest still count as one guest.
	require.NoError(t, f.hub.Join(idA, "guest-1"))
	require.NoError(t, f.hub.Join(idB, "guest-1"))

	connections, activeGuests := f.hub.Stats()
	assert.Equal(t, 2, connections)
	assert.Equal(t, 1, activeGuests)
}

func TestHub_EmitToGuestTargetsOnlyThatGuest(t *testing.T) {
	f := newHubFixture(t, "")

	connA, idA := f.dial(t)
	connB, idB := f.dial(t)

	require.NoError(t, f.hub.Join(idA, "guest-1"))
	require.NoError(t, f.hub.Join(idB, "guest-2"))

	// Drain the two join stats broadcasts.
	readMessage(t, connA)
	readMessage(t, connA)
	readMessage(t, connB)
	readMessage(t, connB)

	f.hub.EmitToGuest("guest-1", WSMessage{Type: EventHeartbeatAck})

	msg := readMessage(t, connA)
	assert.Equal(t, EventHeartbeatAck, msg.Type)
	expectNoMessage(t, connB)
}

func TestHub_UnregisterEmitsLeaveNotification(t *testing.T) {
	f := newHubFixture(t, "")

	_, idA := f.dial(t)
	connB, _ := f.dial(t)

	require.NoError(t, f.hub.Join(idA, "guest-1"))
	readMessage(t, connB) // join stats

	f.hub.Unregister(idA)

	msg := readMessage(t, connB)
	assert.Equal(t, EventStatsUpdated, msg.Type)
	assert.Equal(t, 1, msg.Connections)
	assert.Equal(t, 0, msg.ActiveGuests)
}

func TestHub_SendStatsRepliesToRequesterOnly(t *testing.T) {
	f := newHubFixture(t, "")

	connA, idA := f.dial(t)
	connB, _ := f.dial(t)

	require.NoError(t, f.hub.SendStats(context.Background(), idA))

	msg := readMessage(t, connA)
	assert.Equal(t, EventStatsUpdated, msg.Type)
	assert.Equal(t, 2, msg.Connections)
	expectNoMessage(t, connB)
}

func TestHub_PeriodicStatsSnapshot(t *testing.T) {
	f := newHubFixture(t, "")
	go f.hub.Run(50 * time.Millisecond)

	conn, _ := f.dial(t)

	msg := readMessage(t, conn)
	assert.Equal(t, EventStatsUpdated, msg.Type)
	assert.Equal(t, 1, msg.Connections)
}

func TestHub_ShutdownClosesSessionsAndRejectsNew(t *testing.T) {
	f := newHubFixture(t, "")

	conn, _ := f.dial(t)
	f.hub.Shutdown()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "session is closed on shutdown")

	err = f.hub.Register(uuid.New().String(), nil)
	assert.Error(t, err, "no registrations after shutdown")

	// Broadcasting after shutdown is a no-op, not a panic.
	f.hub.Broadcast(WSMessage{Type: EventAnnouncement, Message: "too late"})
}
