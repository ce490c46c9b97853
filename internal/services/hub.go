package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"runway-live-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event names carried in the Type field of a WSMessage.
const (
	EventJoin            = "join"
	EventLeave           = "leave"
	EventActivateLook    = "activate_look"
	EventLookChanged     = "look_changed"
	EventWishAdd         = "wish_add"
	EventWishRemove      = "wish_remove"
	EventWishlistUpdated = "wishlist_updated"
	EventAnnouncement    = "announcement"
	EventStatsRequest    = "stats_request"
	EventStatsUpdated    = "stats_updated"
	EventHeartbeat       = "heartbeat"
	EventHeartbeatAck    = "heartbeat_ack"
	EventError           = "error"
)

// WSMessage is the wire envelope for every socket event, client to hub and
// hub to client. Unused fields are omitted per event type.
type WSMessage struct {
	Type         string       `json:"type"`
	Timestamp    int64        `json:"timestamp,omitempty"`
	GuestID      string       `json:"guest_id,omitempty"`
	LookID       string       `json:"look_id,omitempty"`
	ProductID    string       `json:"product_id,omitempty"`
	WishKind     string       `json:"wish_kind,omitempty"`
	Action       string       `json:"action,omitempty"`
	Position     int          `json:"position,omitempty"`
	TotalCount   int          `json:"total_count,omitempty"`
	Message      string       `json:"message,omitempty"`
	Connections  int          `json:"connections,omitempty"`
	ActiveGuests int          `json:"active_guests,omitempty"`
	ActiveLookID string       `json:"active_look_id,omitempty"`
	Look         *models.Look `json:"look,omitempty"`
	Data         interface{}  `json:"data,omitempty"`
}

// session is one live connection. It exists only while the socket is
// connected and is owned exclusively by the hub.
type session struct {
	id       string
	conn     *websocket.Conn
	guestID  string
	joinedAt time.Time

	// writeMu serializes frame writes; gorilla connections allow only
	// one concurrent writer.
	writeMu sync.Mutex
}

func (s *session) send(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// Hub tracks connected sessions and fans out state-change events. All
// registry state is owned by the hub and guarded by its mutex; nothing
// outside the hub ever touches a session. Delivery is best-effort with no
// confirmation, retry, or cross-broadcast ordering guarantee.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session            // connection id -> session
	byGuest  map[string]map[string]*session // guest id -> connection id -> session
	closed   bool

	shows *ShowService
	done  chan struct{}
}

// NewHub creates a new realtime hub
func NewHub(shows *ShowService) *Hub {
	return &Hub{
		sessions: make(map[string]*session),
		byGuest:  make(map[string]map[string]*session),
		shows:    shows,
		done:     make(chan struct{}),
	}
}

// Register adds a new connection to the registry. It fails once the hub
// has begun shutting down.
func (h *Hub) Register(connID string, conn *websocket.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("hub is shut down")
	}
	h.sessions[connID] = &session{
		id:       connID,
		conn:     conn,
		joinedAt: time.Now(),
	}

	log.Info().Str("conn_id", connID).Int("connections", len(h.sessions)).Msg("Connection registered")
	return nil
}

// Unregister removes a connection from the registry and closes it. If the
// connection held a guest association, the remaining connections are
// notified of the updated guest count, same as an explicit leave.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	sess, exists := h.sessions[connID]
	if !exists {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, connID)
	hadGuest := sess.guestID != ""
	if hadGuest {
		h.dropGuestLocked(sess)
	}
	h.mu.Unlock()

	sess.conn.Close()
	log.Info().Str("conn_id", connID).Msg("Connection unregistered")

	if hadGuest {
		h.BroadcastStats(context.Background())
	}
}

// Join associates a connection with a guest identity and notifies the
// other connections of the updated active-guest count.
func (h *Hub) Join(connID, guestID string) error {
	h.mu.Lock()
	sess, exists := h.sessions[connID]
	if !exists {
		h.mu.Unlock()
		return fmt.Errorf("connection %s is not registered", connID)
	}
	if sess.guestID != "" {
		h.dropGuestLocked(sess)
	}
	sess.guestID = guestID
	group := h.byGuest[guestID]
	if group == nil {
		group = make(map[string]*session)
		h.byGuest[guestID] = group
	}
	group[connID] = sess
	h.mu.Unlock()

	log.Info().Str("conn_id", connID).Str("guest_id", guestID).Msg("Guest joined")
	h.BroadcastStats(context.Background())
	return nil
}

// Leave clears a connection's guest association and notifies the other
// connections of the updated count.
func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	sess, exists := h.sessions[connID]
	if !exists || sess.guestID == "" {
		h.mu.Unlock()
		return
	}
	guestID := sess.guestID
	h.dropGuestLocked(sess)
	h.mu.Unlock()

	log.Info().Str("conn_id", connID).Str("guest_id", guestID).Msg("Guest left")
	h.BroadcastStats(context.Background())
}

// dropGuestLocked removes the session from its guest group. Caller holds h.mu.
func (h *Hub) dropGuestLocked(sess *session) {
	if group, ok := h.byGuest[sess.guestID]; ok {
		delete(group, sess.id)
		if len(group) == 0 {
			delete(h.byGuest, sess.guestID)
		}
	}
	sess.guestID = ""
}

// Broadcast delivers a message to every connected session. Failed writes
// are logged and the dead connections dropped; the broadcast itself never
// fails upward since persistence has already happened by the time the
// caller gets here.
func (h *Hub) Broadcast(msg WSMessage) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	targets := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		targets = append(targets, sess)
	}
	h.mu.RUnlock()

	var dead []string
	for _, sess := range targets {
		if err := sess.send(msg); err != nil {
			log.Error().Err(err).Str("conn_id", sess.id).Str("type", msg.Type).Msg("Failed to deliver broadcast")
			dead = append(dead, sess.id)
		}
	}
	for _, id := range dead {
		h.Unregister(id)
	}
}

// EmitToGuest delivers a message only to sessions joined under the guest id
func (h *Hub) EmitToGuest(guestID string, msg WSMessage) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	group := h.byGuest[guestID]
	targets := make([]*session, 0, len(group))
	for _, sess := range group {
		targets = append(targets, sess)
	}
	h.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.send(msg); err != nil {
			log.Error().Err(err).Str("conn_id", sess.id).Str("guest_id", guestID).Msg("Failed to deliver guest message")
		}
	}
}

// SendTo delivers a message to one connection
func (h *Hub) SendTo(connID string, msg WSMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	sess, exists := h.sessions[connID]
	h.mu.RUnlock()
	if !exists {
		return fmt.Errorf("connection %s is not registered", connID)
	}
	return sess.send(msg)
}

// Ping sends a transport-level ping frame to one connection
func (h *Hub) Ping(connID string) error {
	h.mu.RLock()
	sess, exists := h.sessions[connID]
	h.mu.RUnlock()
	if !exists {
		return fmt.Errorf("connection %s is not registered", connID)
	}
	return sess.ping()
}

// Stats returns the current connection count and distinct joined-guest count
func (h *Hub) Stats() (connections, activeGuests int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions), len(h.byGuest)
}

// statsMessage builds a stats_updated message from the current registry
// and active look.
func (h *Hub) statsMessage(ctx context.Context) WSMessage {
	connections, activeGuests := h.Stats()
	return WSMessage{
		Type:         EventStatsUpdated,
		Connections:  connections,
		ActiveGuests: activeGuests,
		ActiveLookID: h.shows.ActiveLookID(ctx),
	}
}

// BroadcastStats pushes a stats_updated message to every connection
func (h *Hub) BroadcastStats(ctx context.Context) {
	h.Broadcast(h.statsMessage(ctx))
}

// SendStats replies to a stats_request with a stats_updated message to the
// requesting connection only.
func (h *Hub) SendStats(ctx context.Context, connID string) error {
	return h.SendTo(connID, h.statsMessage(ctx))
}

// Run broadcasts periodic stats snapshots until the hub is shut down
func (h *Hub) Run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.BroadcastStats(context.Background())
		case <-h.done:
			return
		}
	}
}

// Shutdown stops the stats loop, rejects further registrations and closes
// every session. No events are broadcast after this returns.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.done)
	sessions := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessions = make(map[string]*session)
	h.byGuest = make(map[string]map[string]*session)
	h.mu.Unlock()

	for _, sess := range sessions {
		sess.writeMu.Lock()
		sess.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		sess.writeMu.Unlock()
		sess.conn.Close()
	}

	log.Info().Int("sessions", len(sessions)).Msg("Hub shut down")
}
