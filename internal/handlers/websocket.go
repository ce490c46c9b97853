package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"runway-live-backend/internal/config"
	"runway-live-backend/internal/models"
	"runway-live-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub             *services.Hub
	guestService    *services.GuestService
	showService     *services.ShowService
	wishlistService *services.WishlistService
	cfg             config.RealtimeConfig
	upgrader        websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.Hub,
	guestService *services.GuestService,
	showService *services.ShowService,
	wishlistService *services.WishlistService,
	cfg config.RealtimeConfig,
) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:             hub,
		guestService:    guestService,
		showService:     showService,
		wishlistService: wishlistService,
		cfg:             cfg,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
	return h
}

// checkOrigin allows any origin in development and only the configured
// origins in production.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.cfg.Environment != "production" {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// connState is the per-connection identity derived from the token, if any
type connState struct {
	connID  string
	subject string
	role    string
}

// HandleWebSocket handles GET /ws. A token is optional: anonymous
// connections receive broadcasts; a guest token is needed to join, wish
// and be counted; an operator token unlocks activate_look and
// announcement.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	state := connState{connID: uuid.New().String()}
	if token := r.URL.Query().Get("token"); token != "" {
		subject, role, err := h.guestService.ValidateJWT(token)
		if err != nil {
			respondError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		state.subject = subject
		state.role = role
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	if err := h.hub.Register(state.connID, conn); err != nil {
		log.Error().Err(err).Str("conn_id", state.connID).Msg("Failed to register WebSocket connection")
		conn.Close()
		return
	}
	defer h.hub.Unregister(state.connID)

	log.Info().Str("conn_id", state.connID).Str("role", state.role).Msg("WebSocket connection established")

	// Absent heartbeats beyond the timeout tear the connection down; the
	// read deadline is refreshed by pong frames and app-level heartbeats.
	conn.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatTimeout))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go h.pingLoop(state.connID, pingDone)

	ctx := context.Background()
	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("conn_id", state.connID).Msg("WebSocket error")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatTimeout))

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("conn_id", state.connID).Msg("Failed to parse WebSocket message")
			h.sendError(state.connID, "Invalid message format")
			continue
		}

		if err := h.handleMessage(ctx, state, msg); err != nil {
			log.Error().Err(err).Str("conn_id", state.connID).Str("type", msg.Type).Msg("Failed to handle message")
			h.sendError(state.connID, err.Error())
		}
	}
}

// pingLoop sends transport pings until the connection goes away
func (h *WebSocketHandler) pingLoop(connID string, done <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := h.hub.Ping(connID); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, state connState, msg services.WSMessage) error {
	switch msg.Type {
	case services.EventHeartbeat:
		return h.hub.SendTo(state.connID, services.WSMessage{Type: services.EventHeartbeatAck})
	case services.EventJoin:
		return h.handleJoin(state, msg)
	case services.EventLeave:
		h.hub.Leave(state.connID)
		return nil
	case services.EventStatsRequest:
		return h.hub.SendStats(ctx, state.connID)
	case services.EventWishAdd:
		return h.handleWishAdd(ctx, state, msg)
	case services.EventWishRemove:
		return h.handleWishRemove(ctx, state, msg)
	case services.EventActivateLook:
		return h.handleActivateLook(ctx, state, msg)
	case services.EventAnnouncement:
		return h.handleAnnouncement(state, msg)
	default:
		h.sendError(state.connID, "Unknown message type")
		return nil
	}
}

func (h *WebSocketHandler) handleJoin(state connState, msg services.WSMessage) error {
	guestID := msg.GuestID
	if guestID == "" {
		guestID = state.subject
	}
	if guestID == "" {
		h.sendError(state.connID, "guest_id is required to join")
		return nil
	}
	if state.role == services.RoleGuest && state.subject != guestID {
		h.sendError(state.connID, "Cannot join as another guest")
		return nil
	}
	return h.hub.Join(state.connID, guestID)
}

// wishIdentity resolves which guest a socket wish applies to
func (h *WebSocketHandler) wishIdentity(state connState, msg services.WSMessage) (string, bool) {
	guestID := msg.GuestID
	if guestID == "" {
		guestID = state.subject
	}
	if guestID == "" {
		h.sendError(state.connID, "guest_id is required")
		return "", false
	}
	if state.role == services.RoleGuest && state.subject != guestID {
		h.sendError(state.connID, "Cannot wish for another guest")
		return "", false
	}
	return guestID, true
}

func wishTarget(msg services.WSMessage) (string, models.WishKind, bool) {
	kind := models.WishKind(msg.WishKind)
	switch kind {
	case models.WishIndividual:
		return msg.ProductID, kind, msg.ProductID != ""
	case models.WishFullLook:
		return msg.LookID, kind, msg.LookID != ""
	default:
		return "", kind, false
	}
}

func (h *WebSocketHandler) handleWishAdd(ctx context.Context, state connState, msg services.WSMessage) error {
	guestID, ok := h.wishIdentity(state, msg)
	if !ok {
		return nil
	}
	targetID, kind, ok := wishTarget(msg)
	if !ok {
		h.sendError(state.connID, "wish_kind must be individual (with product_id) or full_look (with look_id)")
		return nil
	}

	result, err := h.wishlistService.AddWish(ctx, guestID, targetID, kind)
	if err != nil {
		_, friendly := statusForError(err)
		h.sendError(state.connID, friendly)
		return nil
	}

	h.hub.Broadcast(services.WSMessage{
		Type:       services.EventWishlistUpdated,
		Action:     services.EventWishAdd,
		GuestID:    guestID,
		ProductID:  msg.ProductID,
		LookID:     msg.LookID,
		WishKind:   string(kind),
		Position:   result.Position,
		TotalCount: result.TotalCount,
		Timestamp:  time.Now().UnixMilli(),
	})
	return nil
}

func (h *WebSocketHandler) handleWishRemove(ctx context.Context, state connState, msg services.WSMessage) error {
	guestID, ok := h.wishIdentity(state, msg)
	if !ok {
		return nil
	}
	targetID, kind, ok := wishTarget(msg)
	if !ok {
		h.sendError(state.connID, "wish_kind must be individual (with product_id) or full_look (with look_id)")
		return nil
	}

	if err := h.wishlistService.RemoveWish(ctx, guestID, targetID, kind); err != nil {
		_, friendly := statusForError(err)
		h.sendError(state.connID, friendly)
		return nil
	}

	h.hub.Broadcast(services.WSMessage{
		Type:      services.EventWishlistUpdated,
		Action:    services.EventWishRemove,
		GuestID:   guestID,
		ProductID: msg.ProductID,
		LookID:    msg.LookID,
		WishKind:  string(kind),
		Timestamp: time.Now().UnixMilli(),
	})
	return nil
}

func (h *WebSocketHandler) handleActivateLook(ctx context.Context, state connState, msg services.WSMessage) error {
	if state.role != services.RoleOperator {
		h.sendError(state.connID, "Operator access required")
		return nil
	}
	if msg.LookID == "" {
		h.sendError(state.connID, "look_id is required")
		return nil
	}

	look, err := h.showService.Activate(ctx, msg.LookID)
	if err != nil {
		_, friendly := statusForError(err)
		h.sendError(state.connID, friendly)
		return nil
	}

	h.hub.Broadcast(services.WSMessage{
		Type: services.EventLookChanged,
		Look: look,
	})
	return nil
}

func (h *WebSocketHandler) handleAnnouncement(state connState, msg services.WSMessage) error {
	if state.role != services.RoleOperator {
		h.sendError(state.connID, "Operator access required")
		return nil
	}
	if msg.Message == "" {
		h.sendError(state.connID, "message is required")
		return nil
	}

	h.hub.Broadcast(services.WSMessage{
		Type:      services.EventAnnouncement,
		Message:   msg.Message,
		Timestamp: time.Now().UnixMilli(),
	})
	return nil
}

// sendError sends an error frame to one connection
func (h *WebSocketHandler) sendError(connID, message string) {
	if err := h.hub.SendTo(connID, services.WSMessage{
		Type:    services.EventError,
		Message: message,
	}); err != nil {
		log.Error().Err(err).Str("conn_id", connID).Msg("Failed to send error frame")
	}
}
