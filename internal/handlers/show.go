package handlers

import (
	"encoding/json"
	"net/http"

	"runway-live-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ShowHandler handles look and catalog HTTP requests
type ShowHandler struct {
	showService  *services.ShowService
	guestService *services.GuestService
	hub          *services.Hub
}

// NewShowHandler creates a new show handler
func NewShowHandler(showService *services.ShowService, guestService *services.GuestService, hub *services.Hub) *ShowHandler {
	return &ShowHandler{
		showService:  showService,
		guestService: guestService,
		hub:          hub,
	}
}

// GetActiveLook handles GET /api/v1/looks/active. Responds with the active
// look, or a null body when no look is active.
func (h *ShowHandler) GetActiveLook(w http.ResponseWriter, r *http.Request) {
	look, err := h.showService.ActiveLook(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get active look")
		status, msg := statusForError(err)
		respondError(w, msg, status)
		return
	}
	respondJSON(w, http.StatusOK, look)
}

// ActivateLook handles PUT /api/v1/looks/{look_id}/activate
func (h *ShowHandler) ActivateLook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lookID := chi.URLParam(r, "look_id")

	look, err := h.showService.Activate(ctx, lookID)
	if err != nil {
		log.Error().Err(err).Str("look_id", lookID).Msg("Failed to activate look")
		status, msg := statusForError(err)
		respondError(w, msg, status)
		return
	}

	// Persisted; fan out the change to every session.
	h.hub.Broadcast(services.WSMessage{
		Type: services.EventLookChanged,
		Look: look,
	})

	respondJSON(w, http.StatusOK, look)
}

// ListLooks handles GET /api/v1/looks
func (h *ShowHandler) ListLooks(w http.ResponseWriter, r *http.Request) {
	looks, err := h.showService.Looks(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list looks")
		status, msg := statusForError(err)
		respondError(w, msg, status)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"looks": looks})
}

// GetLook handles GET /api/v1/looks/{look_id}
func (h *ShowHandler) GetLook(w http.ResponseWriter, r *http.Request) {
	lookID := chi.URLParam(r, "look_id")

	look, products, err := h.showService.LookDetail(r.Context(), lookID)
	if err != nil {
		log.Error().Err(err).Str("look_id", lookID).Msg("Failed to get look")
		status, msg := statusForError(err)
		respondError(w, msg, status)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"look":     look,
		"products": products,
	})
}

// OperatorLoginRequest represents the operator login request body
type OperatorLoginRequest struct {
	Password string `json:"password"`
}

// OperatorLogin handles POST /api/v1/operator/login
func (h *ShowHandler) OperatorLogin(w http.ResponseWriter, r *http.Request) {
	var req OperatorLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.guestService.OperatorLogin(req.Password)
	if err != nil {
		log.Warn().Msg("Rejected operator login")
		respondError(w, "Invalid operator password", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}
