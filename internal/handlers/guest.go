package handlers

import (
	"encoding/json"
	"net/http"

	"runway-live-backend/internal/middleware"
	"runway-live-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// GuestHandler handles guest-related HTTP requests
type GuestHandler struct {
	guestService    *services.GuestService
	wishlistService *services.WishlistService
}

// NewGuestHandler creates a new guest handler
func NewGuestHandler(guestService *services.GuestService, wishlistService *services.WishlistService) *GuestHandler {
	return &GuestHandler{
		guestService:    guestService,
		wishlistService: wishlistService,
	}
}

// RegisterRequest represents the request body for guest registration
type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RegisterResponse carries the created guest and their access token
type RegisterResponse struct {
	Guest interface{} `json:"guest"`
	Token string      `json:"token"`
}

// Register handles POST /api/v1/guests
func (h *GuestHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	guest, token, err := h.guestService.Register(ctx, req.Name, req.Email)
	if err != nil {
		log.Error().Err(err).Str("email", req.Email).Msg("Failed to register guest")
		status, msg := statusForError(err)
		switch err.Error() {
		case "name is required", "a valid email is required":
			status, msg = http.StatusBadRequest, err.Error()
		}
		respondError(w, msg, status)
		return
	}

	log.Info().Str("guest_id", guest.ID).Msg("Guest registered")
	respondJSON(w, http.StatusCreated, RegisterResponse{Guest: guest, Token: token})
}

// CheckInRequest represents the request body for guest check-in
type CheckInRequest struct {
	DeviceID *string `json:"device_id,omitempty"`
}

// CheckIn handles POST /api/v1/guests/{guest_id}/checkin
func (h *GuestHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guestID := chi.URLParam(r, "guest_id")

	var req CheckInRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	guest, err := h.guestService.CheckIn(ctx, guestID, req.DeviceID)
	if err != nil {
		log.Error().Err(err).Str("guest_id", guestID).Msg("Failed to check in guest")
		status, msg := statusForError(err)
		respondError(w, msg, status)
		return
	}

	log.Info().Str("guest_id", guestID).Msg("Guest checked in")
	respondJSON(w, http.StatusOK, guest)
}

// Wishlist handles GET /api/v1/guests/{guest_id}/wishes. It returns the
// guest's authoritative wishlist state; reconnecting clients use it to
// resynchronize instead of replaying missed events.
func (h *GuestHandler) Wishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guestID := chi.URLParam(r, "guest_id")

	if subject := middleware.GetSubject(ctx); subject != guestID && middleware.GetRole(ctx) != services.RoleOperator {
		respondError(w, "Cannot read another guest's wishlist", http.StatusForbidden)
		return
	}

	entries, err := h.wishlistService.GuestWishlist(ctx, guestID)
	if err != nil {
		log.Error().Err(err).Str("guest_id", guestID).Msg("Failed to load guest wishlist")
		status, msg := statusForError(err)
		respondError(w, msg, status)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
