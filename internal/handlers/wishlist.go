package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"runway-live-backend/internal/middleware"
	"runway-live-backend/internal/models"
	"runway-live-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// WishlistHandler handles wish-related HTTP requests
type WishlistHandler struct {
	wishlistService *services.WishlistService
	hub             *services.Hub
}

// NewWishlistHandler creates a new wishlist handler
func NewWishlistHandler(wishlistService *services.WishlistService, hub *services.Hub) *WishlistHandler {
	return &WishlistHandler{
		wishlistService: wishlistService,
		hub:             hub,
	}
}

// WishRequest represents the request body for adding or removing a wish
type WishRequest struct {
	ProductID string `json:"product_id,omitempty"`
	LookID    string `json:"look_id,omitempty"`
	WishKind  string `json:"wish_kind"`
}

// target resolves the request's target id and validates the kind/target
// combination. Individual wishes target products, full-look wishes target
// looks.
func (req *WishRequest) target() (string, models.WishKind, bool) {
	kind := models.WishKind(req.WishKind)
	switch kind {
	case models.WishIndividual:
		return req.ProductID, kind, req.ProductID != ""
	case models.WishFullLook:
		return req.LookID, kind, req.LookID != ""
	default:
		return "", kind, false
	}
}

// AddWish handles POST /api/v1/wishes
func (h *WishlistHandler) AddWish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guestID := middleware.GetSubject(ctx)

	var req WishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	targetID, kind, ok := req.target()
	if !ok {
		respondError(w, "wish_kind must be individual (with product_id) or full_look (with look_id)", http.StatusBadRequest)
		return
	}

	result, err := h.wishlistService.AddWish(ctx, guestID, targetID, kind)
	if err != nil {
		log.Error().
			Err(err).
			Str("guest_id", guestID).
			Str("target_id", targetID).
			Str("wish_kind", string(kind)).
			Msg("Failed to add wish")
		status, msg := statusForError(err)
		respondError(w, msg, status)
		return
	}

	log.Info().
		Str("guest_id", guestID).
		Str("target_id", targetID).
		Str("wish_kind", string(kind)).
		Int("position", result.Position).
		Msg("Wish added")

	// Persisted; now fan out. A broadcast failure is logged inside the
	// hub and never rolls the wish back.
	h.hub.Broadcast(services.WSMessage{
		Type:       services.EventWishlistUpdated,
		Action:     services.EventWishAdd,
		GuestID:    guestID,
		ProductID:  req.ProductID,
		LookID:     req.LookID,
		WishKind:   string(kind),
		Position:   result.Position,
		TotalCount: result.TotalCount,
		Timestamp:  time.Now().UnixMilli(),
	})

	respondJSON(w, http.StatusCreated, result)
}

// RemoveWish handles DELETE /api/v1/wishes
func (h *WishlistHandler) RemoveWish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guestID := middleware.GetSubject(ctx)

	var req WishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	targetID, kind, ok := req.target()
	if !ok {
		respondError(w, "wish_kind must be individual (with product_id) or full_look (with look_id)", http.StatusBadRequest)
		return
	}

	if err := h.wishlistService.RemoveWish(ctx, guestID, targetID, kind); err != nil {
		log.Error().
			Err(err).
			Str("guest_id", guestID).
			Str("target_id", targetID).
			Str("wish_kind", string(kind)).
			Msg("Failed to remove wish")
		status, msg := statusForError(err)
		respondError(w, msg, status)
		return
	}

	log.Info().
		Str("guest_id", guestID).
		Str("target_id", targetID).
		Str("wish_kind", string(kind)).
		Msg("Wish removed")

	h.hub.Broadcast(services.WSMessage{
		Type:      services.EventWishlistUpdated,
		Action:    services.EventWishRemove,
		GuestID:   guestID,
		ProductID: req.ProductID,
		LookID:    req.LookID,
		WishKind:  string(kind),
		Timestamp: time.Now().UnixMilli(),
	})

	w.WriteHeader(http.StatusNoContent)
}
