package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"runway-live-backend/internal/repository"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// statusForError maps repository sentinel errors to HTTP statuses.
// Anything unmapped is an infrastructure failure and surfaces as 500
// with a generic message so callers know to retry later.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrAlreadyQueued):
		return http.StatusConflict, "You are already in the queue for this item"
	case errors.Is(err, repository.ErrEmptyLook):
		return http.StatusUnprocessableEntity, "This look has no products to wish"
	case errors.Is(err, repository.ErrLookNotFound):
		return http.StatusNotFound, "Look not found"
	case errors.Is(err, repository.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, repository.ErrGuestNotFound):
		return http.StatusNotFound, "Guest not found"
	case errors.Is(err, repository.ErrWishNotFound):
		return http.StatusNotFound, "Wish not found"
	case errors.Is(err, repository.ErrEmailTaken):
		return http.StatusConflict, "This email is already registered"
	default:
		return http.StatusInternalServerError, "Something went wrong, please try again"
	}
}
