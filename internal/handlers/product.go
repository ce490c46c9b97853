package handlers

import (
	"net/http"

	"runway-live-backend/internal/repository"
	"runway-live-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ProductHandler handles product catalog HTTP requests
type ProductHandler struct {
	products *repository.ProductRepository
	media    *services.MediaService
}

// NewProductHandler creates a new product handler
func NewProductHandler(products *repository.ProductRepository, media *services.MediaService) *ProductHandler {
	return &ProductHandler{products: products, media: media}
}

// List handles GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products")
		status, msg := statusForError(err)
		respondError(w, msg, status)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

// Get handles GET /api/v1/products/{product_id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	product, err := h.products.GetByID(r.Context(), productID)
	if err != nil {
		log.Error().Err(err).Str("product_id", productID).Msg("Failed to get product")
		status, msg := statusForError(err)
		respondError(w, msg, status)
		return
	}

	if h.media != nil {
		if err := h.media.ResolveProductImages(r.Context(), product); err != nil {
			log.Error().Err(err).Str("product_id", productID).Msg("Failed to presign product images")
		}
	}
	respondJSON(w, http.StatusOK, product)
}
