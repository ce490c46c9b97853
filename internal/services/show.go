package services

import (
	"context"

	"runway-live-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// ShowService drives the live show: it owns look activation and look reads.
// The single-active-look invariant lives in the LookCatalog's Activate;
// this service adds image resolution and logging around it.
type ShowService struct {
	looks LookCatalog
	media *MediaService
}

// NewShowService creates a new show service
func NewShowService(looks LookCatalog, media *MediaService) *ShowService {
	return &ShowService{looks: looks, media: media}
}

// Activate makes the target look the single active look. Whichever of two
// racing activations commits last wins outright; the loser's effect is
// fully superseded. A missing look id fails with ErrLookNotFound and
// leaves the previously active look in place.
func (s *ShowService) Activate(ctx context.Context, lookID string) (*models.Look, error) {
	look, err := s.looks.Activate(ctx, lookID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("look_id", look.ID).
		Int("sequence", look.Sequence).
		Msg("Look activated")

	s.resolveLookImage(ctx, look)
	return look, nil
}

// ActiveLook returns the currently active look, or nil when none is active
func (s *ShowService) ActiveLook(ctx context.Context) (*models.Look, error) {
	look, err := s.looks.GetActive(ctx)
	if err != nil || look == nil {
		return look, err
	}
	s.resolveLookImage(ctx, look)
	return look, nil
}

// ActiveLookID returns the id of the active look, or "" when none is active.
// Used by the hub's stats snapshots.
func (s *ShowService) ActiveLookID(ctx context.Context) string {
	look, err := s.looks.GetActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve active look for stats")
		return ""
	}
	if look == nil {
		return ""
	}
	return look.ID
}

// Looks returns all looks in show order
func (s *ShowService) Looks(ctx context.Context) ([]*models.Look, error) {
	looks, err := s.looks.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, look := range looks {
		s.resolveLookImage(ctx, look)
	}
	return looks, nil
}

// LookDetail returns a look together with its constituent products in
// display order
func (s *ShowService) LookDetail(ctx context.Context, lookID string) (*models.Look, []*models.Product, error) {
	look, err := s.looks.GetByID(ctx, lookID)
	if err != nil {
		return nil, nil, err
	}
	products, err := s.looks.ProductsForLook(ctx, lookID)
	if err != nil {
		return nil, nil, err
	}
	s.resolveLookImage(ctx, look)
	return look, products, nil
}

func (s *ShowService) resolveLookImage(ctx context.Context, look *models.Look) {
	if s.media == nil || look.HeroImageKey == "" {
		return
	}
	url, err := s.media.ImageURL(ctx, look.HeroImageKey)
	if err != nil {
		log.Error().Err(err).Str("look_id", look.ID).Msg("Failed to presign hero image")
		return
	}
	look.HeroImageURL = url
}
