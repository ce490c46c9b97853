package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"runway-live-backend/internal/models"
	"runway-live-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WishlistStore is the persistence surface the assigner needs. Insert must
// be atomic: the position computation and the write commit together or not
// at all, and a duplicate (guest, target, kind) must fail with
// repository.ErrAlreadyQueued without mutating anything.
type WishlistStore interface {
	Insert(ctx context.Context, entry *models.WishlistEntry) (int, error)
	Exists(ctx context.Context, guestID, targetID string, kind models.WishKind) (bool, error)
	Remove(ctx context.Context, guestID, targetID string, kind models.WishKind) error
	ListByGuest(ctx context.Context, guestID string) ([]*models.WishlistEntry, error)
	CountForTarget(ctx context.Context, targetID string, kind models.WishKind) (int, error)
}

// GuestDirectory resolves guest existence for precondition checks
type GuestDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// ProductCatalog resolves product existence for precondition checks
type ProductCatalog interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// LookCatalog is the look persistence surface shared by the wishlist and
// show services. Activate must atomically deactivate the current look and
// activate the target so no observer ever sees two active looks.
type LookCatalog interface {
	GetByID(ctx context.Context, id string) (*models.Look, error)
	List(ctx context.Context) ([]*models.Look, error)
	GetActive(ctx context.Context) (*models.Look, error)
	Activate(ctx context.Context, id string) (*models.Look, error)
	ProductsForLook(ctx context.Context, id string) ([]*models.Product, error)
}

// WishResult is the outcome of a wish assignment
type WishResult struct {
	Position   int             `json:"position"`
	TotalCount int             `json:"total_count"`
	WishKind   models.WishKind `json:"wish_kind"`
}

// WishlistService assigns race-free queue positions for guest wishes
type WishlistService struct {
	wishes   WishlistStore
	guests   GuestDirectory
	products ProductCatalog
	looks    LookCatalog
}

// NewWishlistService creates a new wishlist service
func NewWishlistService(wishes WishlistStore, guests GuestDirectory, products ProductCatalog, looks LookCatalog) *WishlistService {
	return &WishlistService{
		wishes:   wishes,
		guests:   guests,
		products: products,
		looks:    looks,
	}
}

// AddWish assigns the guest the next queue position for the target. For a
// full-look wish the look-level entry is assigned first, then one
// part_of_look entry per constituent product, each against that product's
// own counter. The sub-assignments are individually atomic but not atomic
// as a set; a retry after partial completion skips the entries that
// already exist.
func (s *WishlistService) AddWish(ctx context.Context, guestID, targetID string, kind models.WishKind) (*WishResult, error) {
	exists, err := s.guests.Exists(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guest: %w", err)
	}
	if !exists {
		return nil, repository.ErrGuestNotFound
	}

	switch kind {
	case models.WishIndividual:
		return s.addProductWish(ctx, guestID, targetID)
	case models.WishFullLook:
		return s.addFullLookWish(ctx, guestID, targetID)
	default:
		return nil, fmt.Errorf("wish kind %q cannot be requested directly", kind)
	}
}

func (s *WishlistService) addProductWish(ctx context.Context, guestID, productID string) (*WishResult, error) {
	exists, err := s.products.Exists(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve product: %w", err)
	}
	if !exists {
		return nil, repository.ErrProductNotFound
	}

	position, err := s.insert(ctx, guestID, productID, models.WishIndividual)
	if err != nil {
		return nil, err
	}
	return &WishResult{Position: position, TotalCount: position, WishKind: models.WishIndividual}, nil
}

func (s *WishlistService) addFullLookWish(ctx context.Context, guestID, lookID string) (*WishResult, error) {
	if _, err := s.looks.GetByID(ctx, lookID); err != nil {
		return nil, err
	}
	products, err := s.looks.ProductsForLook(ctx, lookID)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, repository.ErrEmptyLook
	}

	position, err := s.insert(ctx, guestID, lookID, models.WishFullLook)
	if err != nil {
		return nil, err
	}

	// Derivative per-product entries. Ones that already exist are left
	// alone so a retry after a partial failure completes the remainder.
	for _, p := range products {
		if _, err := s.insert(ctx, guestID, p.ID, models.WishPartOfLook); err != nil {
			if errors.Is(err, repository.ErrAlreadyQueued) {
				continue
			}
			return nil, fmt.Errorf("failed to queue look product %s: %w", p.ID, err)
		}
	}

	log.Info().
		Str("guest_id", guestID).
		Str("look_id", lookID).
		Int("position", position).
		Int("products", len(products)).
		Msg("Full look wished")

	return &WishResult{Position: position, TotalCount: position, WishKind: models.WishFullLook}, nil
}

func (s *WishlistService) insert(ctx context.Context, guestID, targetID string, kind models.WishKind) (int, error) {
	entry := &models.WishlistEntry{
		ID:        uuid.New().String(),
		GuestID:   guestID,
		TargetID:  targetID,
		WishKind:  kind,
		CreatedAt: time.Now().UTC(),
	}
	return s.wishes.Insert(ctx, entry)
}

// RemoveWish deletes a guest's wish and compacts the queue behind it. For
// a full-look wish the derivative part_of_look entries are removed too;
// ones already gone are skipped.
func (s *WishlistService) RemoveWish(ctx context.Context, guestID, targetID string, kind models.WishKind) error {
	switch kind {
	case models.WishIndividual:
		return s.wishes.Remove(ctx, guestID, targetID, models.WishIndividual)
	case models.WishFullLook:
		if err := s.wishes.Remove(ctx, guestID, targetID, models.WishFullLook); err != nil {
			return err
		}
		products, err := s.looks.ProductsForLook(ctx, targetID)
		if err != nil {
			return err
		}
		for _, p := range products {
			if err := s.wishes.Remove(ctx, guestID, p.ID, models.WishPartOfLook); err != nil {
				if errors.Is(err, repository.ErrWishNotFound) {
					continue
				}
				return fmt.Errorf("failed to remove look product %s: %w", p.ID, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("wish kind %q cannot be removed directly", kind)
	}
}

// GuestWishlist returns all entries held by a guest, oldest first
func (s *WishlistService) GuestWishlist(ctx context.Context, guestID string) ([]*models.WishlistEntry, error) {
	exists, err := s.guests.Exists(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guest: %w", err)
	}
	if !exists {
		return nil, repository.ErrGuestNotFound
	}
	return s.wishes.ListByGuest(ctx, guestID)
}

// QueueLength returns the current number of entries for a (target, kind) queue
func (s *WishlistService) QueueLength(ctx context.Context, targetID string, kind models.WishKind) (int, error) {
	return s.wishes.CountForTarget(ctx, targetID, kind)
}
