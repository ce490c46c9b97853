package models

import "time"

// WishKind classifies a wishlist entry.
type WishKind string

const (
	// WishIndividual is a wish for a single product.
	WishIndividual WishKind = "individual"
	// WishFullLook is a wish for an entire look.
	WishFullLook WishKind = "full_look"
	// WishPartOfLook is a derivative per-product entry created by a full-look wish.
	WishPartOfLook WishKind = "part_of_look"
)

// Valid reports whether k is one of the known wish kinds.
func (k WishKind) Valid() bool {
	switch k {
	case WishIndividual, WishFullLook, WishPartOfLook:
		return true
	}
	return false
}

// Guest represents a registered show guest
type Guest struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	DeviceID     *string    `json:"device_id,omitempty"`
	RegisteredAt time.Time  `json:"registered_at"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
}

// Look represents an ordered show segment
type Look struct {
	ID           string `json:"id"`
	Sequence     int    `json:"sequence"`
	Name         string `json:"name"`
	HeroImageKey string `json:"hero_image_key,omitempty"`
	HeroImageURL string `json:"hero_image_url,omitempty"`
	Active       bool   `json:"active"`
}

// Product represents a catalog item; it may belong to any number of looks
type Product struct {
	ID           string   `json:"id"`
	Brand        string   `json:"brand"`
	Name         string   `json:"name"`
	PriceCents   int      `json:"price_cents"`
	Size         string   `json:"size"`
	Condition    string   `json:"condition"`
	ImageKeys    []string `json:"image_keys,omitempty"`
	ImageURLs    []string `json:"image_urls,omitempty"`
	DisplayOrder int      `json:"display_order,omitempty"`
}

// WishlistEntry records one guest's interest in a product or a full look.
// TargetID is a product id for individual/part_of_look entries and a look
// id for full_look entries. Position is the guest's rank in the target's
// queue, dense 1..N per (target, kind).
type WishlistEntry struct {
	ID        string    `json:"id"`
	GuestID   string    `json:"guest_id"`
	TargetID  string    `json:"target_id"`
	WishKind  WishKind  `json:"wish_kind"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}
