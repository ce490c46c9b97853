package services

import (
	"context"
	"sync"

	"runway-live-backend/internal/models"
	"runway-live-backend/internal/repository"
)

// fakeWishStore mirrors the repository's atomic assignment semantics in
// memory: position computation and insert commit under one lock, and a
// duplicate (guest, target, kind) fails without mutation.
type fakeWishStore struct {
	mu      sync.Mutex
	entries []*models.WishlistEntry
}

func (f *fakeWishStore) Insert(_ context.Context, entry *models.WishlistEntry) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, e := range f.entries {
		if e.GuestID == entry.GuestID && e.TargetID == entry.TargetID && e.WishKind == entry.WishKind {
			return 0, repository.ErrAlreadyQueued
		}
		if e.TargetID == entry.TargetID && e.WishKind == entry.WishKind {
			count++
		}
	}

	stored := *entry
	stored.Position = count + 1
	f.entries = append(f.entries, &stored)
	entry.Position = stored.Position
	return stored.Position, nil
}

func (f *fakeWishStore) Exists(_ context.Context, guestID, targetID string, kind models.WishKind) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.GuestID == guestID && e.TargetID == targetID && e.WishKind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWishStore) Remove(_ context.Context, guestID, targetID string, kind models.WishKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := -1
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.GuestID == guestID && e.TargetID == targetID && e.WishKind == kind {
			removed = e.Position
			continue
		}
		kept = append(kept, e)
	}
	if removed < 0 {
		return repository.ErrWishNotFound
	}
	f.entries = kept
	for _, e := range f.entries {
		if e.TargetID == targetID && e.WishKind == kind && e.Position > removed {
			e.Position--
		}
	}
	return nil
}

func (f *fakeWishStore) ListByGuest(_ context.Context, guestID string) ([]*models.WishlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.WishlistEntry
	for _, e := range f.entries {
		if e.GuestID == guestID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeWishStore) CountForTarget(_ context.Context, targetID string, kind models.WishKind) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, e := range f.entries {
		if e.TargetID == targetID && e.WishKind == kind {
			count++
		}
	}
	return count, nil
}

// positions returns the sorted-insertion-order positions for a queue
func (f *fakeWishStore) positions(targetID string, kind models.WishKind) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int
	for _, e := range f.entries {
		if e.TargetID == targetID && e.WishKind == kind {
			out = append(out, e.Position)
		}
	}
	return out
}

type fakeGuests struct {
	ids map[string]bool
}

func (f *fakeGuests) Exists(_ context.Context, id string) (bool, error) {
	return f.ids[id], nil
}

type fakeProducts struct {
	ids map[string]bool
}

func (f *fakeProducts) Exists(_ context.Context, id string) (bool, error) {
	return f.ids[id], nil
}

// fakeLooks mirrors the repository's atomic activation: deactivate-all and
// activate-target commit under one lock, and a missing target mutates
// nothing.
type fakeLooks struct {
	mu       sync.Mutex
	looks    map[string]*models.Look
	products map[string][]*models.Product
}

func newFakeLooks(looks ...*models.Look) *fakeLooks {
	f := &fakeLooks{
		looks:    make(map[string]*models.Look),
		products: make(map[string][]*models.Product),
	}
	for _, l := range looks {
		f.looks[l.ID] = l
	}
	return f
}

func (f *fakeLooks) GetByID(_ context.Context, id string) (*models.Look, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	look, ok := f.looks[id]
	if !ok {
		return nil, repository.ErrLookNotFound
	}
	copied := *look
	return &copied, nil
}

func (f *fakeLooks) List(_ context.Context) ([]*models.Look, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Look
	for _, l := range f.looks {
		copied := *l
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeLooks) GetActive(_ context.Context) (*models.Look, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.looks {
		if l.Active {
			copied := *l
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeLooks) Activate(_ context.Context, id string) (*models.Look, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.looks[id]
	if !ok {
		return nil, repository.ErrLookNotFound
	}
	for _, l := range f.looks {
		l.Active = false
	}
	target.Active = true
	copied := *target
	return &copied, nil
}

func (f *fakeLooks) ProductsForLook(_ context.Context, id string) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id], nil
}

// activeCount reports how many looks are active
func (f *fakeLooks) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, l := range f.looks {
		if l.Active {
			count++
		}
	}
	return count
}
