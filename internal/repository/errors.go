// Package repository defines sentinel errors shared by the repositories so
// that services and handlers can distinguish failure modes with errors.Is
// instead of matching message strings. Anything not covered by a sentinel
// is an infrastructure failure and is wrapped with context.
package repository

import "errors"

// ErrAlreadyQueued is returned when a guest already holds a wishlist entry
// for the same (target, kind) pair. The existing entry is left untouched.
var ErrAlreadyQueued = errors.New("already queued")

// ErrEmptyLook is returned when a full-look wish targets a look with no
// constituent products.
var ErrEmptyLook = errors.New("look has no products")

// ErrLookNotFound is returned when a look id references no stored look.
var ErrLookNotFound = errors.New("look not found")

// ErrProductNotFound is returned when a product id references no stored product.
var ErrProductNotFound = errors.New("product not found")

// ErrGuestNotFound is returned when a guest id references no stored guest.
var ErrGuestNotFound = errors.New("guest not found")

// ErrWishNotFound is returned when removing a wish that does not exist.
var ErrWishNotFound = errors.New("wish not found")

// ErrEmailTaken is returned when registering with an email that is already in use.
var ErrEmailTaken = errors.New("email already registered")
