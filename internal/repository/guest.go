package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"runway-live-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GuestRepository handles database operations for guests
type GuestRepository struct {
	db *pgxpool.Pool
}

// NewGuestRepository creates a new guest repository
func NewGuestRepository(db *pgxpool.Pool) *GuestRepository {
	return &GuestRepository{db: db}
}

// Create creates a new guest
func (r *GuestRepository) Create(ctx context.Context, guest *models.Guest) error {
	query := `
		INSERT INTO guests (id, name, email, device_id, registered_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		guest.ID, guest.Name, guest.Email, guest.DeviceID, guest.RegisteredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create guest: %w", err)
	}
	return nil
}

// GetByID retrieves a guest by ID
func (r *GuestRepository) GetByID(ctx context.Context, id string) (*models.Guest, error) {
	query := `
		SELECT id, name, email, device_id, registered_at, checked_in_at
		FROM guests
		WHERE id = $1
	`
	var guest models.Guest
	err := r.db.QueryRow(ctx, query, id).Scan(
		&guest.ID, &guest.Name, &guest.Email, &guest.DeviceID,
		&guest.RegisteredAt, &guest.CheckedInAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGuestNotFound
		}
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}
	return &guest, nil
}

// CheckIn records the check-in timestamp and optional device identifier for
// a guest. Repeating a check-in keeps the original timestamp.
func (r *GuestRepository) CheckIn(ctx context.Context, guestID string, deviceID *string, at time.Time) (*models.Guest, error) {
	query := `
		UPDATE guests
		SET checked_in_at = COALESCE(checked_in_at, $2),
		    device_id = COALESCE($3, device_id)
		WHERE id = $1
		RETURNING id, name, email, device_id, registered_at, checked_in_at
	`
	var guest models.Guest
	err := r.db.QueryRow(ctx, query, guestID, at, deviceID).Scan(
		&guest.ID, &guest.Name, &guest.Email, &guest.DeviceID,
		&guest.RegisteredAt, &guest.CheckedInAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGuestNotFound
		}
		return nil, fmt.Errorf("failed to check in guest: %w", err)
	}
	return &guest, nil
}

// Exists checks whether a guest with the given ID exists
func (r *GuestRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM guests WHERE id = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check guest existence: %w", err)
	}
	return exists, nil
}
