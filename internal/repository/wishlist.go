package repository

import (
	"context"
	"errors"
	"fmt"

	"runway-live-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// Constraint names from scripts/schema.sql. Assignment races and
	// duplicate wishes both surface as unique violations and are told
	// apart by which constraint fired.
	constraintOnePerGuest   = "wishlist_one_per_guest"
	constraintDensePosition = "wishlist_dense_position"

	// maxAssignAttempts bounds the retry loop for position races. Each
	// retry recomputes the position, so losing a race is always
	// recoverable; the bound only guards against a pathological storm.
	maxAssignAttempts = 10
)

// WishlistRepository handles database operations for wishlist entries
type WishlistRepository struct {
	db *pgxpool.Pool
}

// NewWishlistRepository creates a new wishlist repository
func NewWishlistRepository(db *pgxpool.Pool) *WishlistRepository {
	return &WishlistRepository{db: db}
}

// lockQueue serializes mutations of one (target, kind) queue for the
// duration of the transaction. Assignment and removal compaction both take
// it: an insert that computed MAX(position) while a removal's shift was
// uncommitted would reintroduce the gap the shift just closed, and the
// unique constraint cannot see that.
func lockQueue(ctx context.Context, tx pgx.Tx, targetID string, kind models.WishKind) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, targetID, string(kind))
	if err != nil {
		return fmt.Errorf("failed to lock queue: %w", err)
	}
	return nil
}

// Insert persists a new wishlist entry with the next free position in the
// (target, kind) queue and returns the assigned position. The count and
// insert happen in one statement under the queue's advisory lock, and the
// dense-position unique constraint backstops the invariant: a violation is
// retried with a freshly computed position, so two racing guests can never
// both hold the same rank. A duplicate (guest, target, kind) wish fails
// with ErrAlreadyQueued and leaves the existing entry untouched.
func (r *WishlistRepository) Insert(ctx context.Context, entry *models.WishlistEntry) (int, error) {
	for attempt := 0; attempt < maxAssignAttempts; attempt++ {
		position, err := r.insertOnce(ctx, entry)
		if err == nil {
			entry.Position = position
			return position, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case constraintOnePerGuest:
				return 0, ErrAlreadyQueued
			case constraintDensePosition:
				// Lost the race for this position; recompute.
				continue
			}
		}
		return 0, fmt.Errorf("failed to insert wishlist entry: %w", err)
	}
	return 0, fmt.Errorf("failed to assign position for target %s after %d attempts", entry.TargetID, maxAssignAttempts)
}

func (r *WishlistRepository) insertOnce(ctx context.Context, entry *models.WishlistEntry) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin wish insert: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockQueue(ctx, tx, entry.TargetID, entry.WishKind); err != nil {
		return 0, err
	}

	var position int
	err = tx.QueryRow(ctx, `
		INSERT INTO wishlist_entries (id, guest_id, target_id, wish_kind, position, created_at)
		SELECT $1, $2, $3, $4, COALESCE(MAX(position), 0) + 1, $5
		FROM wishlist_entries
		WHERE target_id = $3 AND wish_kind = $4
		RETURNING position
	`, entry.ID, entry.GuestID, entry.TargetID, entry.WishKind, entry.CreatedAt).Scan(&position)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit wish insert: %w", err)
	}
	return position, nil
}

// Exists checks whether a guest already holds an entry for (target, kind)
func (r *WishlistRepository) Exists(ctx context.Context, guestID, targetID string, kind models.WishKind) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM wishlist_entries
			WHERE guest_id = $1 AND target_id = $2 AND wish_kind = $3
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, guestID, targetID, kind).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check wishlist entry: %w", err)
	}
	return exists, nil
}

// Remove deletes a guest's entry for (target, kind) and closes the gap it
// leaves so positions stay dense 1..N. The position shift would transiently
// collide with the dense-position constraint, so the constraint is deferred
// to commit inside the transaction.
func (r *WishlistRepository) Remove(ctx context.Context, guestID, targetID string, kind models.WishKind) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin wish removal: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockQueue(ctx, tx, targetID, kind); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SET CONSTRAINTS wishlist_dense_position DEFERRED`); err != nil {
		return fmt.Errorf("failed to defer position constraint: %w", err)
	}

	var removed int
	err = tx.QueryRow(ctx, `
		DELETE FROM wishlist_entries
		WHERE guest_id = $1 AND target_id = $2 AND wish_kind = $3
		RETURNING position
	`, guestID, targetID, kind).Scan(&removed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrWishNotFound
		}
		return fmt.Errorf("failed to delete wishlist entry: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE wishlist_entries SET position = position - 1
		WHERE target_id = $1 AND wish_kind = $2 AND position > $3
	`, targetID, kind, removed)
	if err != nil {
		return fmt.Errorf("failed to compact positions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit wish removal: %w", err)
	}
	return nil
}

// ListByGuest retrieves all wishlist entries held by a guest, oldest first
func (r *WishlistRepository) ListByGuest(ctx context.Context, guestID string) ([]*models.WishlistEntry, error) {
	query := `
		SELECT id, guest_id, target_id, wish_kind, position, created_at
		FROM wishlist_entries
		WHERE guest_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.WishlistEntry
	for rows.Next() {
		var e models.WishlistEntry
		err := rows.Scan(&e.ID, &e.GuestID, &e.TargetID, &e.WishKind, &e.Position, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wishlist entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishlist entries: %w", err)
	}
	return entries, nil
}

// CountForTarget returns how many entries exist for a (target, kind) queue
func (r *WishlistRepository) CountForTarget(ctx context.Context, targetID string, kind models.WishKind) (int, error) {
	query := `SELECT COUNT(*) FROM wishlist_entries WHERE target_id = $1 AND wish_kind = $2`
	var count int
	err := r.db.QueryRow(ctx, query, targetID, kind).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count wishlist entries: %w", err)
	}
	return count, nil
}
