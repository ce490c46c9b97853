package repository

import (
	"context"
	"errors"
	"fmt"

	"runway-live-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// activationLockKey is the advisory lock key that serializes look
// activations. All activations across the process (and any sibling
// process on the same database) queue on this single key.
const activationLockKey = 0x6c6f6f6b // "look"

// LookRepository handles database operations for looks
type LookRepository struct {
	db *pgxpool.Pool
}

// NewLookRepository creates a new look repository
func NewLookRepository(db *pgxpool.Pool) *LookRepository {
	return &LookRepository{db: db}
}

// GetByID retrieves a look by ID
func (r *LookRepository) GetByID(ctx context.Context, id string) (*models.Look, error) {
	query := `
		SELECT id, sequence, name, hero_image_key, active
		FROM looks
		WHERE id = $1
	`
	var look models.Look
	err := r.db.QueryRow(ctx, query, id).Scan(
		&look.ID, &look.Sequence, &look.Name, &look.HeroImageKey, &look.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLookNotFound
		}
		return nil, fmt.Errorf("failed to get look: %w", err)
	}
	return &look, nil
}

// List retrieves all looks in show order
func (r *LookRepository) List(ctx context.Context) ([]*models.Look, error) {
	query := `
		SELECT id, sequence, name, hero_image_key, active
		FROM looks
		ORDER BY sequence
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list looks: %w", err)
	}
	defer rows.Close()

	var looks []*models.Look
	for rows.Next() {
		var look models.Look
		if err := rows.Scan(&look.ID, &look.Sequence, &look.Name, &look.HeroImageKey, &look.Active); err != nil {
			return nil, fmt.Errorf("failed to scan look: %w", err)
		}
		looks = append(looks, &look)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating looks: %w", err)
	}
	return looks, nil
}

// GetActive returns the currently active look, or nil when no look is active.
func (r *LookRepository) GetActive(ctx context.Context) (*models.Look, error) {
	query := `
		SELECT id, sequence, name, hero_image_key, active
		FROM looks
		WHERE active
	`
	var look models.Look
	err := r.db.QueryRow(ctx, query).Scan(
		&look.ID, &look.Sequence, &look.Name, &look.HeroImageKey, &look.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active look: %w", err)
	}
	return &look, nil
}

// Activate atomically deactivates whichever look is currently active and
// activates the target look. Concurrent activations are serialized on a
// transaction-scoped advisory lock, so the look whose transaction commits
// last is the one left active. A missing target rolls the whole
// transaction back, leaving the previously active look untouched.
func (r *LookRepository) Activate(ctx context.Context, lookID string) (*models.Look, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin activation: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, activationLockKey); err != nil {
		return nil, fmt.Errorf("failed to acquire activation lock: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE looks SET active = false WHERE active`); err != nil {
		return nil, fmt.Errorf("failed to deactivate current look: %w", err)
	}

	var look models.Look
	err = tx.QueryRow(ctx, `
		UPDATE looks SET active = true
		WHERE id = $1
		RETURNING id, sequence, name, hero_image_key, active
	`, lookID).Scan(&look.ID, &look.Sequence, &look.Name, &look.HeroImageKey, &look.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLookNotFound
		}
		return nil, fmt.Errorf("failed to activate look: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit activation: %w", err)
	}
	return &look, nil
}

// ProductsForLook retrieves the constituent products of a look in display order
func (r *LookRepository) ProductsForLook(ctx context.Context, lookID string) ([]*models.Product, error) {
	query := `
		SELECT p.id, p.brand, p.name, p.price_cents, p.size, p.condition, lp.display_order
		FROM products p
		JOIN look_products lp ON lp.product_id = p.id
		WHERE lp.look_id = $1
		ORDER BY lp.display_order
	`
	rows, err := r.db.Query(ctx, query, lookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get look products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		var p models.Product
		err := rows.Scan(&p.ID, &p.Brand, &p.Name, &p.PriceCents, &p.Size, &p.Condition, &p.DisplayOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to scan look product: %w", err)
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating look products: %w", err)
	}
	return products, nil
}
