package repository

import (
	"context"
	"errors"
	"fmt"

	"pairsense-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PairRepository handles database operations for pairs
type PairRepository struct {
	db *pgxpool.Pool
}

var _ PairStore = (*PairRepository)(nil)

// NewPairRepository creates a new pair repository
func NewPairRepository(db *pgxpool.Pool) *PairRepository {
	return &PairRepository{db: db}
}

// Upsert creates the pair. Re-running the same create (same code, same
// owner) after a failed network write is a no-op; a code already owned by
// someone else reports ErrCodeTaken so the caller can draw a fresh one.
func (r *PairRepository) Upsert(ctx context.Context, pair *models.Pair) error {
	query := `
		INSERT INTO pairs (code, owner_uid, partner_uid, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		pair.Code, pair.OwnerUID, pair.PartnerUID, string(pair.Status), pair.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pair: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := r.GetByCode(ctx, pair.Code)
		if err != nil {
			return fmt.Errorf("failed to re-read pair: %w", err)
		}
		if existing.OwnerUID != pair.OwnerUID {
			return fmt.Errorf("code %s: %w", pair.Code, ErrCodeTaken)
		}
	}
	return nil
}

// GetByCode retrieves a pair by its invite code
func (r *PairRepository) GetByCode(ctx context.Context, code string) (*models.Pair, error) {
	query := `
		SELECT code, owner_uid, partner_uid, status, created_at
		FROM pairs
		WHERE code = $1
	`
	var (
		pair   models.Pair
		status string
	)
	err := r.db.QueryRow(ctx, query, code).Scan(
		&pair.Code, &pair.OwnerUID, &pair.PartnerUID, &status, &pair.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pair not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pair: %w", err)
	}
	pair.Status = models.PairStatus(status)
	return &pair, nil
}

// Join moves a waiting pair to active and stamps the joiner's pair id in one
// transaction. The conditional UPDATE is the compare-and-set: of two
// concurrent joiners, exactly one update matches the waiting row.
func (r *PairRepository) Join(ctx context.Context, code, joinerUID string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin join transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE pairs
		SET partner_uid = $1, status = 'active'
		WHERE code = $2 AND status = 'waiting'
	`, joinerUID, code)
	if err != nil {
		return false, fmt.Errorf("failed to activate pair: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET pair_id = $1 WHERE id = $2`, code, joinerUID); err != nil {
		return false, fmt.Errorf("failed to stamp joiner pair id: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit join: %w", err)
	}
	return true, nil
}
