package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pairsense-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

var _ UserStore = (*UserRepository)(nil)

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, display_name, mood, notification_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.DisplayName, string(user.Mood), user.NotificationTokens, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, display_name, mood, last_opened_at,
		       location_lat, location_lng, location_updated_at,
		       weather, pair_id, notification_tokens, created_at
		FROM users
		WHERE id = $1
	`
	var (
		user     models.User
		mood     string
		lat, lng *float64
		locAt    *time.Time
		weather  *models.WeatherSnapshot
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.DisplayName, &mood, &user.LastOpenedAt,
		&lat, &lng, &locAt,
		&weather, &user.PairID, &user.NotificationTokens, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Mood = models.MoodCode(mood)
	if lat != nil && lng != nil && locAt != nil {
		user.Location = &models.Location{Lat: *lat, Lng: *lng, UpdatedAt: *locAt}
	}
	user.Weather = weather
	return &user, nil
}

// SetMood updates only the mood field.
func (r *UserRepository) SetMood(ctx context.Context, id string, mood models.MoodCode) error {
	query := `UPDATE users SET mood = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, string(mood), id); err != nil {
		return fmt.Errorf("failed to set mood: %w", err)
	}
	return nil
}

// SetLocation updates only the location fields.
func (r *UserRepository) SetLocation(ctx context.Context, id string, loc models.Location) error {
	query := `
		UPDATE users
		SET location_lat = $1, location_lng = $2, location_updated_at = $3
		WHERE id = $4
	`
	if _, err := r.db.Exec(ctx, query, loc.Lat, loc.Lng, loc.UpdatedAt, id); err != nil {
		return fmt.Errorf("failed to set location: %w", err)
	}
	return nil
}

// SetWeather updates only the weather field. Location is deliberately left
// untouched so the enrichment write cannot re-trigger itself.
func (r *UserRepository) SetWeather(ctx context.Context, id string, w models.WeatherSnapshot) error {
	query := `UPDATE users SET weather = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, w, id); err != nil {
		return fmt.Errorf("failed to set weather: %w", err)
	}
	return nil
}

// TouchOpened advances last_opened_at, never moving it backwards.
func (r *UserRepository) TouchOpened(ctx context.Context, id string, openedAt time.Time) error {
	query := `
		UPDATE users
		SET last_opened_at = $1
		WHERE id = $2 AND (last_opened_at IS NULL OR last_opened_at < $1)
	`
	if _, err := r.db.Exec(ctx, query, openedAt, id); err != nil {
		return fmt.Errorf("failed to touch last opened: %w", err)
	}
	return nil
}

// SetPairID stamps the pair id on the user.
func (r *UserRepository) SetPairID(ctx context.Context, id string, code string) error {
	query := `UPDATE users SET pair_id = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, code, id); err != nil {
		return fmt.Errorf("failed to set pair id: %w", err)
	}
	return nil
}

// AddToken adds a notification token to the user's set. Re-adding an
// existing token is a no-op, so registration is safe to repeat.
func (r *UserRepository) AddToken(ctx context.Context, id string, token string) error {
	query := `
		UPDATE users
		SET notification_tokens = array_append(notification_tokens, $1)
		WHERE id = $2 AND NOT ($1 = ANY(notification_tokens))
	`
	if _, err := r.db.Exec(ctx, query, token, id); err != nil {
		return fmt.Errorf("failed to add token: %w", err)
	}
	return nil
}

// RemoveTokens drops the given tokens in one merge write.
func (r *UserRepository) RemoveTokens(ctx context.Context, id string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	query := `
		UPDATE users
		SET notification_tokens = (
			SELECT COALESCE(array_agg(t), '{}')
			FROM unnest(notification_tokens) AS t
			WHERE t != ALL($1::text[])
		)
		WHERE id = $2
	`
	if _, err := r.db.Exec(ctx, query, tokens, id); err != nil {
		return fmt.Errorf("failed to remove tokens: %w", err)
	}
	return nil
}
