package repository

import (
	"context"
	"errors"
	"time"

	"pairsense-backend/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// UserStore is the user-record half of the document store collaborator.
// Mutators are field-scoped merge writes: each one touches only the named
// field so concurrent or replayed writes never clobber unrelated state.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetMood(ctx context.Context, id string, mood models.MoodCode) error
	SetLocation(ctx context.Context, id string, loc models.Location) error
	// SetWeather touches the weather field only; in particular it never
	// writes location, which keeps the enrichment step from re-triggering
	// itself.
	SetWeather(ctx context.Context, id string, w models.WeatherSnapshot) error
	TouchOpened(ctx context.Context, id string, openedAt time.Time) error
	SetPairID(ctx context.Context, id string, code string) error
	AddToken(ctx context.Context, id string, token string) error
	// RemoveTokens drops the given tokens from the user's set in a single
	// merge write. Removing an absent token is a no-op.
	RemoveTokens(ctx context.Context, id string, tokens []string) error
}

// PairStore is the pair-record half of the document store collaborator.
type PairStore interface {
	// Upsert creates the pair, or re-writes it unchanged when the same owner
	// retries the same code after a failed write. A code owned by someone
	// else is reported as a collision error.
	Upsert(ctx context.Context, pair *models.Pair) error
	GetByCode(ctx context.Context, code string) (*models.Pair, error)
	// Join atomically moves a waiting pair to active with the given partner
	// and stamps the joiner's pair id, as one transaction. It returns false
	// when the pair was no longer waiting, so a second concurrent joiner
	// loses cleanly instead of overwriting the first.
	Join(ctx context.Context, code, joinerUID string) (bool, error)
}

// ErrCodeTaken is returned by Upsert when the invite code belongs to a
// different owner.
var ErrCodeTaken = errors.New("invite code already taken")
