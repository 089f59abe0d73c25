package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"pairsense-backend/internal/models"
	"pairsense-backend/internal/repository"
	"pairsense-backend/internal/watch"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const jwtExpDays = 365

// UserService owns every write to a user record. Each completed write is
// re-published to the change feed as a before/after snapshot so the trigger
// pipeline and session trackers can react.
type UserService struct {
	userRepo  repository.UserStore
	feed      *watch.Feed
	jwtSecret string
	// moveTolerance is the per-axis degree band treated as GPS jitter.
	moveTolerance float64
	now           func() time.Time
}

// NewUserService creates a new user service
func NewUserService(userRepo repository.UserStore, feed *watch.Feed, jwtSecret string, moveTolerance float64) *UserService {
	return &UserService{
		userRepo:      userRepo,
		feed:          feed,
		jwtSecret:     jwtSecret,
		moveTolerance: moveTolerance,
		now:           time.Now,
	}
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// SignIn creates a new user and returns it with a session JWT.
func (s *UserService) SignIn(ctx context.Context, displayName string) (*models.User, error) {
	userID := uuid.New().String()

	token, err := s.GenerateJWT(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user := &models.User{
		ID:                 userID,
		DisplayName:        displayName,
		NotificationTokens: []string{},
		CreatedAt:          s.now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.feed.PublishUser(watch.UserChange{After: user.Clone()})

	user.Token = token
	return user, nil
}

// Get returns the user record.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// SetMood sets today's mood.
func (s *UserService) SetMood(ctx context.Context, userID string, mood models.MoodCode) error {
	if !mood.Valid() {
		return fmt.Errorf("invalid mood %q", mood)
	}
	before, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.userRepo.SetMood(ctx, userID, mood); err != nil {
		return err
	}

	after := before.Clone()
	after.Mood = mood
	s.feed.PublishUser(watch.UserChange{Before: before, After: after})
	return nil
}

// UpdateLocation stores a fresh position. Moves inside the jitter tolerance
// are dropped at the write edge already, bounding write volume from the
// periodic client refresh.
func (s *UserService) UpdateLocation(ctx context.Context, userID string, lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("invalid coordinates (%v, %v)", lat, lng)
	}
	before, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if before.Location != nil &&
		math.Abs(before.Location.Lat-lat) <= s.moveTolerance &&
		math.Abs(before.Location.Lng-lng) <= s.moveTolerance {
		return nil
	}

	loc := models.Location{Lat: lat, Lng: lng, UpdatedAt: s.now()}
	if err := s.userRepo.SetLocation(ctx, userID, loc); err != nil {
		return err
	}

	after := before.Clone()
	after.Location = &loc
	s.feed.PublishUser(watch.UserChange{Before: before, After: after})
	return nil
}

// TouchOpened records that the user opened the app just now. The stored
// timestamp only ever moves forward.
func (s *UserService) TouchOpened(ctx context.Context, userID string) error {
	before, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	openedAt := s.now()
	if before.LastOpenedAt != nil && !openedAt.After(*before.LastOpenedAt) {
		return nil
	}
	if err := s.userRepo.TouchOpened(ctx, userID, openedAt); err != nil {
		return err
	}

	after := before.Clone()
	after.LastOpenedAt = &openedAt
	s.feed.PublishUser(watch.UserChange{Before: before, After: after})
	return nil
}

// RegisterToken adds a device notification token to the user's set.
func (s *UserService) RegisterToken(ctx context.Context, userID, token string) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}
	if err := s.userRepo.AddToken(ctx, userID, token); err != nil {
		return err
	}
	return nil
}
