package handlers

import (
	"encoding/json"
	"net/http"

	"pairsense-backend/internal/middleware"
	"pairsense-backend/internal/models"
	"pairsense-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// SignInRequest represents the request body for signing in
type SignInRequest struct {
	DisplayName string `json:"display_name"`
}

// SignIn handles POST /api/v1/users
func (h *UserHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.SignIn(ctx, req.DisplayName)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign in user")
		respondError(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("user_id", user.ID).
		Msg("User signed in")

	respondJSON(w, http.StatusOK, user)
}

// Me handles GET /api/v1/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.userService.Get(ctx, userID)
	if err != nil {
		respondError(w, "User not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// SetMoodRequest represents the request body for setting a mood
type SetMoodRequest struct {
	Mood models.MoodCode `json:"mood"`
}

// SetMood handles PUT /api/v1/me/mood
func (h *UserHandler) SetMood(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req SetMoodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Mood.Valid() {
		respondError(w, "mood must be one of good, ok, tired, bad", http.StatusBadRequest)
		return
	}

	if err := h.userService.SetMood(ctx, userID, req.Mood); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to set mood")
		respondError(w, "Failed to set mood", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateLocationRequest represents the request body for a location refresh
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UpdateLocation handles PUT /api/v1/me/location
func (h *UserHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdateLocation(ctx, userID, req.Lat, req.Lng); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update location")
		respondError(w, "Failed to update location", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TouchOpened handles POST /api/v1/me/opened
func (h *UserHandler) TouchOpened(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := h.userService.TouchOpened(ctx, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to record app open")
		respondError(w, "Failed to record app open", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RegisterTokenRequest represents the request body for registering a token
type RegisterTokenRequest struct {
	Token string `json:"token"`
}

// RegisterToken handles POST /api/v1/me/tokens
func (h *UserHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		respondError(w, "token is required", http.StatusBadRequest)
		return
	}

	if err := h.userService.RegisterToken(ctx, userID, req.Token); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to register token")
		respondError(w, "Failed to register token", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
