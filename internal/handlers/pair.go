package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"pairsense-backend/internal/middleware"
	"pairsense-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PairHandler handles pair-related HTTP requests
type PairHandler struct {
	pairService *services.PairService
	wsHub       *services.WSHub
}

// NewPairHandler creates a new pair handler
func NewPairHandler(pairService *services.PairService, wsHub *services.WSHub) *PairHandler {
	return &PairHandler{
		pairService: pairService,
		wsHub:       wsHub,
	}
}

// CreateInvite handles POST /api/v1/pairs
func (h *PairHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	pair, err := h.pairService.CreateInvite(ctx, userID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Msg("Failed to create invite")
		respondError(w, err.Error(), pairStatusCode(err))
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("pair_id", pair.Code).
		Msg("Invite created")

	respondJSON(w, http.StatusOK, pair)
}

// JoinPairRequest represents the request body for joining a pair
type JoinPairRequest struct {
	Code string `json:"code"`
}

// JoinPair handles POST /api/v1/pairs/join
func (h *PairHandler) JoinPair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req JoinPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Code) != 6 {
		respondError(w, "code must be 6 digits", http.StatusBadRequest)
		return
	}

	pair, err := h.pairService.JoinPair(ctx, userID, req.Code)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("pair_id", req.Code).
			Msg("Failed to join pair")
		respondError(w, err.Error(), pairStatusCode(err))
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("pair_id", pair.Code).
		Msg("Pair joined")

	// Tell both participants over WebSocket if they are online. Failures
	// here don't fail the join.
	h.wsHub.NotifyPairActivated(pair.OwnerUID, pair)
	h.wsHub.NotifyPairActivated(userID, pair)

	respondJSON(w, http.StatusOK, pair)
}

// pairStatusCode maps the pairing error taxonomy onto HTTP status codes.
func pairStatusCode(err error) int {
	switch {
	case errors.Is(err, services.ErrPairNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSelfJoin),
		errors.Is(err, services.ErrAlreadyPaired),
		errors.Is(err, services.ErrAlreadyTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
