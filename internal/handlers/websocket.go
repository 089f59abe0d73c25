package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"pairsense-backend/internal/middleware"
	"pairsense-backend/internal/repository"
	"pairsense-backend/internal/services"
	"pairsense-backend/internal/watch"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for MVP
	},
}

const locationWriteTimeout = 10 * time.Second

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub         *services.WSHub
	userService *services.UserService
	feed        *watch.Feed
	userRepo    repository.UserStore
	pairRepo    repository.PairStore
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	feed *watch.Feed,
	userRepo repository.UserStore,
	pairRepo repository.PairStore,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		userService: userService,
		feed:        feed,
		userRepo:    userRepo,
		pairRepo:    pairRepo,
	}
}

// HandleWebSocket upgrades the connection and runs one presence session:
// a proximity tracker streams snapshots out while the read loop accepts
// sensor-style writes in.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get token from query parameter
	token := r.URL.Query().Get("token")
	userID, err := middleware.ValidateWebSocketToken(token, h.userService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to upgrade connection")
		return
	}

	h.hub.Register(userID, conn)

	tracker := services.NewTracker(userID, h.feed, h.userRepo, h.pairRepo, func(snap services.PresenceSnapshot) {
		h.hub.SendPresence(userID, snap)
	})
	tracker.Start(r.Context())

	defer func() {
		tracker.Stop()
		h.hub.Unregister(userID)
	}()

	// Opening a session counts as opening the app.
	if err := h.userService.TouchOpened(r.Context(), userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to record session open")
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket read error")
			}
			return
		}

		var msg services.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(userID, "invalid message")
			continue
		}

		switch msg.Type {
		case "location_update":
			h.handleLocationUpdate(userID, msg)
		case "opened":
			if err := h.userService.TouchOpened(r.Context(), userID); err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("Failed to record app open")
			}
		case "ping":
			_ = h.hub.SendToUser(userID, services.WSMessage{Type: "pong"})
		default:
			h.sendError(userID, "unknown message type")
		}
	}
}

// handleLocationUpdate applies a periodic location refresh. The write is
// fire-and-forget with its own timeout, so a refresh that outlives the
// session is simply abandoned.
func (h *WebSocketHandler) handleLocationUpdate(userID string, msg services.WSMessage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), locationWriteTimeout)
		defer cancel()

		if err := h.userService.UpdateLocation(ctx, userID, msg.Lat, msg.Lng); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to update location")
		}
	}()
}

// sendError reports a protocol error back to the session. Going through the
// hub keeps the write serialized with concurrent presence sends.
func (h *WebSocketHandler) sendError(userID, message string) {
	_ = h.hub.SendToUser(userID, services.WSMessage{
		Type:    "error",
		Message: message,
	})
}
