package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"pairsense-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Lat     float64     `json:"lat,omitempty"`
	Lng     float64     `json:"lng,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// wsSession is one registered connection. The mutex serializes writes:
// presence snapshots arrive from publisher goroutines while the read loop
// answers pings, and the conn allows only one writer at a time.
type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections, one per user session.
type WSHub struct {
	mu       sync.RWMutex
	sessions map[string]*wsSession
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		sessions: make(map[string]*wsSession),
	}
}

// Register registers a new WebSocket connection for a user
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existing, exists := h.sessions[userID]; exists {
		existing.conn.Close()
	}

	h.sessions[userID] = &wsSession{conn: conn}

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a WebSocket connection for a user
func (h *WSHub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if session, exists := h.sessions[userID]; exists {
		session.conn.Close()
		delete(h.sessions, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	session, exists := h.sessions[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := session.write(data); err != nil {
		h.Unregister(userID)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.sessions[userID]
	return exists
}

// SendPresence streams a presence snapshot to a connected user. Offline
// users are skipped silently.
func (h *WSHub) SendPresence(userID string, snap PresenceSnapshot) {
	if !h.IsOnline(userID) {
		return
	}
	if err := h.SendToUser(userID, WSMessage{Type: "presence_state", Data: snap}); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send presence state")
	}
}

// NotifyPairActivated tells a connected participant their pair went active.
func (h *WSHub) NotifyPairActivated(userID string, pair *models.Pair) {
	if !h.IsOnline(userID) {
		return
	}
	if err := h.SendToUser(userID, WSMessage{Type: "pair_activated", Data: pair}); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to notify pair activation")
	}
}
