package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"pairsense-backend/internal/services"
)

type contextKey string

const ctxUserID contextKey = "auth_user_id"

// AuthMiddleware authenticates requests by their Bearer JWT and stores the
// resolved user id on the request context for the handlers.
func AuthMiddleware(userService *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "Bearer token required")
				return
			}

			userID, err := userService.ValidateJWT(token)
			if err != nil {
				unauthorized(w, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the authenticated user id, or "" outside an
// authenticated request.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(ctxUserID).(string)
	return userID
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ValidateWebSocketToken validates the session token a WebSocket client
// passes as a query parameter, where an Authorization header is unavailable.
func ValidateWebSocketToken(token string, userService *services.UserService) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token required")
	}
	return userService.ValidateJWT(token)
}
