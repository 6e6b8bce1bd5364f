package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// TokenValidator verifies a signed token and returns the subject user id.
type TokenValidator interface {
	ValidateToken(tokenStr string) (string, error)
}

// AuthMiddleware guards a route with bearer-token auth. Websocket clients
// cannot set headers from a browser, so a `token` query parameter is
// accepted as a fallback.
func AuthMiddleware(tokenSvc TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenStr string
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
					return
				}
				tokenStr = parts[1]
			} else {
				tokenStr = r.URL.Query().Get("token")
			}
			if tokenStr == "" {
				http.Error(w, "Authorization required", http.StatusUnauthorized)
				return
			}
			// Validate Token
			userID, err := tokenSvc.ValidateToken(tokenStr)
			if err != nil {
				http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
				return
			}
			// Inject UserID into Context
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			// Continue to next handler
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
