// Package middleware provides HTTP middleware for the admin API.
package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"userboard/internal/token"
	"userboard/internal/user"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// UserContextKey is the context key for storing the authenticated user.
const UserContextKey contextKey = "user"

// TokenVerifier validates access tokens and returns their claims.
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// UserStore resolves token subjects to user records.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// GetUser retrieves the authenticated user from the request context.
// Returns the user and true if found, nil and false otherwise.
func GetUser(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*user.User)
	return u, ok
}

// RequireAuth returns middleware that authenticates requests.
//
// Authentication flow:
//  1. Read the access token from the accessToken cookie, falling back
//     to an Authorization bearer header
//  2. Verify the token signature and expiry
//  3. Resolve the token subject to a user record
//  4. Attach the user to the request context and continue
//
// Error responses:
//   - 401 Unauthorized: missing, invalid or expired credentials
//   - 500 Internal Server Error: database or other server error
func RequireAuth(verifier TokenVerifier, store UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				writeMessage(w, http.StatusUnauthorized, "Access denied. No token provided.")
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "Invalid token.")
				return
			}

			id, err := uuid.Parse(claims.UserID())
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "Invalid token.")
				return
			}

			u, err := store.GetByID(r.Context(), id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					// Token subject no longer exists
					writeMessage(w, http.StatusUnauthorized, "Invalid token.")
					return
				}
				log.Printf("Failed to resolve authenticated user: %v", err)
				writeMessage(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns middleware that rejects non-admin users. It must
// run inside RequireAuth.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := GetUser(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "Access denied. No token provided.")
				return
			}
			if !u.IsAdmin() {
				writeMessage(w, http.StatusForbidden, "Access denied. Insufficient permissions.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken finds the access token on the request. The cookie is
// authoritative; the bearer header is a fallback for non-browser
// clients.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie("accessToken"); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
