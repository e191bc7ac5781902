package handler

import (
	"net/http"
)

// Middleware wraps a handler with a cross-cutting concern.
type Middleware func(http.Handler) http.Handler

// RegisterRoutes registers all HTTP routes with the provided mux.
// requireAuth gates every session-scoped route; requireAdmin
// additionally gates directory mutations.
func RegisterRoutes(mux *http.ServeMux, auth *AuthHandler, users *UsersHandler, health http.HandlerFunc, requireAuth, requireAdmin Middleware) {
	// Health endpoint (no auth required)
	mux.HandleFunc("GET /health", health)

	// Session endpoints
	mux.HandleFunc("POST /api/auth/google", auth.GoogleLogin)
	mux.HandleFunc("POST /api/auth/refresh", auth.Refresh)
	mux.Handle("POST /api/auth/logout", requireAuth(http.HandlerFunc(auth.Logout)))
	mux.Handle("GET /api/auth/profile", requireAuth(http.HandlerFunc(auth.Profile)))

	// Directory reads are open to any authenticated user
	mux.Handle("GET /api/users", requireAuth(http.HandlerFunc(users.List)))
	mux.Handle("GET /api/users/stats", requireAuth(http.HandlerFunc(users.Stats)))

	// Directory mutations are admin-only
	mux.Handle("POST /api/users", requireAuth(requireAdmin(http.HandlerFunc(users.Create))))
	mux.Handle("PUT /api/users/{id}", requireAuth(requireAdmin(http.HandlerFunc(users.Update))))
	mux.Handle("DELETE /api/users/{id}", requireAuth(requireAdmin(http.HandlerFunc(users.Delete))))
}
