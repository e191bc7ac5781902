package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"userboard/internal/account"
	"userboard/internal/config"
	"userboard/internal/middleware"
	"userboard/internal/user"
)

// AuthHandler handles the session endpoints: Google login, refresh,
// logout and profile.
type AuthHandler struct {
	manager *account.Manager
	cfg     *config.Config
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(manager *account.Manager, cfg *config.Config) *AuthHandler {
	return &AuthHandler{manager: manager, cfg: cfg}
}

// sessionUser is the public projection of a user in auth responses.
type sessionUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Role   string `json:"role"`
}

func toSessionUser(u *user.User) sessionUser {
	return sessionUser{
		ID:     u.ID.String(),
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
		Role:   u.Role,
	}
}

type googleLoginRequest struct {
	Token string `json:"token"`
}

// GoogleLogin handles POST /api/auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "Google token is required")
		return
	}

	session, err := h.manager.Login(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, account.ErrInvalidGoogleToken) {
			writeError(w, http.StatusBadRequest, "Invalid Google token")
			return
		}
		log.Printf("Google login error: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setSessionCookie(w, "accessToken", session.AccessToken, h.cfg.Token.AccessTTL)
	h.setSessionCookie(w, "refreshToken", session.RefreshToken, h.cfg.Token.RefreshTTL)

	message := "Login successful"
	if session.Created {
		message = "Account created successfully"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     message,
		"user":        toSessionUser(session.User),
		"accessToken": session.AccessToken,
	})
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("refreshToken")
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "Refresh token not provided")
		return
	}

	session, err := h.manager.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, account.ErrInvalidRefreshToken) {
			log.Printf("Token refresh error: %v", err)
		}
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	h.setSessionCookie(w, "accessToken", session.AccessToken, h.cfg.Token.AccessTTL)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Token refreshed successfully"})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if u, ok := middleware.GetUser(r.Context()); ok {
		if err := h.manager.Logout(r.Context(), u.ID); err != nil {
			log.Printf("Logout error: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	h.clearSessionCookie(w, "accessToken")
	h.clearSessionCookie(w, "refreshToken")

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// Profile handles GET /api/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Access denied. No token provided.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": toSessionUser(u)})
}

// setSessionCookie writes an HTTP-only session cookie. Production uses
// Secure + SameSite=Lax; development uses SameSite=None so the frontend
// dev server on a different origin still sends cookies.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	sameSite := http.SameSiteNoneMode
	if h.cfg.IsProduction() {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: sameSite,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
