package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"userboard/internal/user"
)

// UsersHandler handles the user directory endpoints.
type UsersHandler struct {
	manager *user.Manager
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(manager *user.Manager) *UsersHandler {
	return &UsersHandler{manager: manager}
}

// List handles GET /api/users
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	users, pagination, err := h.manager.List(r.Context(), user.ListParams{
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
		Order:  q.Get("order"),
	})
	if err != nil {
		log.Printf("Failed to list users: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users":      users,
		"pagination": pagination,
	})
}

type mutateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Create handles POST /api/users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req mutateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	u, err := h.manager.Create(r.Context(), req.Name, req.Email, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrMissingFields):
			writeError(w, http.StatusBadRequest, "Name and email are required")
		case errors.Is(err, user.ErrDuplicateEmail):
			writeError(w, http.StatusBadRequest, "User already exists")
		case errors.Is(err, user.ErrAdminExists):
			writeError(w, http.StatusBadRequest, "Only one admin account is allowed")
		case errors.Is(err, user.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, "Invalid role")
		default:
			log.Printf("Failed to create user: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user": map[string]any{
			"id":        u.ID.String(),
			"name":      u.Name,
			"email":     u.Email,
			"role":      u.Role,
			"createdAt": u.CreatedAt.Format(time.RFC3339),
		},
	})
}

// Update handles PUT /api/users/{id}
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	var req mutateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.manager.Update(r.Context(), id, req.Name, req.Email, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, user.ErrDuplicateEmail):
			writeError(w, http.StatusBadRequest, "Email already exists")
		case errors.Is(err, user.ErrAdminExists):
			writeError(w, http.StatusBadRequest, "Only one admin account is allowed")
		case errors.Is(err, user.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, "Invalid role")
		default:
			log.Printf("Failed to update user: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user": map[string]any{
			"id":        u.ID.String(),
			"name":      u.Name,
			"email":     u.Email,
			"role":      u.Role,
			"updatedAt": u.UpdatedAt.Format(time.RFC3339),
		},
	})
}

// Delete handles DELETE /api/users/{id}
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	if err := h.manager.Delete(r.Context(), id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("Failed to delete user: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

// Stats handles GET /api/users/stats
func (h *UsersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.Stats(r.Context())
	if err != nil {
		log.Printf("Dashboard stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats": map[string]any{
			"totalUsers":       stats.TotalUsers,
			"newSignups":       stats.NewSignups,
			"activeSessions":   stats.ActiveSessions,
			"growthPercentage": stats.GrowthPercentage,
			"systemStatus":     "operational",
		},
	})
}

func parseUserID(r *http.Request) (uuid.UUID, error) {
	idStr := r.PathValue("id")
	if idStr == "" {
		return uuid.Nil, errors.New("missing user ID")
	}
	return uuid.Parse(idStr)
}
