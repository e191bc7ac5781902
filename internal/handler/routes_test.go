package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"userboard/internal/account"
	"userboard/internal/middleware"
	"userboard/internal/user"
)

type staticUserStore struct {
	u *user.User
}

func (s *staticUserStore) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if s.u == nil || s.u.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.u, nil
}

func newTestMux(t *testing.T, current *user.User) *http.ServeMux {
	t.Helper()
	issuer := newTestIssuer(t)

	authHandler, _, cleanup := setupAuthHandler(t, &stubVerifier{err: account.ErrInvalidGoogleToken})
	t.Cleanup(cleanup)
	usersHandler, _, cleanup2 := setupUsersHandler(t)
	t.Cleanup(cleanup2)

	health := func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"}) }

	mux := http.NewServeMux()
	RegisterRoutes(mux, authHandler, usersHandler, health,
		middleware.RequireAuth(issuer, &staticUserStore{u: current}),
		middleware.RequireAdmin())
	return mux
}

func issueFor(t *testing.T, u *user.User) string {
	t.Helper()
	accessToken, err := newTestIssuer(t).IssueAccess(u.ID.String(), u.Email, u.Role)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return accessToken
}

func TestRoutes_HealthIsOpen(t *testing.T) {
	mux := newTestMux(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestRoutes_DirectoryRequiresAuth(t *testing.T) {
	mux := newTestMux(t, nil)

	for _, path := range []string{"/api/users", "/api/users/stats", "/api/auth/profile"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: expected status 401, got %d", path, rec.Code)
		}
	}
}

func TestRoutes_MutationsRequireAdmin(t *testing.T) {
	member := &user.User{ID: uuid.New(), Email: "member@x.com", Role: user.RoleUser}
	mux := newTestMux(t, member)
	accessToken := issueFor(t, member)

	id := uuid.New().String()
	requests := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/users"},
		{http.MethodPut, "/api/users/" + id},
		{http.MethodDelete, "/api/users/" + id},
	}

	for _, r := range requests {
		req := httptest.NewRequest(r.method, r.path, nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: accessToken})
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected status 403 for non-admin, got %d", r.method, r.path, rec.Code)
		}
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	mux := newTestMux(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
}
