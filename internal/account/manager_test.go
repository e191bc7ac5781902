package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"userboard/internal/config"
	"userboard/internal/googleauth"
	"userboard/internal/token"
	"userboard/internal/user"
)

// stubVerifier returns a fixed payload or error.
type stubVerifier struct {
	payload *googleauth.Payload
	err     error
}

func (v *stubVerifier) Verify(ctx context.Context, rawToken string) (*googleauth.Payload, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.payload, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{done: make(chan struct{}, 8)}
}

func (m *recordingMailer) SendWelcome(ctx context.Context, email, name string) error {
	m.mu.Lock()
	m.sent = append(m.sent, email)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func (m *recordingMailer) wait(t *testing.T) {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for welcome email dispatch")
	}
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newTestIssuer(t *testing.T) *token.Issuer {
	t.Helper()
	issuer, err := token.NewIssuer(config.TokenConfig{
		Secret:     "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}
	return issuer
}

func setupManagerTest(t *testing.T, verifier GoogleVerifier) (*Manager, sqlmock.Sqlmock, *recordingMailer, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	mailer := newRecordingMailer()
	mgr := NewManager(user.NewDatastore(db), verifier, newTestIssuer(t), mailer)
	return mgr, mock, mailer, func() { db.Close() }
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "avatar", "role", "google_id", "refresh_token", "created_at", "updated_at",
	})
}

func TestManager_Login_ProvisionsNewUser(t *testing.T) {
	verifier := &stubVerifier{payload: &googleauth.Payload{
		Subject: "google-123",
		Email:   "new@example.com",
		Name:    "New User",
		Picture: "https://example.com/p.png",
	}}
	mgr, mock, mailer, cleanup := setupManagerTest(t, verifier)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("new@example.com").
		WillReturnRows(userRows())
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "New User", "new@example.com", "https://example.com/p.png",
			user.RoleUser, "google-123", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`UPDATE users SET refresh_token = \$2`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := mgr.Login(context.Background(), "google-id-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !session.Created {
		t.Error("expected Created to be true for a provisioned user")
	}
	if session.User.Email != "new@example.com" {
		t.Errorf("unexpected email %q", session.User.Email)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Error("expected both tokens to be issued")
	}

	mailer.wait(t)
	if mailer.count() != 1 {
		t.Errorf("expected one welcome email, got %d", mailer.count())
	}
}

func TestManager_Login_MissingNameDefaultsToUnknown(t *testing.T) {
	verifier := &stubVerifier{payload: &googleauth.Payload{
		Subject: "google-123",
		Email:   "new@example.com",
	}}
	mgr, mock, _, cleanup := setupManagerTest(t, verifier)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("new@example.com").
		WillReturnRows(userRows())
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "Unknown", "new@example.com", "",
			user.RoleUser, "google-123", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`UPDATE users SET refresh_token = \$2`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := mgr.Login(context.Background(), "google-id-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.User.Name != "Unknown" {
		t.Errorf("expected name Unknown, got %q", session.User.Name)
	}
}

func TestManager_Login_ExistingUser(t *testing.T) {
	verifier := &stubVerifier{payload: &googleauth.Payload{
		Subject: "google-123",
		Email:   "existing@example.com",
		Name:    "Existing User",
	}}
	mgr, mock, mailer, cleanup := setupManagerTest(t, verifier)
	defer cleanup()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("existing@example.com").
		WillReturnRows(userRows().AddRow(id, "Existing User", "existing@example.com", "", user.RoleAdmin, "google-123", "old-token", now, now))
	mock.ExpectExec(`UPDATE users SET refresh_token = \$2`).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := mgr.Login(context.Background(), "google-id-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.Created {
		t.Error("expected Created to be false for an existing user")
	}
	if mailer.count() != 0 {
		t.Errorf("expected no welcome email, got %d", mailer.count())
	}

	claims, err := newTestIssuer(t).Verify(session.AccessToken)
	if err != nil {
		t.Fatalf("access token failed verification: %v", err)
	}
	if claims.UserID() != id.String() || claims.Role != user.RoleAdmin {
		t.Errorf("unexpected claims: id=%q role=%q", claims.UserID(), claims.Role)
	}
}

func TestManager_Login_InvalidGoogleToken(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("token expired")}
	mgr, _, mailer, cleanup := setupManagerTest(t, verifier)
	defer cleanup()

	if _, err := mgr.Login(context.Background(), "bad-token"); !errors.Is(err, ErrInvalidGoogleToken) {
		t.Errorf("expected ErrInvalidGoogleToken, got %v", err)
	}
	if mailer.count() != 0 {
		t.Errorf("expected no welcome email, got %d", mailer.count())
	}
}

func TestManager_Refresh(t *testing.T) {
	mgr, mock, _, cleanup := setupManagerTest(t, &stubVerifier{})
	defer cleanup()

	id := uuid.New()
	refreshToken, err := newTestIssuer(t).IssueRefresh(id.String())
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(userRows().AddRow(id, "A", "a@x.com", "", user.RoleUser, "", refreshToken, now, now))

	session, err := mgr.Refresh(context.Background(), refreshToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.AccessToken == "" {
		t.Error("expected a new access token")
	}
	if session.RefreshToken != refreshToken {
		t.Error("expected the refresh token to be unchanged")
	}
}

func TestManager_Refresh_DisplacedToken(t *testing.T) {
	mgr, mock, _, cleanup := setupManagerTest(t, &stubVerifier{})
	defer cleanup()

	id := uuid.New()
	refreshToken, err := newTestIssuer(t).IssueRefresh(id.String())
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(userRows().AddRow(id, "A", "a@x.com", "", user.RoleUser, "", "a-newer-token", now, now))

	if _, err := mgr.Refresh(context.Background(), refreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestManager_Refresh_UnknownUser(t *testing.T) {
	mgr, mock, _, cleanup := setupManagerTest(t, &stubVerifier{})
	defer cleanup()

	id := uuid.New()
	refreshToken, err := newTestIssuer(t).IssueRefresh(id.String())
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(userRows())

	if _, err := mgr.Refresh(context.Background(), refreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestManager_Refresh_MalformedToken(t *testing.T) {
	mgr, _, _, cleanup := setupManagerTest(t, &stubVerifier{})
	defer cleanup()

	if _, err := mgr.Refresh(context.Background(), "not-a-jwt"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestManager_Logout(t *testing.T) {
	mgr, mock, _, cleanup := setupManagerTest(t, &stubVerifier{})
	defer cleanup()

	id := uuid.New()
	mock.ExpectExec(`UPDATE users SET refresh_token = \$2`).
		WithArgs(id, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := mgr.Logout(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestManager_Logout_NoActiveSession(t *testing.T) {
	mgr, mock, _, cleanup := setupManagerTest(t, &stubVerifier{})
	defer cleanup()

	id := uuid.New()
	mock.ExpectExec(`UPDATE users SET refresh_token = \$2`).
		WithArgs(id, "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := mgr.Logout(context.Background(), id); err != nil {
		t.Fatalf("expected logout to be idempotent, got %v", err)
	}
}
