// Package account implements the session lifecycle: Google sign-in,
// token refresh and logout.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"userboard/internal/googleauth"
	"userboard/internal/mail"
	"userboard/internal/token"
	"userboard/internal/user"
)

var (
	// ErrInvalidGoogleToken indicates the Google ID token failed verification.
	ErrInvalidGoogleToken = errors.New("invalid google token")
	// ErrInvalidRefreshToken indicates a missing, expired, revoked or
	// otherwise unusable refresh token.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// GoogleVerifier validates a Google ID token and extracts its identity
// claims.
type GoogleVerifier interface {
	Verify(ctx context.Context, rawToken string) (*googleauth.Payload, error)
}

// TokenIssuer mints and verifies session tokens.
type TokenIssuer interface {
	IssueAccess(userID, email, role string) (string, error)
	IssueRefresh(userID string) (string, error)
	Verify(tokenString string) (*token.Claims, error)
}

// Manager handles session business logic.
type Manager struct {
	ds       *user.Datastore
	verifier GoogleVerifier
	issuer   TokenIssuer
	mailer   mail.Mailer
}

// NewManager creates a session manager.
func NewManager(ds *user.Datastore, verifier GoogleVerifier, issuer TokenIssuer, mailer mail.Mailer) *Manager {
	return &Manager{ds: ds, verifier: verifier, issuer: issuer, mailer: mailer}
}

// Session is the outcome of a successful login or refresh.
type Session struct {
	User         *user.User
	AccessToken  string
	RefreshToken string
	Created      bool
}

// Login verifies a Google ID token and establishes a session. Unknown
// emails get an account provisioned from the Google profile; a welcome
// email is dispatched in the background for those. The refresh token is
// rotated on every login, displacing any prior session.
func (m *Manager) Login(ctx context.Context, googleToken string) (*Session, error) {
	payload, err := m.verifier.Verify(ctx, googleToken)
	if err != nil {
		return nil, ErrInvalidGoogleToken
	}

	created := false
	u, err := m.ds.GetByEmail(ctx, payload.Email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		name := payload.Name
		if name == "" {
			name = "Unknown"
		}
		u = &user.User{
			Name:     name,
			Email:    payload.Email,
			Avatar:   payload.Picture,
			Role:     user.RoleUser,
			GoogleID: payload.Subject,
		}
		if err := m.ds.Insert(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to provision user: %w", err)
		}
		created = true
		m.dispatchWelcome(u.Email, u.Name)
	case err != nil:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	refreshToken, err := m.issuer.IssueRefresh(u.ID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	if _, err := m.ds.SetRefreshToken(ctx, u.ID, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	u.RefreshToken = refreshToken

	accessToken, err := m.issuer.IssueAccess(u.ID.String(), u.Email, u.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return &Session{
		User:         u,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Created:      created,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// presented token must match the one stored for the user, so a token
// displaced by a newer login is rejected even before it expires. All
// failure modes collapse into ErrInvalidRefreshToken.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := m.issuer.Verify(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	u, err := m.ds.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidRefreshToken
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if u.RefreshToken == "" || u.RefreshToken != refreshToken {
		return nil, ErrInvalidRefreshToken
	}

	accessToken, err := m.issuer.IssueAccess(u.ID.String(), u.Email, u.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return &Session{User: u, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Logout clears the stored refresh token. Logging out a user with no
// active session is not an error.
func (m *Manager) Logout(ctx context.Context, userID uuid.UUID) error {
	if _, err := m.ds.SetRefreshToken(ctx, userID, ""); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	return nil
}

func (m *Manager) dispatchWelcome(email, name string) {
	if m.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.mailer.SendWelcome(ctx, email, name); err != nil {
			log.Printf("Failed to send welcome email to %s: %v", email, err)
		}
	}()
}
