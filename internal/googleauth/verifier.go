// Package googleauth verifies Google-issued ID tokens. It is a thin
// adapter over Google's OIDC endpoints: signature, issuer and audience
// checking happen against Google's published signing keys.
package googleauth

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/coreos/go-oidc/v3/oidc"

	"userboard/internal/config"
)

// Issuer is the trusted issuer for Google Sign-In ID tokens.
const Issuer = "https://accounts.google.com"

// ErrInvalidToken is returned for any token that does not verify:
// malformed, signed by an untrusted key, expired, wrong audience, or
// missing a usable payload.
var ErrInvalidToken = errors.New("invalid Google token")

// Payload is the verified claim set extracted from a Google ID token.
type Payload struct {
	Subject string // stable Google account ID
	Email   string
	Name    string
	Picture string
}

// Verifier validates raw ID tokens against Google's signing keys.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers Google's OIDC configuration and prepares a
// verifier bound to the configured OAuth client ID.
func NewVerifier(ctx context.Context, cfg config.GoogleConfig) (*Verifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}

	provider, err := oidc.NewProvider(ctx, Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &Verifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// Verify validates a raw ID token and returns its claim set.
// The returned payload always carries a non-empty email.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Payload, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		log.Printf("Google token verification failed: %v", err)
		return nil, ErrInvalidToken
	}

	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		log.Printf("failed to decode Google token claims: %v", err)
		return nil, ErrInvalidToken
	}

	if claims.Email == "" {
		return nil, ErrInvalidToken
	}

	return &Payload{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
