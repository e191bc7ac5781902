// Package token issues and verifies the signed session tokens that
// authenticate requests: a short-lived access token and a longer-lived
// refresh token. Verification is stateless signature and expiry
// checking; it never consults the store.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"userboard/internal/config"
)

// Sentinel errors for verification failures. Handlers report both as a
// plain 401 so clients cannot distinguish expired from forged tokens.
var (
	ErrInvalid = errors.New("invalid token")
	ErrExpired = errors.New("token expired")
)

// Claims are the session token claims. The subject is the user ID.
// Email and Role are present on access tokens only.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// UserID returns the user ID the token was issued for.
func (c *Claims) UserID() string {
	return c.Subject
}

// Issuer mints and verifies session tokens with a shared HMAC secret.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer creates a token issuer from the token configuration.
func NewIssuer(cfg config.TokenConfig) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("signing secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	return &Issuer{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccess mints a short-lived access token carrying the user's
// identity and role.
func (i *Issuer) IssueAccess(userID, email, role string) (string, error) {
	return i.sign(Claims{
		RegisteredClaims: i.registered(userID, i.accessTTL),
		Email:            email,
		Role:             role,
	})
}

// IssueRefresh mints a refresh token carrying only the user ID.
func (i *Issuer) IssueRefresh(userID string) (string, error) {
	return i.sign(Claims{
		RegisteredClaims: i.registered(userID, i.refreshTTL),
	})
}

func (i *Issuer) registered(userID string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *Issuer) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a token's signature and expiry and returns its claims.
// Returns ErrExpired for tokens past their expiry and ErrInvalid for
// everything else (bad signature, wrong algorithm, malformed payload).
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}
