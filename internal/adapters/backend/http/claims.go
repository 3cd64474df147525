package backendhttp

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what can be read from a session token without the signing key.
// It is for display only; the backend remains the only judge of validity.
type TokenInfo struct {
	Subject   string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// InspectToken decodes a JWT session token without verifying it. Opaque
// tokens return an error.
func InspectToken(token string) (TokenInfo, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenInfo{}, fmt.Errorf("inspect token: %w", err)
	}

	info := TokenInfo{Subject: claims.Subject, Username: claims.Username}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	if info.Username == "" {
		info.Username = info.Subject
	}

	return info, nil
}

// Expired reports whether the token carried an expiry that has passed at now.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}
