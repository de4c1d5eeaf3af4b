package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Credentials is what login needs to know about a user.
type Credentials struct {
	UserID       string
	PasswordHash string
	IsActive     bool
}

// CredentialRepository looks users up for authentication. Unknown users
// surface as errors.ErrUserNotFound.
type CredentialRepository interface {
	GetByEmail(ctx context.Context, email string) (*Credentials, error)
	GetByID(ctx context.Context, userID string) (*Credentials, error)
}

// TokenGenerator creates and checks signed tokens.
type TokenGenerator interface {
	GenerateAccessToken(userID string) (string, *Claims, error)
	GenerateRefreshToken(userID string) (string, *Claims, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

// Blacklist records revoked token ids until the token would have expired
// anyway.
type Blacklist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type AuthTokens struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Claims carries the user id only; roles are always loaded from the store.
// RegisteredClaims.ID is the token id used for revocation.
type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// remaining is how long the token stays valid after now.
func (c *Claims) remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}
