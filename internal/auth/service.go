package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"golang.org/x/crypto/bcrypt"
)

// Service is the main auth service with dependencies
type Service struct {
	creds     CredentialRepository
	tokens    TokenGenerator
	blacklist Blacklist
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(creds CredentialRepository, tokens TokenGenerator, blacklist Blacklist, logger *slog.Logger) *Service {
	return &Service{
		creds:     creds,
		tokens:    tokens,
		blacklist: blacklist,
		logger:    logger,
		now:       time.Now,
	}
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	creds, err := s.creds.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(dto.Email)))
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return AuthTokens{}, errors.ErrInvalidCredentials
		}
		s.logger.Error("failed to load credentials", "error", err)
		return AuthTokens{}, errors.NewStoreUnavailableError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(dto.Password)); err != nil {
		return AuthTokens{}, errors.ErrInvalidCredentials
	}
	if !creds.IsActive {
		return AuthTokens{}, errors.ErrUserInactive
	}

	s.logger.Info("user logged in", "user_id", creds.UserID)
	return s.issue(creds.UserID)
}

// RefreshTokens exchanges a refresh token for a new pair. The old refresh
// token is revoked so it cannot be replayed.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return AuthTokens{}, err
	}

	creds, err := s.creds.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return AuthTokens{}, errors.ErrInvalidToken
		}
		return AuthTokens{}, errors.NewStoreUnavailableError(err)
	}
	if !creds.IsActive {
		return AuthTokens{}, errors.ErrUserInactive
	}

	if err := s.revoke(ctx, claims); err != nil {
		return AuthTokens{}, err
	}
	return s.issue(creds.UserID)
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.tokens.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Logout revokes the access token and, when given, its refresh token.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		return err
	}
	if err := s.revoke(ctx, claims); err != nil {
		return err
	}

	if refreshToken != "" {
		refresh, err := s.tokens.ValidateRefreshToken(refreshToken)
		if err == nil && refresh.UserID == claims.UserID {
			if err := s.revoke(ctx, refresh); err != nil {
				return err
			}
		}
	}

	s.logger.Info("user logged out", "user_id", claims.UserID, "token_id", claims.ID)
	return nil
}

func (s *Service) issue(userID string) (AuthTokens, error) {
	access, accessClaims, err := s.tokens.GenerateAccessToken(userID)
	if err != nil {
		return AuthTokens{}, errors.NewInternalError("failed to issue token", err)
	}
	refresh, refreshClaims, err := s.tokens.GenerateRefreshToken(userID)
	if err != nil {
		return AuthTokens{}, errors.NewInternalError("failed to issue token", err)
	}
	return AuthTokens{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

func (s *Service) checkRevoked(ctx context.Context, claims *Claims) error {
	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("failed to check token blacklist", "error", err, "token_id", claims.ID)
		return errors.NewStoreUnavailableError(err)
	}
	if revoked {
		return errors.ErrTokenRevoked
	}
	return nil
}

func (s *Service) revoke(ctx context.Context, claims *Claims) error {
	if err := s.blacklist.Revoke(ctx, claims.ID, claims.remaining(s.now())); err != nil {
		s.logger.Error("failed to revoke token", "error", err, "token_id", claims.ID)
		return errors.NewStoreUnavailableError(err)
	}
	return nil
}
