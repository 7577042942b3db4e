package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/identity"
	"github.com/opsarea/userd/internal/users/store"
	"github.com/opsarea/userd/pkg/slogx"
)

// AuthService implements the session lifecycle: login, refresh, logout.
type AuthService struct {
	store    store.Store
	identity *identity.Identity
	tokens   *TokenService
}

func NewAuthService(s store.Store, id *identity.Identity, tokens *TokenService) *AuthService {
	return &AuthService{store: s, identity: id, tokens: tokens}
}

// Login verifies the credentials and establishes a session: one signed
// access token plus one stored refresh token. Every failure mode answers
// with ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.TokenPair, error) {
	u, err := s.identity.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrBadCredentials) {
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.TokenPair{}, err
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return domain.TokenPair{}, err
	}

	slogx.FromContext(ctx).Info("user logged in", "user_id", u.ID)
	return pair, nil
}

// Refresh exchanges a usable refresh token for a new pair. The presented
// token is revoked and replaced in one transaction; a token that is missing,
// expired, revoked, or loses a concurrent rotation gets ErrRefreshTokenInvalid.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	fresh, err := s.tokens.RotateRefreshToken(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	u, err := s.store.Users().GetUserByID(ctx, fresh.UserID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("load user for refresh: %w", err)
	}
	if u.IsDeleted {
		// The account went away while the token was live; kill the
		// replacement too.
		if _, revErr := s.tokens.RevokeRefreshToken(ctx, fresh.Token); revErr != nil {
			slogx.FromContext(ctx).Error("failed to revoke orphaned refresh token",
				"user_id", u.ID, "error", revErr)
		}
		return domain.TokenPair{}, ErrRefreshTokenInvalid
	}

	access, accessExpires, err := s.tokens.CreateAccessToken(ctx, u)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     fresh.Token,
		RefreshExpiresAt: fresh.ExpiresAt,
	}, nil
}

// Logout revokes the presented refresh token. Idempotent: revoking a token
// that is absent or already revoked succeeds quietly.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	exists, err := s.tokens.RevokeRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if exists {
		slogx.FromContext(ctx).Info("refresh token revoked")
	}
	return nil
}

// LogoutAll revokes every live session the user has and reports how many
// tokens were revoked.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slogx.FromContext(ctx).Info("all sessions revoked", "user_id", userID, "count", n)
	}
	return n, nil
}

func (s *AuthService) issuePair(ctx context.Context, u domain.User) (domain.TokenPair, error) {
	access, accessExpires, err := s.tokens.CreateAccessToken(ctx, u)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := s.tokens.CreateAndStoreRefreshToken(ctx, u.ID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}
