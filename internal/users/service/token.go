package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/store"
	"github.com/opsarea/userd/pkg/cryptox"
	"github.com/opsarea/userd/pkg/idx"
	"github.com/opsarea/userd/pkg/jwtx"
)

// createRetries bounds how often refresh-token creation retries on a value
// collision. With 512-bit values a single retry is already astronomically
// unlikely.
const createRetries = 3

// TokenService mints access tokens and owns the refresh-token lifecycle:
// creation, validation, rotation, revocation.
type TokenService struct {
	store  store.Store
	codec  *jwtx.Codec
	claims *ClaimsFactory

	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func NewTokenService(s store.Store, codec *jwtx.Codec, claims *ClaimsFactory,
	accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = jwtx.DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = jwtx.DefaultRefreshTokenTTL
	}
	return &TokenService{
		store:      s,
		codec:      codec,
		claims:     claims,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccessToken mints a signed access token for the user, including a
// unique token id claim.
func (s *TokenService) CreateAccessToken(ctx context.Context, u domain.User) (string, time.Time, error) {
	claims, err := s.claims.ForUser(ctx, u, true)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.codec.Sign(claims, s.now(), s.accessTTL)
}

// CreateAndStoreRefreshToken generates a fresh opaque refresh token and
// persists it. A stored-value collision triggers regeneration with a new
// random value.
func (s *TokenService) CreateAndStoreRefreshToken(ctx context.Context, userID string) (domain.RefreshToken, error) {
	return s.createRefreshToken(ctx, s.store, userID)
}

func (s *TokenService) createRefreshToken(ctx context.Context, st store.Store, userID string) (domain.RefreshToken, error) {
	now := s.now()

	var lastErr error
	for range createRetries {
		value, err := cryptox.GenerateToken(cryptox.TokenSize512)
		if err != nil {
			return domain.RefreshToken{}, err
		}

		rt := domain.RefreshToken{
			ID:        idx.New().String(),
			UserID:    userID,
			Token:     value,
			CreatedAt: now,
			ExpiresAt: now.Add(s.refreshTTL),
		}

		err = st.RefreshTokens().CreateRefreshToken(ctx, rt)
		if err == nil {
			return rt, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return domain.RefreshToken{}, err
		}
		lastErr = err
	}

	return domain.RefreshToken{}, fmt.Errorf("refresh token collision persisted after %d attempts: %w",
		createRetries, lastErr)
}

// ValidateRefreshToken resolves an opaque value to a usable token record.
// Missing, expired and revoked tokens all come back as (nil, nil): callers
// get one uniform "no usable token" answer with no reason to leak.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, value string) (*domain.RefreshToken, error) {
	rt, err := s.store.RefreshTokens().GetRefreshTokenByValue(ctx, value)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !rt.Usable(s.now()) {
		return nil, nil
	}
	return &rt, nil
}

// RevokeRefreshToken revokes one token and reports whether a record for the
// value exists. Revoking an already-revoked token is a no-op that still
// reports true; only an unknown value reports false.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, value string) (bool, error) {
	n, err := s.store.RefreshTokens().RevokeRefreshToken(ctx, value, s.now())
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	_, err = s.store.RefreshTokens().GetRefreshTokenByValue(ctx, value)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RotateRefreshToken atomically revokes the presented token and issues its
// replacement. When two rotations race on the same value, the conditional
// revoke lets exactly one proceed; the loser fails closed with
// ErrRefreshTokenInvalid and no new token.
func (s *TokenService) RotateRefreshToken(ctx context.Context, value string) (domain.RefreshToken, error) {
	var fresh domain.RefreshToken

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		old, err := tx.RefreshTokens().GetRefreshTokenByValue(ctx, value)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRefreshTokenInvalid
			}
			return err
		}
		if !old.Usable(s.now()) {
			return ErrRefreshTokenInvalid
		}

		n, err := tx.RefreshTokens().RevokeRefreshToken(ctx, value, s.now())
		if err != nil {
			return err
		}
		if n == 0 {
			// Someone revoked it between the read and the update. Lose
			// the race, issue nothing.
			return ErrRefreshTokenInvalid
		}

		fresh, err = s.createRefreshToken(ctx, tx, old.UserID)
		return err
	})
	if err != nil {
		return domain.RefreshToken{}, err
	}
	return fresh, nil
}

// RevokeAllForUser revokes every live token the user owns in one statement
// and reports how many were revoked. Safe to repeat.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.store.RefreshTokens().RevokeAllForUser(ctx, userID, s.now())
}

// ListForUser returns the user's refresh tokens, newest first, including
// revoked and expired ones.
func (s *TokenService) ListForUser(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	return s.store.RefreshTokens().ListByUser(ctx, userID)
}

// AccessTokenTTL exposes the configured access-token lifetime.
func (s *TokenService) AccessTokenTTL() time.Duration { return s.accessTTL }
