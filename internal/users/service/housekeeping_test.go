package service

import (
	"context"
	"testing"
	"time"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/pkg/cryptox"
	"github.com/opsarea/userd/pkg/idx"

	"github.com/stretchr/testify/require"
)

func TestHousekeepingSweepsDefunctTokens(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := newConfirmedUser(t, e, "alice@example.com", "correct horse", domain.RoleUser)

	// A token long past retention and a live one.
	ancient := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		Token:     cryptox.MustGenerateToken(cryptox.TokenSize512),
		CreatedAt: time.Now().UTC().Add(-60 * 24 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-53 * 24 * time.Hour),
	}
	require.NoError(t, e.store.RefreshTokens().CreateRefreshToken(ctx, ancient))

	live, err := e.tokens.CreateAndStoreRefreshToken(ctx, u.ID)
	require.NoError(t, err)

	h := NewHousekeepingService(e.store, time.Minute)
	h.Start(ctx)
	defer h.Stop()

	// The startup sweep removes the defunct token shortly after Start.
	require.Eventually(t, func() bool {
		_, err := e.store.RefreshTokens().GetRefreshTokenByValue(ctx, ancient.Token)
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)

	got, err := e.tokens.ValidateRefreshToken(ctx, live.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
}
