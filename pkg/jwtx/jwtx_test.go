package jwtx

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef") // 32 bytes

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, "userd-test", "userd-clients", "role")
	require.NoError(t, err)
	return c
}

func TestNewCodecFailsClosed(t *testing.T) {
	t.Parallel()

	t.Run("short secret", func(t *testing.T) {
		_, err := NewCodec([]byte("too-short"), "iss", "aud", "role")
		require.ErrorIs(t, err, ErrSecretTooShort)
	})

	t.Run("empty role claim type", func(t *testing.T) {
		_, err := NewCodec(testSecret, "iss", "aud", "")
		require.ErrorIs(t, err, ErrBadRoleClaimType)
	})

	t.Run("role claim type shadowing a registered claim", func(t *testing.T) {
		for _, reserved := range []string{"sub", "exp", "aud", "jti", "email"} {
			_, err := NewCodec(testSecret, "iss", "aud", reserved)
			require.ErrorIs(t, err, ErrBadRoleClaimType, reserved)
		}
	})
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	now := time.Now().UTC().Truncate(time.Second)
	token, expires, err := c.Sign([]Claim{
		{Type: ClaimSubject, Value: "user-1"},
		{Type: ClaimName, Value: "alice@example.com"},
		{Type: ClaimEmail, Value: "alice@example.com"},
		{Type: ClaimTokenID, Value: "jti-1"},
		{Type: "role", Value: "Admin"},
	}, now, time.Hour)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), expires)
	require.Len(t, strings.Split(token, "."), 3)

	claims, err := c.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, "jti-1", claims.TokenID)
	require.Equal(t, []string{"Admin"}, claims.Roles)
	require.Equal(t, "userd-test", claims.Issuer)
	require.WithinDuration(t, expires, claims.ExpiresAt, time.Second)
}

func TestSignCollapsesRepeatedClaimTypesIntoArray(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	token, _, err := c.Sign([]Claim{
		{Type: ClaimSubject, Value: "user-1"},
		{Type: "role", Value: "Admin"},
		{Type: "role", Value: "SuperAdmin"},
	}, time.Now(), time.Hour)
	require.NoError(t, err)

	claims, err := c.Verify(token)
	require.NoError(t, err)
	require.Equal(t, []string{"Admin", "SuperAdmin"}, claims.Roles)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	token, _, err := c.Sign([]Claim{{Type: ClaimSubject, Value: "user-1"}},
		time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	_, err = c.Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	other, err := NewCodec([]byte("ffffffffffffffffffffffffffffffff"), "userd-test", "userd-clients", "role")
	require.NoError(t, err)

	token, _, err := other.Sign([]Claim{{Type: ClaimSubject, Value: "user-1"}}, time.Now(), time.Hour)
	require.NoError(t, err)

	_, err = c.Verify(token)
	require.ErrorIs(t, err, ErrSignature)
}

func TestVerifyRejectsWrongIssuerAndAudience(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	foreign, err := NewCodec(testSecret, "someone-else", "userd-clients", "role")
	require.NoError(t, err)
	token, _, err := foreign.Sign([]Claim{{Type: ClaimSubject, Value: "u"}}, time.Now(), time.Hour)
	require.NoError(t, err)
	_, err = c.Verify(token)
	require.ErrorIs(t, err, ErrIssuer)

	foreign, err = NewCodec(testSecret, "userd-test", "other-audience", "role")
	require.NoError(t, err)
	token, _, err = foreign.Sign([]Claim{{Type: ClaimSubject, Value: "u"}}, time.Now(), time.Hour)
	require.NoError(t, err)
	_, err = c.Verify(token)
	require.ErrorIs(t, err, ErrAudience)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	_, err := c.Verify("definitely.not.a-jwt")
	require.ErrorIs(t, err, ErrMalformed)
}
