package domain

import "time"

// RefreshToken models the stored refresh token record.
//
// Lifecycle is one-way: created on login or refresh, mutated only by
// revocation, never deleted while it could still influence a validation
// outcome. A revoked token stays revoked.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string // high-entropy opaque value, unique across all tokens
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Expired reports whether the token's TTL has elapsed at the given instant.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Revoked reports whether the token has been explicitly revoked.
func (t RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Usable reports whether the token may still be exchanged: neither expired
// nor revoked.
func (t RefreshToken) Usable(now time.Time) bool {
	return !t.Expired(now) && !t.Revoked()
}

// TokenPair is what login and refresh return: a short-lived signed access
// token and a long-lived opaque refresh token, each with its expiry.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessTokenExpiresUtc"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshTokenExpiresUtc"`
}
