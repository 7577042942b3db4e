package jwtx

import "errors"

var (
	// ErrSecretTooShort means the symmetric signing key is below the minimum
	// entropy length. Signing must fail closed rather than mint weak tokens.
	ErrSecretTooShort = errors.New("jwtx: signing secret below minimum length")

	// ErrBadRoleClaimType means the configured role claim type is empty or
	// collides with a registered JWT claim name.
	ErrBadRoleClaimType = errors.New("jwtx: invalid role claim type")

	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrSignature   = errors.New("jwtx: signature verification failed")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
)
