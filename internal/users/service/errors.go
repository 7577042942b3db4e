package service

import "errors"

// Service-level sentinels. HTTP handlers map these onto status codes; the
// store's own sentinels never leak past this package.
var (
	// ErrValidation marks a rejected input. Wrap it with the field detail.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lookup of an entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation (duplicate email).
	ErrConflict = errors.New("already exists")

	// ErrInvalidCredentials is the single answer to every failed login.
	// Wrong password, unknown email, deleted or unconfirmed account all
	// collapse here so the response never enumerates accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrRefreshTokenInvalid is the single answer to presenting a refresh
	// token that is missing, expired, revoked, or lost a rotation race.
	ErrRefreshTokenInvalid = errors.New("refresh token is not valid")
)
