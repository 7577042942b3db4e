// Package identity owns credential handling: password verification on login
// and the email-confirmation token exchange. Services above it never see a
// password hash or a raw confirmation token fingerprint.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/store"
	"github.com/opsarea/userd/pkg/cryptox"
)

// ErrBadCredentials covers every authentication failure: unknown email,
// wrong password, deleted account, unconfirmed email. Collapsing them here
// keeps login responses uniform and unenumerable.
var ErrBadCredentials = errors.New("identity: bad credentials")

type Identity struct {
	store store.Store
}

func New(s store.Store) *Identity {
	return &Identity{store: s}
}

// Authenticate verifies an email/password pair and returns the user on
// success. All failure modes map to ErrBadCredentials.
func (i *Identity) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	u, err := i.store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a hash comparison anyway so unknown emails cost the
			// same as wrong passwords.
			_ = cryptox.VerifyPassword(password, dummyHash())
			return domain.User{}, ErrBadCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.User{}, ErrBadCredentials
		}
		return domain.User{}, err
	}

	if u.IsDeleted || !u.EmailConfirmed {
		return domain.User{}, ErrBadCredentials
	}

	return u, nil
}

// HashPassword produces the stored representation of a new password.
func (i *Identity) HashPassword(password string) (string, error) {
	return cryptox.HashPassword(password)
}

// BeginEmailConfirmation issues a fresh confirmation token for the user and
// stores only its fingerprint. The raw token goes out via email; it is never
// persisted.
func (i *Identity) BeginEmailConfirmation(ctx context.Context, userID string) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	if err := i.store.Users().SetEmailConfirmationTokenHash(ctx, userID, fingerprint(token)); err != nil {
		return "", err
	}
	return token, nil
}

// ConfirmEmail redeems a confirmation token. Reports false when the token
// does not match the pending fingerprint (including when none is pending).
func (i *Identity) ConfirmEmail(ctx context.Context, userID, token string) (bool, error) {
	return i.store.Users().ConfirmEmail(ctx, userID, fingerprint(token))
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var (
	dummyOnce sync.Once
	dummyVal  string
)

// dummyHash lazily builds a valid Argon2id hash of an unguessable throwaway
// value, used to equalize timing when the email is unknown. Lazy because
// hashing needs the pepper, which is configured after package init.
func dummyHash() string {
	dummyOnce.Do(func() {
		h, err := cryptox.HashPassword(cryptox.MustGenerateToken(cryptox.TokenSize256))
		if err != nil {
			panic(err)
		}
		dummyVal = h
	})
	return dummyVal
}
