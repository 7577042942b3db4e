package store

import (
	"context"
	"errors"
	"time"

	"github.com/opsarea/userd/internal/users/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Sub-repositories keep concerns tidy and testable.
type Store interface {
	Users() Users
	RoleClaims() RoleClaims
	RefreshTokens() RefreshTokens
	ChangeAudits() ChangeAudits

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to run multi-step operations that must be atomic
	// (role replacement, refresh rotation).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUser mutates profile fields (user_name, first/last name, email)
	// and bumps updated_at.
	UpdateUser(ctx context.Context, u domain.User) error

	// SoftDeleteUser flips is_deleted. The row stays; refresh tokens and
	// claims survive for audit but the user can no longer log in.
	SoftDeleteUser(ctx context.Context, id string) error

	// ListUsers returns all users ordered by creation (oldest first),
	// including soft-deleted ones.
	ListUsers(ctx context.Context) ([]domain.User, error)

	// SetEmailConfirmationTokenHash stores the fingerprint of the pending
	// email-confirmation token.
	SetEmailConfirmationTokenHash(ctx context.Context, userID, tokenHash string) error

	// ConfirmEmail marks the email confirmed when tokenHash matches the
	// stored pending fingerprint; reports whether it matched.
	ConfirmEmail(ctx context.Context, userID, tokenHash string) (bool, error)
}

type RoleClaims interface {
	// ReplaceRole removes every role claim for userID and inserts exactly
	// one (userID, role) claim. Run inside WithTx so readers never observe
	// zero or two roles mid-update.
	ReplaceRole(ctx context.Context, userID string, role domain.Role) error

	// GetRoles returns the de-duplicated role values for one user.
	// Expected cardinality 0 or 1; a set tolerates historical inconsistency.
	GetRoles(ctx context.Context, userID string) ([]string, error)

	// GetRolesBulk is the batched form. Every requested id appears as a
	// key, mapping to an empty slice when the user has no role claim.
	GetRolesBulk(ctx context.Context, userIDs []string) (map[string][]string, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record. Returns
	// ErrAlreadyExists when the opaque value collides with an existing row;
	// the service layer retries with a fresh value.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByValue returns the record for an opaque token value.
	GetRefreshTokenByValue(ctx context.Context, token string) (domain.RefreshToken, error)

	// RevokeRefreshToken sets revoked_at=now and clamps expires_at to now
	// when it is still in the future, guarded by revoked_at IS NULL.
	// Returns the number of rows updated: 0 means the token was absent or
	// already revoked, which rotation treats as losing the race.
	RevokeRefreshToken(ctx context.Context, token string, now time.Time) (int64, error)

	// RevokeAllForUser bulk-revokes every non-revoked token owned by the
	// user in a single statement, so logout-all is atomic and idempotent.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)

	// ListByUser returns every token owned by the user, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.RefreshToken, error)

	// DeleteDefunct removes tokens that are both expired and past their
	// expiry by the given retention window. Housekeeping only; a token is
	// never deleted while it could still change a validation outcome.
	DeleteDefunct(ctx context.Context, cutoff time.Time) (int64, error)
}

type ChangeAudits interface {
	// InsertChangeAudit appends one data-change audit row.
	InsertChangeAudit(ctx context.Context, ev domain.AuditEvent) error
}
