package sqlite

import (
	"context"
	"time"

	"github.com/opsarea/userd/internal/users/domain"
)

type refreshTokensRepo struct {
	q querier
}

const refreshTokenColumns = `id, user_id, token, created_at, expires_at, revoked_at`

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, created_at, expires_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Token, t.CreatedAt, t.ExpiresAt, mapOptionalTime(t.RevokedAt))
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByValue(ctx context.Context, token string) (domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token = ?`, token)
	t, err := scanRefreshToken(row.Scan)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

// RevokeRefreshToken marks a single token revoked. The revoked_at IS NULL
// guard makes concurrent rotations race safely: exactly one caller sees
// rows=1, everyone else sees rows=0.
func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, token string, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = ?,
		    expires_at = CASE WHEN expires_at > ? THEN ? ELSE expires_at END
		WHERE token = ? AND revoked_at IS NULL`,
		now, now, now, token)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = ?,
		    expires_at = CASE WHEN expires_at > ? THEN ? ELSE expires_at END
		WHERE user_id = ? AND revoked_at IS NULL`,
		now, now, now, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) ListByUser(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+refreshTokenColumns+` FROM refresh_tokens
		WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows.Scan)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *refreshTokensRepo) DeleteDefunct(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
