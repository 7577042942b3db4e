package sqlite

import (
	"context"
	"strings"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/pkg/idx"
)

type roleClaimsRepo struct {
	q querier
}

func (r *roleClaimsRepo) ReplaceRole(ctx context.Context, userID string, role domain.Role) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM role_claims WHERE user_id = ? AND claim_type = ?`,
		userID, domain.DefaultRoleClaimType); err != nil {
		return err
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO role_claims (id, user_id, claim_type, claim_value)
		VALUES (?, ?, ?, ?)`,
		idx.New().String(), userID, domain.DefaultRoleClaimType, string(role))
	return err
}

func (r *roleClaimsRepo) GetRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT DISTINCT claim_value FROM role_claims
		WHERE user_id = ? AND claim_type = ?
		ORDER BY claim_value`,
		userID, domain.DefaultRoleClaimType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		roles = append(roles, v)
	}
	return roles, rows.Err()
}

func (r *roleClaimsRepo) GetRolesBulk(ctx context.Context, userIDs []string) (map[string][]string, error) {
	// Every requested id gets a key, even with no role rows.
	out := make(map[string][]string, len(userIDs))
	for _, id := range userIDs {
		out[id] = []string{}
	}
	if len(userIDs) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(userIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(userIDs)+1)
	for _, id := range userIDs {
		args = append(args, id)
	}
	args = append(args, domain.DefaultRoleClaimType)

	rows, err := r.q.QueryContext(ctx, `
		SELECT DISTINCT user_id, claim_value FROM role_claims
		WHERE user_id IN (`+placeholders+`) AND claim_type = ?
		ORDER BY user_id, claim_value`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var userID, value string
		if err := rows.Scan(&userID, &value); err != nil {
			return nil, err
		}
		out[userID] = append(out[userID], value)
	}
	return out, rows.Err()
}
