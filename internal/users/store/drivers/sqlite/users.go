package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/store"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, email, user_name, first_name, last_name,
	password_hash, email_confirmed, is_deleted, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row.Scan)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row.Scan)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, email, user_name, first_name, last_name,
			password_hash, email_confirmed, is_deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.UserName, u.FirstName, u.LastName,
		u.PasswordHash, u.EmailConfirmed, u.IsDeleted, u.CreatedAt, u.UpdatedAt)
	return mapConstraint(err)
}

func (r *usersRepo) UpdateUser(ctx context.Context, u domain.User) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET email = ?, user_name = ?, first_name = ?, last_name = ?, updated_at = ?
		WHERE id = ?`,
		u.Email, u.UserName, u.FirstName, u.LastName, time.Now().UTC(), u.ID)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRow(res)
}

func (r *usersRepo) SoftDeleteUser(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET is_deleted = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) SetEmailConfirmationTokenHash(ctx context.Context, userID, tokenHash string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET email_confirmation_token_hash = ?, updated_at = ? WHERE id = ?`,
		tokenHash, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) ConfirmEmail(ctx context.Context, userID, tokenHash string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET email_confirmed = 1, email_confirmation_token_hash = NULL, updated_at = ?
		WHERE id = ? AND email_confirmation_token_hash = ?`,
		time.Now().UTC(), userID, tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
