package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/domain/users"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	conn
}

const selectUser = `
SELECT id, name, email, password_hash, created_at, updated_at
  FROM users
`

func scanUser(row pgx.Row) (users.User, error) {
	var u users.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (out *users.User, err error) {
	defer observe("insert_user", time.Now(), &err)

	u, err := scanUser(r.queryer().QueryRow(ctx, `
INSERT INTO users (name, email, password_hash)
VALUES ($1, $2, $3)
RETURNING id, name, email, password_hash, created_at, updated_at
`, params.Name, params.Email, params.PasswordHash))
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, errs.Conflict("User with this email already exists")
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (out *users.User, err error) {
	defer observe("select_user", time.Now(), &err)

	u, err := scanUser(r.queryer().QueryRow(ctx, selectUser+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("User", id)
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (out *users.User, err error) {
	defer observe("select_user_by_email", time.Now(), &err)

	u, err := scanUser(r.queryer().QueryRow(ctx, selectUser+` WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &errs.Error{Kind: errs.KindNotFound, Entity: "User", Message: "User not found"}
		}
		return nil, fmt.Errorf("select user by email: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) (out []users.User, err error) {
	defer observe("select_users", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, selectUser+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	out = make([]users.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// Delete removes the user; owned lists and their items cascade. Activity
// rows keep the user id.
func (r *UserRepository) Delete(ctx context.Context, id int64) (err error) {
	defer observe("delete_user", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("User", id)
	}
	return nil
}
