package postgres

import (
	"context"
	"errors"

	"userhub/internal/domain/user"
	"userhub/internal/observability"
	"userhub/internal/repo"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveStore(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Init(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	display_name TEXT NOT NULL,
	age INTEGER,
	gender TEXT,
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	profile_photo TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`)

	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	return r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx, `
INSERT INTO users (username, password_hash, display_name, age, gender, is_admin, profile_photo, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			u.Username, u.PasswordHash, u.DisplayName, u.Age, u.Gender, u.IsAdmin, u.ProfilePhoto, u.CreatedAt, u.UpdatedAt,
		)

		if err != nil {
			if isUniqueViolation(err) {
				return repo.ErrUsernameTaken
			}

			return err
		}

		return nil
	})
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User

	err := r.observe("users.get", func() error {
		err := r.pool.QueryRow(ctx, `
SELECT username, password_hash, display_name, age, gender, is_admin, profile_photo, created_at, updated_at
FROM users
WHERE username = $1`,
			username,
		).Scan(
			&u.Username,
			&u.PasswordHash,
			&u.DisplayName,
			&u.Age,
			&u.Gender,
			&u.IsAdmin,
			&u.ProfilePhoto,
			&u.CreatedAt,
			&u.UpdatedAt,
		)

		if errors.Is(err, pgx.ErrNoRows) {
			return repo.ErrUserNotFound
		}

		return err
	})

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	users := []user.User{}

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, `
SELECT username, password_hash, display_name, age, gender, is_admin, profile_photo, created_at, updated_at
FROM users
ORDER BY created_at`,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var u user.User

			err := rows.Scan(
				&u.Username,
				&u.PasswordHash,
				&u.DisplayName,
				&u.Age,
				&u.Gender,
				&u.IsAdmin,
				&u.ProfilePhoto,
				&u.CreatedAt,
				&u.UpdatedAt,
			)

			if err != nil {
				return err
			}

			users = append(users, u)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *UsersRepo) Update(ctx context.Context, u user.User) error {
	return r.observe("users.update", func() error {
		tag, err := r.pool.Exec(ctx, `
UPDATE users
SET password_hash = $1, display_name = $2, age = $3, gender = $4, is_admin = $5, profile_photo = $6, updated_at = $7
WHERE username = $8`,
			u.PasswordHash, u.DisplayName, u.Age, u.Gender, u.IsAdmin, u.ProfilePhoto, u.UpdatedAt, u.Username,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return repo.ErrUserNotFound
		}

		return nil
	})
}

func (r *UsersRepo) Delete(ctx context.Context, username string) error {
	return r.observe("users.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return repo.ErrUserNotFound
		}

		return nil
	})
}
