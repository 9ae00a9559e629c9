package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"userhub/internal/domain/user"
	"userhub/internal/observability"
	"userhub/internal/repo"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	display_name TEXT NOT NULL,
	age INTEGER,
	gender TEXT,
	is_admin INTEGER NOT NULL DEFAULT 0,
	profile_photo TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type UsersRepo struct {
	db   *sql.DB
	prom *observability.Prom
}

func NewUsersRepo(db *sql.DB, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveStore(op, fn)
	}
	return fn()
}

func (r *UsersRepo) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	return r.observe("users.create", func() error {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, password_hash, display_name, age, gender, is_admin, profile_photo, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.Username,
			u.PasswordHash,
			u.DisplayName,
			nullInt(u.Age),
			nullString(u.Gender),
			u.IsAdmin,
			nullString(u.ProfilePhoto),
			u.CreatedAt,
			u.UpdatedAt,
		)

		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique") {
				return repo.ErrUsernameTaken
			}

			return fmt.Errorf("insert user: %w", err)
		}

		return nil
	})
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	var err error

	oerr := r.observe("users.get", func() error {
		row := r.db.QueryRowContext(ctx, `
SELECT username, password_hash, display_name, age, gender, is_admin, profile_photo, created_at, updated_at
FROM users
WHERE username = ?`,
			username,
		)

		u, err = scanUser(row)

		return err
	})

	if oerr != nil {
		return user.User{}, oerr
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	var users []user.User

	err := r.observe("users.list", func() error {
		rows, err := r.db.QueryContext(ctx, `
SELECT username, password_hash, display_name, age, gender, is_admin, profile_photo, created_at, updated_at
FROM users
ORDER BY created_at`,
		)

		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)

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

	if users == nil {
		users = []user.User{}
	}

	return users, nil
}

func (r *UsersRepo) Update(ctx context.Context, u user.User) error {
	return r.observe("users.update", func() error {
		res, err := r.db.ExecContext(ctx, `
UPDATE users
SET password_hash = ?, display_name = ?, age = ?, gender = ?, is_admin = ?, profile_photo = ?, updated_at = ?
WHERE username = ?`,
			u.PasswordHash,
			u.DisplayName,
			nullInt(u.Age),
			nullString(u.Gender),
			u.IsAdmin,
			nullString(u.ProfilePhoto),
			u.UpdatedAt,
			u.Username,
		)

		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		n, err := res.RowsAffected()

		if err != nil {
			return fmt.Errorf("update user rows affected: %w", err)
		}

		if n == 0 {
			return repo.ErrUserNotFound
		}

		return nil
	})
}

func (r *UsersRepo) Delete(ctx context.Context, username string) error {
	return r.observe("users.delete", func() error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)

		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}

		n, err := res.RowsAffected()

		if err != nil {
			return fmt.Errorf("delete user rows affected: %w", err)
		}

		if n == 0 {
			return repo.ErrUserNotFound
		}

		return nil
	})
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (user.User, error) {
	var u user.User
	var age sql.NullInt64
	var gender, photo sql.NullString

	err := row.Scan(
		&u.Username,
		&u.PasswordHash,
		&u.DisplayName,
		&age,
		&gender,
		&u.IsAdmin,
		&photo,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, repo.ErrUserNotFound
		}

		return user.User{}, fmt.Errorf("scan user: %w", err)
	}

	if age.Valid {
		v := int(age.Int64)
		u.Age = &v
	}

	if gender.Valid {
		u.Gender = &gender.String
	}

	if photo.Valid {
		u.ProfilePhoto = &photo.String
	}

	return u, nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
