package repo

import (
	"context"
	"errors"

	"userhub/internal/domain/user"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
)

// UserStore is the persistence contract shared by all backends. Usernames
// are the primary key; Create fails with ErrUsernameTaken on collision and
// Update/Delete with ErrUserNotFound when the record is gone.
type UserStore interface {
	Create(ctx context.Context, u user.User) error
	GetByUsername(ctx context.Context, username string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Update(ctx context.Context, u user.User) error
	Delete(ctx context.Context, username string) error
}
