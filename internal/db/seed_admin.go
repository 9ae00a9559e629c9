package db

import (
	"context"
	"errors"
	"time"

	"userhub/internal/config"
	"userhub/internal/domain/user"
	"userhub/internal/repo"
	"userhub/internal/security"
)

// EnsureAdminUser creates the configured admin account if it does not exist
// yet. A blank ADMIN_USERNAME/ADMIN_PASSWORD disables seeding.
func EnsureAdminUser(ctx context.Context, store repo.UserStore, cfg config.Config) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}

	_, err := store.GetByUsername(ctx, cfg.AdminUsername)

	if err == nil {
		return nil
	}

	if !errors.Is(err, repo.ErrUserNotFound) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	now := time.Now().UTC()

	admin := user.User{
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		DisplayName:  cfg.AdminUsername,
		IsAdmin:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = store.Create(ctx, admin)

	if errors.Is(err, repo.ErrUsernameTaken) {
		return nil
	}

	return err
}
