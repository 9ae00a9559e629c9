package handlers

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"userhub/internal/avatar"
	"userhub/internal/config"
	"userhub/internal/domain/user"
	"userhub/internal/http/middlewares"
	"userhub/internal/repo"
	"userhub/internal/security"

	"github.com/gin-gonic/gin"
)

// UserStore is the persistence surface the user handlers need.
type UserStore interface {
	Create(ctx context.Context, u user.User) error
	GetByUsername(ctx context.Context, username string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Update(ctx context.Context, u user.User) error
	Delete(ctx context.Context, username string) error
}

type UsersHandler struct {
	store   UserStore
	avatars *avatar.Manager
}

func NewUsersHandler(store UserStore, avatars *avatar.Manager) *UsersHandler {
	return &UsersHandler{store: store, avatars: avatars}
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.store.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, user.SanitizeAll(users))
}

func (h *UsersHandler) Stats(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.store.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not compute stats")
		return
	}

	ctx.JSON(http.StatusOK, user.ComputeStats(users, time.Now().UTC()))
}

// GetUser returns the target loaded by the guard chain.
func (h *UsersHandler) GetUser(ctx *gin.Context) {
	target, ok := middlewares.TargetFromContext(ctx)

	if !ok {
		RespondNotFound(ctx, "User not found")
		return
	}

	ctx.JSON(http.StatusOK, target.Sanitized())
}

func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSONStrict(ctx, &req) {
		return
	}

	if req.Gender != nil && !user.ValidGender(*req.Gender) {
		RespondBadRequest(ctx, "Gender must be male, female, or other", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	_, err := h.store.GetByUsername(cctx, req.Username)

	if err == nil {
		h.respondUsernameTaken(ctx, cctx, req.Username)
		return
	}

	if !errors.Is(err, repo.ErrUserNotFound) {
		RespondInternal(ctx, "Could not create user")
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	newUser := user.New(req, hash)

	if err := newUser.Validate(); err != nil {
		RespondBadRequest(ctx, err.Error(), nil)
		return
	}

	if err := h.store.Create(cctx, newUser); err != nil {
		if errors.Is(err, repo.ErrUsernameTaken) {
			// lost a race with a concurrent signup
			h.respondUsernameTaken(ctx, cctx, req.Username)
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, newUser.Sanitized())
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	target, ok := middlewares.TargetFromContext(ctx)

	if !ok {
		RespondNotFound(ctx, "User not found")
		return
	}

	var patch user.UpdateUserRequest

	if !BindJSONStrict(ctx, &patch) {
		return
	}

	if patch.Gender != nil && !user.ValidGender(*patch.Gender) {
		RespondBadRequest(ctx, "Gender must be male, female, or other", nil)
		return
	}

	newHash := ""

	if patch.Password != nil {
		hash, err := security.HashPassword(*patch.Password)

		if err != nil {
			RespondInternal(ctx, "Could not update user")
			return
		}

		newHash = hash
	}

	updated := user.Merge(target, patch, newHash)

	if err := updated.Validate(); err != nil {
		RespondBadRequest(ctx, err.Error(), nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.Update(cctx, updated); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not update user")
		return
	}

	ctx.JSON(http.StatusOK, updated.Sanitized())
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	target, ok := middlewares.TargetFromContext(ctx)

	if !ok {
		RespondNotFound(ctx, "User not found")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.Delete(cctx, target.Username); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not delete user")
		return
	}

	// best effort: the record is gone either way
	if target.ProfilePhoto != nil {
		_ = h.avatars.DeleteIfExists(*target.ProfilePhoto)
	}

	ctx.Status(http.StatusNoContent)
}

func (h *UsersHandler) respondUsernameTaken(ctx *gin.Context, cctx context.Context, username string) {
	RespondConflict(ctx, "username_taken", "Username already exists", gin.H{
		"suggestions": h.suggestUsernames(cctx, username),
	})
}

// suggestUsernames proposes 3 free alternatives with random numeric suffixes.
func (h *UsersHandler) suggestUsernames(ctx context.Context, username string) []string {
	suggestions := make([]string, 0, 3)
	seen := make(map[string]struct{})

	for attempts := 0; len(suggestions) < 3 && attempts < 100; attempts++ {
		candidate := username + strconv.Itoa(rand.IntN(1000))

		if _, dup := seen[candidate]; dup {
			continue
		}

		_, err := h.store.GetByUsername(ctx, candidate)

		if errors.Is(err, repo.ErrUserNotFound) {
			suggestions = append(suggestions, candidate)
			seen[candidate] = struct{}{}
		}

		if err == nil {
			seen[candidate] = struct{}{}
		}
	}

	return suggestions
}
