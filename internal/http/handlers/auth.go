package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"userhub/internal/config"
	"userhub/internal/domain/user"
	"userhub/internal/http/middlewares"
	"userhub/internal/observability"
	"userhub/internal/repo"
	"userhub/internal/security"
	"userhub/internal/session"

	"github.com/gin-gonic/gin"
)

type UserReader interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
}

type AuthHandler struct {
	users    UserReader
	sessions *session.Manager
	cookie   middlewares.CookieSettings
	prom     *observability.Prom
}

func NewAuthHandler(users UserReader, sessions *session.Manager, cookie middlewares.CookieSettings, prom *observability.Prom) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		cookie:   cookie,
		prom:     prom,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSONStrict(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByUsername(cctx, req.Username)

	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not log in")
		return
	}

	if !security.CheckPassword(foundUser.PasswordHash, req.Password) {
		RespondUnauthorized(ctx, "invalid_credentials", "Incorrect password")
		return
	}

	token, err := h.sessions.Create(cctx, foundUser.Username)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	if h.prom != nil {
		h.prom.SessionsCreated.Inc()
	}

	middlewares.SetSessionCookie(ctx, h.cookie, h.sessions.Encode(token), int(h.sessions.TTL().Seconds()))

	ctx.JSON(http.StatusOK, foundUser.Sanitized())
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(h.cookie.Name)

	if err != nil || raw == "" {
		// still clear cookie to be safe
		middlewares.ClearSessionCookie(ctx, h.cookie)
		ctx.Status(http.StatusNoContent)
		return
	}

	token, ok := h.sessions.Decode(raw)

	if ok {
		cctx, cancel := config.WithTimeout(2 * time.Second)
		defer cancel()

		if err := h.sessions.Destroy(cctx, token); err != nil {
			RespondInternal(ctx, "Failed to logout")
			return
		}

		if h.prom != nil {
			h.prom.SessionsDestroyed.Inc()
		}
	}

	middlewares.ClearSessionCookie(ctx, h.cookie)
	ctx.Status(http.StatusNoContent)
}

// Me returns the authenticated caller. Requires the session guard.
func (h *AuthHandler) Me(ctx *gin.Context) {
	caller, ok := middlewares.CallerFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing or invalid session")
		return
	}

	ctx.JSON(http.StatusOK, caller.Sanitized())
}
