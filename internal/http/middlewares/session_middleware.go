package middlewares

import (
	"context"
	"net/http"

	"userhub/internal/domain/user"
	"userhub/internal/session"

	"github.com/gin-gonic/gin"
)

// UserGetter is the slice of the user store the guards need. Kept small so
// tests can fake it easily.
type UserGetter interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
}

type CookieSettings struct {
	Name   string
	Secure bool
}

// Guard bundles the session manager, the user store, and the cookie
// settings behind the request-guard middlewares.
type Guard struct {
	sessions *session.Manager
	users    UserGetter
	cookie   CookieSettings
}

func NewGuard(sessions *session.Manager, users UserGetter, cookie CookieSettings) *Guard {
	return &Guard{sessions: sessions, users: users, cookie: cookie}
}

// RequireSession resolves the caller's session cookie, loads the caller
// record, and stashes it on the context. The session expiry and the cookie
// are both extended from now ("rolling"). Sessions whose user no longer
// exists are destroyed on sight.
func (g *Guard) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(g.cookie.Name)

		if err != nil || raw == "" {
			unauthorized(c)
			return
		}

		token, ok := g.sessions.Decode(raw)

		if !ok {
			unauthorized(c)
			return
		}

		username, ok, err := g.sessions.Resolve(c.Request.Context(), token)

		if err != nil || !ok {
			unauthorized(c)
			return
		}

		caller, err := g.users.GetByUsername(c.Request.Context(), username)

		if err != nil {
			// user deleted since login: the session is a dangling reference
			_ = g.sessions.Destroy(c.Request.Context(), token)
			unauthorized(c)
			return
		}

		c.Set(ctxCallerKey, caller)
		c.Set(ctxTokenKey, token)

		g.RefreshCookie(c, raw)

		c.Next()
	}
}

// RefreshCookie re-issues the session cookie with a full TTL.
func (g *Guard) RefreshCookie(c *gin.Context, value string) {
	SetSessionCookie(c, g.cookie, value, int(g.sessions.TTL().Seconds()))
}

func SetSessionCookie(c *gin.Context, cookie CookieSettings, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)

	c.SetCookie(
		cookie.Name,
		value,
		maxAge,
		"/",
		"",
		cookie.Secure,
		true, // HttpOnly.
	)
}

func ClearSessionCookie(c *gin.Context, cookie CookieSettings) {
	SetSessionCookie(c, cookie, "", -1)
}

// CallerFromContext returns the authenticated user stashed by RequireSession.
func CallerFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxCallerKey)

	if !ok {
		return user.User{}, false
	}

	caller, ok := v.(user.User)

	return caller, ok
}

// TokenFromContext returns the resolved session token for the request.
func TokenFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxTokenKey)

	if !ok {
		return "", false
	}

	token, ok := v.(string)

	return token, ok
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": "Missing or invalid session",
		},
	})
}
