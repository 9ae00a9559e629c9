package middlewares

import (
	"errors"
	"net/http"

	"userhub/internal/domain/user"
	"userhub/internal/repo"

	"github.com/gin-gonic/gin"
)

// LoadTargetUser resolves the :username path parameter and snapshots the
// record on the context so downstream guards and the handler all operate
// on the same view of the target.
func (g *Guard) LoadTargetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")

		target, err := g.users.GetByUsername(c.Request.Context(), username)

		if err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
					"error": gin.H{
						"code":    "not_found",
						"message": "User not found",
					},
				})
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "internal_error",
					"message": "Could not load user",
				},
			})
			return
		}

		c.Set(ctxTargetKey, target)

		c.Next()
	}
}

// TargetFromContext returns the user stashed by LoadTargetUser.
func TargetFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxTargetKey)

	if !ok {
		return user.User{}, false
	}

	target, ok := v.(user.User)

	return target, ok
}
