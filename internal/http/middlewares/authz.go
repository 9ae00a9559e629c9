package middlewares

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireSelfOrAdmin permits the request when the caller is the target user
// or an admin. Assumes RequireSession and LoadTargetUser already ran.
func (g *Guard) RequireSelfOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFromContext(c)

		if !ok {
			unauthorized(c)
			return
		}

		target, ok := TargetFromContext(c)

		if !ok {
			unauthorized(c)
			return
		}

		if caller.Username != target.Username && !caller.IsAdmin {
			forbidden(c, "Forbidden")
			return
		}

		c.Next()
	}
}

// AdminFieldGuard protects the isAdmin field on updates. It is a no-op when
// the body does not carry the field. Otherwise the caller must be an admin
// and must not be targeting their own record, so an admin cannot change
// their own admin flag through the generic update endpoint.
//
// Assumes RequireSession and LoadTargetUser already ran.
func (g *Guard) AdminFieldGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := peekBody(c)

		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "invalid_request",
					"message": "Invalid request body",
				},
			})
			return
		}

		if _, present := body["isAdmin"]; !present {
			c.Next()
			return
		}

		caller, _ := CallerFromContext(c)
		target, _ := TargetFromContext(c)

		if !caller.IsAdmin {
			forbidden(c, "Only admins can change isAdmin")
			return
		}

		if caller.Username == target.Username {
			forbidden(c, "Admins cannot change their own isAdmin")
			return
		}

		c.Next()
	}
}

// peekBody reads the request body into a key set and puts it back so the
// handler can still bind it.
func peekBody(c *gin.Context) (map[string]json.RawMessage, bool) {
	raw, err := io.ReadAll(c.Request.Body)

	if err != nil {
		return nil, false
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]json.RawMessage{}, true
	}

	var body map[string]json.RawMessage

	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false
	}

	return body, true
}

func forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error": gin.H{
			"code":    "forbidden",
			"message": message,
		},
	})
}
