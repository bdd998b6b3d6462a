package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"interview-copilot/internal/auth"
	"interview-copilot/internal/common"
	"interview-copilot/internal/store"
)

// UserKey is the gin context key under which the authenticated user is
// stored for the rest of the request.
const UserKey = "auth.user"

// AuthRequired resolves the bearer credential on every request and aborts
// with 401 when it cannot. The rejection messages never say whether the
// signature, the expiry or the token shape was at fault.
func AuthRequired(gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := gate.Resolve(bearerToken(c))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrMissingToken):
				common.Fail(c, http.StatusUnauthorized, 40101, "Missing access token")
			case errors.Is(err, auth.ErrInvalidToken):
				common.Fail(c, http.StatusUnauthorized, 40102, "Invalid or expired token")
			case errors.Is(err, auth.ErrUserNotFound):
				common.Fail(c, http.StatusUnauthorized, 40103, "User not found")
			default:
				common.Fail(c, http.StatusInternalServerError, 50001, "storage unavailable")
			}
			c.Abort()
			return
		}
		c.Set(UserKey, user)
		c.Next()
	}
}

// CurrentUser returns the identity resolved by AuthRequired.
func CurrentUser(c *gin.Context) (*store.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*store.User)
	return u, ok
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
