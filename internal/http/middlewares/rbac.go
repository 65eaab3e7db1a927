package middlewares

import (
	"net/http"

	"github.com/geocoder89/careerhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

func (m *AuthMiddleware) RequireRole(required user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := UserFromContext(c)

		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		if u.Role != required {
			abortWithError(c, http.StatusForbidden, "forbidden", "Admin access required")
			return
		}
		c.Next()
	}
}
