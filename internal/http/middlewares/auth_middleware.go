package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/careerhub/internal/auth"
	"github.com/geocoder89/careerhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Authenticator resolves a bearer token to the user it belongs to.
// Keep this small interface so tests can fake it easily.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (user.User, error)
}

type AuthMiddleware struct {
	authn Authenticator
	log   *slog.Logger
}

func NewAuthMiddleware(authn Authenticator, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{authn: authn, log: log}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Access denied. No token provided.")
			return
		}

		u, err := m.authn.Authenticate(c.Request.Context(), raw)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrTokenExpired):
			abortWithError(c, http.StatusUnauthorized, "token_expired", "Token expired")
			return
		case errors.Is(err, auth.ErrTokenInvalid):
			abortWithError(c, http.StatusUnauthorized, "invalid_token", "Invalid token")
			return
		case errors.Is(err, user.ErrUserNotFound):
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid token. User not found.")
			return
		default:
			m.log.ErrorContext(c.Request.Context(), "authenticate request", "err", err)
			abortWithError(c, http.StatusInternalServerError, "internal_error", "Server error")
			return
		}

		c.Set(CtxUser, u.Public())
		c.Next()
	}
}

// OptionalAuth attaches the caller when the token resolves and never rejects.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			u, err := m.authn.Authenticate(c.Request.Context(), raw)
			if err != nil {
				m.log.DebugContext(c.Request.Context(), "optional auth: token not accepted", "err", err)
			} else {
				c.Set(CtxUser, u.Public())
			}
		}
		c.Next()
	}
}

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

// WithUser hands the resolved caller to h as an argument. It must sit behind RequireAuth.
func WithUser(h func(c *gin.Context, caller user.User)) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := UserFromContext(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		h(c, u)
	}
}

// WithOptionalUser hands the caller to h when OptionalAuth resolved one, nil otherwise.
func WithOptionalUser(h func(c *gin.Context, caller *user.User)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if u, ok := UserFromContext(c); ok {
			h(c, &u)
			return
		}
		h(c, nil)
	}
}
