package middleware

import (
	"context"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/auth"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/labstack/echo/v4"
)

const (
	userKey     = "user"
	tokenCookie = "token"
)

var errNotAuthorized = models.NewUnauthorizedError("Not authorized to access this route")

// UserLoader resolves the account behind a token.
type UserLoader interface {
	GetUser(ctx context.Context, hexID string) (*models.User, error)
}

// JWTAuthMiddleware checks for a valid JWT and loads the caller into the context.
// The token comes from the Authorization header or, failing that, the token cookie.
func JWTAuthMiddleware(tokens *auth.TokenManager, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := bearerToken(c)
			if tokenString == "" {
				return errNotAuthorized
			}

			claims, err := tokens.Parse(tokenString)
			if err != nil {
				return errNotAuthorized
			}

			user, err := users.GetUser(c.Request().Context(), claims.UserID)
			if err != nil {
				if models.IsCode(err, models.CodeNotFound) {
					return errNotAuthorized
				}
				return err
			}

			c.Set(userKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the caller set by JWTAuthMiddleware, or nil.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(userKey).(*models.User)
	return user
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	if cookie, err := c.Cookie(tokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
