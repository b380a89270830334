package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/anotherme-social/identity-service/app/entity"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type authenticator interface {
	Authenticate(ctx context.Context, tokenString string) (*entity.User, error)
}

type AuthMiddleware struct {
	authService authenticator
}

func NewAuthMiddleware(authService authenticator) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// RequireAuth validates the bearer token and resolves it to an existing
// user. Every failure mode answers with the same 401 body.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			logrus.Debug("Missing authorization header")
			return unauthorized(c)
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logrus.Debug("Invalid authorization header format")
			return unauthorized(c)
		}

		user, err := m.authService.Authenticate(c.Request().Context(), parts[1])
		if err != nil {
			logrus.Debug("Invalid or expired access token")
			return unauthorized(c)
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("user_email", user.Email)

		return next(c)
	}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": "could not validate credentials",
	})
}
