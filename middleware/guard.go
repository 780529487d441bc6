package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/boardauth"
)

const userContextKey = "boardauth.user"

// Authenticator is the part of *boardauth.Engine the guards use.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*boardauth.User, error)
	RequireRole(ctx context.Context, user *boardauth.User, role boardauth.Role) error
}

// UserFromContext returns the user stored by Authenticate or
// OptionalAuthenticate.
func UserFromContext(c echo.Context) (*boardauth.User, bool) {
	user, ok := c.Get(userContextKey).(*boardauth.User)
	return user, ok && user != nil
}

// Authenticate requires "Authorization: Bearer <access token>".
func Authenticate(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return boardauth.ErrInvalidToken
			}

			user, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// OptionalAuthenticate resolves the user when a bearer token is sent. A
// missing, malformed, expired or otherwise invalid token passes through
// anonymously; other failures such as a deleted user are returned.
func OptionalAuthenticate(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return next(c)
			}

			user, err := auth.Authenticate(c.Request().Context(), token)
			if errors.Is(err, boardauth.ErrInvalidToken) {
				return next(c)
			}
			if err != nil {
				return err
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// RequireRole rejects users whose role is not role.
func RequireRole(auth Authenticator, role boardauth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, _ := UserFromContext(c)
			if err := auth.RequireRole(c.Request().Context(), user, role); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func bearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}
