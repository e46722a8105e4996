package middleware

import (
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskhub_auth/internal/logging"
	"github.com/Skotchmaster/taskhub_auth/internal/models"
	"github.com/Skotchmaster/taskhub_auth/internal/tokens"
)

const IdentityKey = "identity"

type TokenValidator interface {
	Validate(token string) (*tokens.AccessClaims, error)
}

// RequireAuth admits a request only with a valid bearer access token. The
// decoded identity is stored on the context under IdentityKey.
func RequireAuth(v TokenValidator) echo.MiddlewareFunc {
	gate := echojwt.WithConfig(echojwt.Config{
		ContextKey:  IdentityKey,
		TokenLookup: "header:Authorization:Bearer ",
		ParseTokenFunc: func(_ echo.Context, auth string) (interface{}, error) {
			claims, err := v.Validate(auth)
			if err != nil {
				return nil, err
			}
			return claims.Identity(), nil
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			if errors.Is(err, tokens.ErrExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "access token expired").SetInternal(err)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing access token").SetInternal(err)
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return gate(func(c echo.Context) error {
			if id, ok := IdentityFrom(c); ok {
				req := c.Request()
				l := logging.FromContext(req.Context()).With("caller", id.Username)
				c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))
			}
			return next(c)
		})
	}
}

func RequireRole(role models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if id.Role != role {
				return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
			}
			return next(c)
		}
	}
}

func IdentityFrom(c echo.Context) (models.Identity, bool) {
	id, ok := c.Get(IdentityKey).(models.Identity)
	return id, ok
}
