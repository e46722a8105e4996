package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskhub_auth/internal/service"
)

// httpError is the single place service errors become status codes.
func httpError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrTokenNotFound):
		return echo.NewHTTPError(http.StatusUnauthorized, service.ErrTokenNotFound.Error())
	case errors.Is(err, service.ErrExpiredRefreshToken):
		return echo.NewHTTPError(http.StatusUnauthorized, service.ErrExpiredRefreshToken.Error())
	case errors.Is(err, service.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
	case errors.Is(err, service.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, service.ErrUserNotFound.Error())
	case errors.Is(err, service.ErrUsernameTaken):
		return echo.NewHTTPError(http.StatusConflict, service.ErrUsernameTaken.Error())
	case errors.Is(err, service.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, service.ErrEmailTaken.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
