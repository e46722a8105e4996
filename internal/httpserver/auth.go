package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskhub_auth/internal/logging"
	"github.com/Skotchmaster/taskhub_auth/internal/middleware"
	"github.com/Skotchmaster/taskhub_auth/internal/models"
	"github.com/Skotchmaster/taskhub_auth/internal/service"
)

type Sessions interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, username, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, token string) (*service.RefreshResult, error)
	Logout(ctx context.Context, caller models.Identity, username string) error
	CurrentUser(ctx context.Context, caller models.Identity) (*models.User, error)
}

type AuthHTTP struct {
	Svc Sessions
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	// Admin accounts come only from seed-admin or an admin update.
	if models.Role(req.Role) == models.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "admin accounts cannot be self-registered")
	}

	res, err := h.Svc.Register(ctx, service.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Role:       models.Role(req.Role),
		Department: req.Department,
		Position:   req.Position,
	})
	if err != nil {
		return httpError(err)
	}

	setRefreshCookie(c, res.RefreshToken, res.RefreshExp)
	return c.JSON(http.StatusCreated, newAuthResponse(res))
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return httpError(err)
	}

	setRefreshCookie(c, res.RefreshToken, res.RefreshExp)
	return c.JSON(http.StatusOK, newAuthResponse(res))
}

// Refresh takes the token from the body, or from the refresh cookie when
// the body carries none.
func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("refresh_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	token := req.RefreshToken
	if token == "" {
		token = refreshTokenFromCookie(c)
	}
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh token is required")
	}

	res, err := h.Svc.Refresh(ctx, token)
	if err != nil {
		return httpError(err)
	}

	setRefreshCookie(c, res.RefreshToken, res.RefreshExp)
	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    res.TokenType,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	if err := h.Svc.Logout(ctx, caller, c.QueryParam("username")); err != nil {
		return httpError(err)
	}

	clearRefreshCookie(c)
	return c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	caller, ok := middleware.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	user, err := h.Svc.CurrentUser(c.Request().Context(), caller)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}
