package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/taskhub_auth/internal/metrics"
	"github.com/Skotchmaster/taskhub_auth/internal/middleware"
	"github.com/Skotchmaster/taskhub_auth/internal/models"
)

type Deps struct {
	AuthHandler  *AuthHTTP
	UsersHandler *UsersHTTP
	Tokens       middleware.TokenValidator
	Ready        func(ctx context.Context) error
	Metrics      http.Handler
}

func NewEcho(base *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewRequestValidator()

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestLogger(base))
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	api := e.Group("/api/auth")
	api.POST("/register", d.AuthHandler.Register)
	api.POST("/login", d.AuthHandler.Login)
	api.POST("/refresh", d.AuthHandler.Refresh, middleware.SameOriginForCookie(refreshCookieName))

	private := api.Group("")
	private.Use(middleware.RequireAuth(d.Tokens))
	private.POST("/logout", d.AuthHandler.Logout)
	private.GET("/me", d.AuthHandler.Me)

	admin := private.Group("/users")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.GET("", d.UsersHandler.List)
	admin.PUT("/:id", d.UsersHandler.Update)
	admin.DELETE("/:id", d.UsersHandler.Delete)
}
