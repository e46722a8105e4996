package httpserver

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskhub_auth/internal/logging"
	"github.com/Skotchmaster/taskhub_auth/internal/models"
	"github.com/Skotchmaster/taskhub_auth/internal/service"
)

type UserAdmin interface {
	ListUsers(ctx context.Context, query string, offset, limit int) ([]models.User, int64, error)
	UpdateUser(ctx context.Context, id uuid.UUID, in service.UpdateInput) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type UsersHTTP struct {
	Svc UserAdmin
}

func (h *UsersHTTP) List(c echo.Context) error {
	var (
		q      string
		offset = 0
		limit  = service.DefaultPageSize
	)
	if err := echo.QueryParamsBinder(c).
		String("q", &q).
		Int("offset", &offset).
		Int("limit", &limit).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	offset, limit = service.NormalizePage(offset, limit)

	users, total, err := h.Svc.ListUsers(c.Request().Context(), q, offset, limit)
	if err != nil {
		return httpError(err)
	}

	items := make([]UserResponse, 0, len(users))
	for i := range users {
		items = append(items, newUserResponse(&users[i]))
	}
	return c.JSON(http.StatusOK, UserListResponse{Total: total, Offset: offset, Limit: limit, Items: items})
}

func (h *UsersHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users_update")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.Svc.UpdateUser(ctx, id, req.input())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}

func (h *UsersHTTP) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	if err := h.Svc.DeleteUser(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "user deleted"})
}
