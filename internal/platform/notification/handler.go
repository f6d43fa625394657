package notification

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vetclinic/vetclinic/internal/platform/auth"
	"github.com/vetclinic/vetclinic/pkg/pagination"
)

// Handler exposes delivery records to admins.
type Handler struct {
	manager *Manager
}

func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/admin/notifications", auth.RequireRole(auth.RoleAdmin))
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
	g.GET("/:id", h.Get)
	g.POST("/:id/retry", h.Retry)
}

func (h *Handler) List(c echo.Context) error {
	items := h.manager.List(c.Request().Context(), c.QueryParam("status"))
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, pg), len(items), pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	msg, err := h.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *Handler) Retry(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	err := h.manager.Retry(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	case err != nil:
		msg, getErr := h.manager.Get(ctx, id)
		if getErr == nil && msg.Status == StatusFailed && msg.Attempts > 1 {
			return c.JSON(http.StatusBadGateway, msg)
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	msg, _ := h.manager.Get(ctx, id)
	return c.JSON(http.StatusOK, msg)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats(c.Request().Context()))
}
