package profile

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vetclinic/vetclinic/internal/platform/auth"
	"github.com/vetclinic/vetclinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	me := api.Group("/profiles", auth.RequireRole(auth.RoleCustomer, auth.RoleAdmin))
	me.POST("/sync", h.Sync)
	me.GET("/me", h.GetMe)
	me.PUT("/me", h.UpdateMe)

	admin := api.Group("/profiles", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.List)
}

type updateRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) Sync(c echo.Context) error {
	ctx := c.Request().Context()
	id := Identity{
		Subject: auth.UserIDFromContext(ctx),
		Email:   auth.EmailFromContext(ctx),
		Name:    auth.NameFromContext(ctx),
		Role:    RoleCustomer,
	}
	if auth.IsAdmin(ctx) {
		id.Role = RoleAdmin
	}
	p, created, err := h.svc.Sync(ctx, id)
	if err != nil {
		return toHTTPError(err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, p)
}

func (h *Handler) GetMe(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	p, err := h.svc.Update(ctx, auth.UserIDFromContext(ctx), Changes(req))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, pg), len(items), pg.Limit, pg.Offset))
}
