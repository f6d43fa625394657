package pet

import (
	"errors"
	"fmt"
	"net/http"
	"time"

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
	g := api.Group("/pets", auth.RequireRole(auth.RoleCustomer, auth.RoleAdmin))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

type petRequest struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Species   *string  `json:"species"`
	Breed     *string  `json:"breed"`
	Weight    *float64 `json:"weight"`
	BirthDate string   `json:"birth_date"`
	Gender    string   `json:"gender"`
}

func (h *Handler) toPet(req petRequest) (*Pet, error) {
	p := &Pet{Name: req.Name, Breed: req.Breed, Weight: req.Weight, Species: req.Species}
	if req.Type != "" {
		kind, sub, err := ParseKind(req.Type)
		if err != nil {
			return nil, err
		}
		p.Type = kind
		if sub != "" {
			p.Species = &sub
		}
	}
	g, err := ParseGender(req.Gender)
	if err != nil {
		return nil, err
	}
	p.Gender = g
	if req.BirthDate != "" {
		d, err := time.ParseInLocation(time.DateOnly, req.BirthDate, h.svc.Location())
		if err != nil {
			return nil, fmt.Errorf("%w: birth_date must be YYYY-MM-DD", ErrValidation)
		}
		p.BirthDate = d
	}
	return p, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "pet not found")
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) Create(c echo.Context) error {
	var req petRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.toPet(req)
	if err != nil {
		return toHTTPError(err)
	}
	ctx := c.Request().Context()
	p.OwnerID = auth.UserIDFromContext(ctx)
	if err := h.svc.Create(ctx, p); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	owner := auth.UserIDFromContext(ctx)
	if auth.IsAdmin(ctx) {
		owner = c.QueryParam("owner_id")
	}
	items, err := h.svc.List(ctx, owner)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, pg), len(items), pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, auth.UserIDFromContext(ctx), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	var req petRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.toPet(req)
	if err != nil {
		return toHTTPError(err)
	}
	ctx := c.Request().Context()
	p.ID = c.Param("id")
	p.OwnerID = auth.UserIDFromContext(ctx)
	if err := h.svc.Update(ctx, p); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, auth.UserIDFromContext(ctx), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
