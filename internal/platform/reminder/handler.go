package reminder

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vetclinic/vetclinic/internal/domain/appointment"
	"github.com/vetclinic/vetclinic/internal/platform/auth"
)

// Handler serves the caller's live notification list.
type Handler struct {
	appts AppointmentSource
	pets  PetSource
	feed  *Feed
	loc   *time.Location
	now   func() time.Time
}

func NewHandler(appts AppointmentSource, pets PetSource, feed *Feed, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{appts: appts, pets: pets, feed: feed, loc: loc, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications", auth.RequireRole(auth.RoleCustomer, auth.RoleAdmin))
	g.GET("", h.List)
	g.DELETE("/:id", h.Dismiss)
}

type listResponse struct {
	Data  []Notification `json:"data"`
	Total int            `json:"total"`
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	owner := auth.UserIDFromContext(ctx)
	appts, err := h.appts.List(ctx, appointment.Filter{OwnerID: owner})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pets, err := h.pets.List(ctx, owner)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	items := h.feed.Visible(owner, DeriveNotifications(appts, pets, h.now().In(h.loc)))
	return c.JSON(http.StatusOK, listResponse{Data: items, Total: len(items)})
}

func (h *Handler) Dismiss(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	h.feed.Dismiss(auth.UserIDFromContext(c.Request().Context()), id)
	return c.NoContent(http.StatusNoContent)
}
