package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vetclinic/vetclinic/internal/domain/appointment"
	"github.com/vetclinic/vetclinic/internal/domain/pet"
	"github.com/vetclinic/vetclinic/internal/domain/profile"
	"github.com/vetclinic/vetclinic/internal/platform/auth"
)

type AppointmentSource interface {
	List(ctx context.Context, f appointment.Filter) ([]*appointment.Appointment, error)
}

type PetSource interface {
	List(ctx context.Context, ownerID string) ([]*pet.Pet, error)
}

type ProfileSource interface {
	List(ctx context.Context) ([]*profile.Profile, error)
}

type Handler struct {
	appts    AppointmentSource
	pets     PetSource
	profiles ProfileSource
	loc      *time.Location
	now      func() time.Time
}

func NewHandler(appts AppointmentSource, pets PetSource, profiles ProfileSource, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{appts: appts, pets: pets, profiles: profiles, loc: loc, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard", auth.RequireRole(auth.RoleAdmin))
	g.GET("/stats", h.Stats)
	g.GET("/status", h.Status)
	g.GET("/services", h.Services)
	g.GET("/activity", h.Activity)
}

type snapshot struct {
	appts    []*appointment.Appointment
	pets     []*pet.Pet
	profiles []*profile.Profile
}

func (h *Handler) load(ctx context.Context, withPets, withProfiles bool) (snapshot, error) {
	var s snapshot
	var err error
	if s.appts, err = h.appts.List(ctx, appointment.Filter{}); err != nil {
		return s, echo.NewHTTPError(http.StatusInternalServerError, "load appointments: "+err.Error())
	}
	if withPets {
		if s.pets, err = h.pets.List(ctx, ""); err != nil {
			return s, echo.NewHTTPError(http.StatusInternalServerError, "load pets: "+err.Error())
		}
	}
	if withProfiles {
		if s.profiles, err = h.profiles.List(ctx); err != nil {
			return s, echo.NewHTTPError(http.StatusInternalServerError, "load profiles: "+err.Error())
		}
	}
	return s, nil
}

func (h *Handler) Stats(c echo.Context) error {
	s, err := h.load(c.Request().Context(), true, true)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatsForWindow(s.appts, s.pets, s.profiles, h.now().In(h.loc)))
}

func (h *Handler) Status(c echo.Context) error {
	s, err := h.load(c.Request().Context(), false, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GroupByStatus(s.appts))
}

func (h *Handler) Services(c echo.Context) error {
	s, err := h.load(c.Request().Context(), false, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GroupByService(s.appts))
}

func (h *Handler) Activity(c echo.Context) error {
	s, err := h.load(c.Request().Context(), true, true)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RecentActivity(s.appts, s.profiles, s.pets))
}
