package appointment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vetclinic/vetclinic/internal/platform/auth"
	"github.com/vetclinic/vetclinic/pkg/pagination"
)

// Confirmer sends the booking confirmation to the owner.
type Confirmer interface {
	SendConfirmation(ctx context.Context, a *Appointment) error
}

type Handler struct {
	svc       *Service
	confirmer Confirmer
	logger    zerolog.Logger
}

func NewHandler(svc *Service, confirmer Confirmer, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, confirmer: confirmer, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	owners := api.Group("", auth.RequireRole(auth.RoleCustomer, auth.RoleAdmin))
	owners.POST("/appointments", h.Create)
	owners.GET("/appointments", h.List)
	owners.GET("/appointments/:id", h.Get)
	owners.POST("/appointments/:id/reschedule", h.Reschedule)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.PATCH("/appointments/:id/status", h.UpdateStatus)
	admin.DELETE("/appointments/:id", h.Delete)
}

type createRequest struct {
	OwnerID         string      `json:"owner_id"`
	OwnerName       string      `json:"owner_name"`
	OwnerEmail      string      `json:"owner_email"`
	OwnerPhone      *string     `json:"owner_phone"`
	PetID           *string     `json:"pet_id"`
	PetName         string      `json:"pet_name"`
	Service         ServiceType `json:"service"`
	Date            string      `json:"date"`
	TimeSlot        TimeSlot    `json:"time_slot"`
	Reason          *string     `json:"reason"`
	AdditionalInfo  *string     `json:"additional_info"`
	Urgent          bool        `json:"urgent"`
	FirstVisit      bool        `json:"first_visit"`
	GroomingPackage *string     `json:"grooming_package"`
}

type createResponse struct {
	Appointment       *Appointment `json:"appointment"`
	ConfirmationSent  bool         `json:"confirmation_sent"`
	ConfirmationError string       `json:"confirmation_error,omitempty"`
}

type rescheduleRequest struct {
	Date     string   `json:"date"`
	TimeSlot TimeSlot `json:"time_slot"`
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseInLocation(time.DateOnly, s, h.svc.Location()); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, s)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrIllegalTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// load fetches an appointment the caller may see. Other owners' records are
// reported as missing.
func (h *Handler) load(c echo.Context) (*Appointment, error) {
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		return nil, toHTTPError(err)
	}
	if !auth.IsAdmin(ctx) && a.OwnerID != auth.UserIDFromContext(ctx) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return a, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date")
	}
	ctx := c.Request().Context()
	ownerID := auth.UserIDFromContext(ctx)
	if auth.IsAdmin(ctx) && req.OwnerID != "" {
		ownerID = req.OwnerID
	}
	a := &Appointment{
		OwnerID:         ownerID,
		OwnerName:       req.OwnerName,
		OwnerEmail:      req.OwnerEmail,
		OwnerPhone:      req.OwnerPhone,
		PetID:           req.PetID,
		PetName:         req.PetName,
		Service:         req.Service,
		Date:            date,
		TimeSlot:        req.TimeSlot,
		Reason:          req.Reason,
		AdditionalInfo:  req.AdditionalInfo,
		Urgent:          req.Urgent,
		FirstVisit:      req.FirstVisit,
		GroomingPackage: req.GroomingPackage,
	}
	if err := h.svc.Create(ctx, a); err != nil {
		return toHTTPError(err)
	}

	resp := createResponse{Appointment: a}
	if h.confirmer != nil {
		if err := h.confirmer.SendConfirmation(ctx, a); err != nil {
			h.logger.Error().Err(err).Str("appointment_id", a.ID).Msg("booking confirmation failed")
			resp.ConfirmationError = "confirmation email could not be sent"
		} else {
			resp.ConfirmationSent = true
		}
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	f := Filter{OwnerID: auth.UserIDFromContext(ctx)}
	if auth.IsAdmin(ctx) {
		f = Filter{OwnerID: c.QueryParam("owner_id"), Email: c.QueryParam("email")}
	}
	if s := c.QueryParam("status"); s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Status = st
	}
	items, err := h.svc.List(ctx, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, pg), len(items), pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Reschedule(c echo.Context) error {
	if _, err := h.load(c); err != nil {
		return err
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date")
	}
	a, err := h.svc.Reschedule(c.Request().Context(), c.Param("id"), date, req.TimeSlot)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	found, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return toHTTPError(err)
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	a, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
