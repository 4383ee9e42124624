package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visit-reservation/internal/logging"
	"github.com/iliyamo/visit-reservation/internal/middleware"
	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/service"
)

// AdminHandler serves the back-office surface.  Every route is behind
// JWTAuth and RequireRole(ADMIN).
type AdminHandler struct {
	availability *service.AvailabilityService
	lifecycle    *service.LifecycleService
	query        *service.QueryService
	settings     *service.Settings
	logger       *slog.Logger
}

// NewAdminHandler panics if a service is missing.
func NewAdminHandler(availability *service.AvailabilityService, lifecycle *service.LifecycleService, query *service.QueryService, settings *service.Settings, logger *slog.Logger) *AdminHandler {
	if availability == nil || lifecycle == nil || query == nil || settings == nil {
		panic("nil service passed to NewAdminHandler")
	}
	return &AdminHandler{availability: availability, lifecycle: lifecycle, query: query, settings: settings, logger: logger}
}

// audit logs an administrative write with the acting subject.
func (h *AdminHandler) audit(c echo.Context, action string, attrs ...any) {
	ctx := c.Request().Context()
	attrs = append([]any{"action", action, "admin", middleware.Subject(c)}, attrs...)
	logging.Resolve(ctx, h.logger).InfoContext(ctx, "admin action", attrs...)
}

// UpsertCapacity handles PUT /v1/admin/availability/:date.
func (h *AdminHandler) UpsertCapacity(c echo.Context) error {
	day, err := model.ParseDate(c.Param("date"))
	if err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	var req model.UpsertCapacityRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx := c.Request().Context()
	if err := h.availability.UpsertCapacity(ctx, day, req.Capacity); err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "upsert_capacity", "date", day.String(), "capacity", req.Capacity)
	av, err := h.availability.AvailabilityFor(ctx, day)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, av)
}

// ListReservations handles GET /v1/admin/reservations.
func (h *AdminHandler) ListReservations(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var p model.PageRequest
	if p.Page, err = intParam(c, "page"); err != nil {
		return badRequest(c, err.Error())
	}
	if p.Size, err = intParam(c, "size"); err != nil {
		return badRequest(c, err.Error())
	}
	page, err := h.query.List(c.Request().Context(), f, p)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, page)
}

// ExportReservations handles GET /v1/admin/reservations/export.  It
// returns every matching reservation as one JSON array.
func (h *AdminHandler) ExportReservations(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	rows, err := h.query.Export(c.Request().Context(), f)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	c.Response().Header().Set("X-Total-Count", strconv.Itoa(len(rows)))
	return c.JSON(http.StatusOK, rows)
}

// GetReservation handles GET /v1/admin/reservations/:id.
func (h *AdminHandler) GetReservation(c echo.Context) error {
	res, err := h.query.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ConfirmReservation handles POST /v1/admin/reservations/:id/confirm.
func (h *AdminHandler) ConfirmReservation(c echo.Context) error {
	res, err := h.lifecycle.Confirm(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "confirm", "reservation_id", res.ID)
	return c.JSON(http.StatusOK, res)
}

// CancelReservation handles POST /v1/admin/reservations/:id/cancel.
func (h *AdminHandler) CancelReservation(c echo.Context) error {
	res, err := h.lifecycle.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "cancel", "reservation_id", res.ID)
	return c.JSON(http.StatusOK, res)
}

// DeleteReservation handles DELETE /v1/admin/reservations/:id.
func (h *AdminHandler) DeleteReservation(c echo.Context) error {
	id := c.Param("id")
	if err := h.lifecycle.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "delete", "reservation_id", id)
	return c.NoContent(http.StatusNoContent)
}

// CreateEvent handles POST /v1/admin/events.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
	var req model.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	res, err := h.lifecycle.CreateEvent(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "create_event", "reservation_id", res.ID, "date", res.VisitDate.String())
	return c.JSON(http.StatusCreated, res)
}

// parseFilter reads the listing filter from the query string.  Enum
// values are upper-cased; their validity is checked by the service.
func parseFilter(c echo.Context) (model.ReservationFilter, error) {
	var f model.ReservationFilter
	if s := strings.TrimSpace(c.QueryParam("date")); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return f, errors.New("date must be YYYY-MM-DD")
		}
		f.Date = &d
	}
	if s := strings.TrimSpace(c.QueryParam("month")); s != "" {
		m, err := model.ParseMonth(s)
		if err != nil {
			return f, errors.New("month must be YYYY-MM")
		}
		f.Month = &m
	}
	year, err := intParam(c, "year")
	if err != nil {
		return f, err
	}
	f.Year = year
	f.Status = model.Status(strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))))
	f.Kind = model.VisitorKind(strings.ToUpper(strings.TrimSpace(c.QueryParam("kind"))))
	f.Identity = strings.TrimSpace(c.QueryParam("identity"))
	f.Name = strings.TrimSpace(c.QueryParam("name"))
	return f, nil
}

func intParam(c echo.Context, name string) (int, error) {
	s := strings.TrimSpace(c.QueryParam(name))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
