package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visit-reservation/internal/logging"
	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/service"
)

// PublicHandler serves the unauthenticated surface: availability and
// reservation submission.
type PublicHandler struct {
	availability *service.AvailabilityService
	admission    *service.AdmissionService
	lifecycle    *service.LifecycleService
	query        *service.QueryService
	logger       *slog.Logger
}

// NewPublicHandler panics if a service is missing.
func NewPublicHandler(availability *service.AvailabilityService, admission *service.AdmissionService, lifecycle *service.LifecycleService, query *service.QueryService, logger *slog.Logger) *PublicHandler {
	if availability == nil || admission == nil || lifecycle == nil || query == nil {
		panic("nil service passed to NewPublicHandler")
	}
	return &PublicHandler{availability: availability, admission: admission, lifecycle: lifecycle, query: query, logger: logger}
}

// reservationSummary is what visitors may see about a reservation.
// Identity and contact data stay on the admin surface.
type reservationSummary struct {
	ID        string            `json:"id"`
	VisitDate model.Date        `json:"visit_date"`
	Status    model.Status      `json:"status"`
	Kind      model.VisitorKind `json:"visitor_kind"`
	PartySize int               `json:"party_size"`
	Circuit   model.Circuit     `json:"circuit,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func summarize(r *model.Reservation) reservationSummary {
	return reservationSummary{
		ID:        r.ID,
		VisitDate: r.VisitDate,
		Status:    r.Status,
		Kind:      r.Kind,
		PartySize: r.Party.Total(),
		Circuit:   r.Circuit,
		CreatedAt: r.CreatedAt,
	}
}

// GetAvailability handles GET /v1/availability?date=YYYY-MM-DD.
func (h *PublicHandler) GetAvailability(c echo.Context) error {
	day, err := model.ParseDate(strings.TrimSpace(c.QueryParam("date")))
	if err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	av, err := h.availability.AvailabilityFor(c.Request().Context(), day)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, av)
}

// GetMonthAvailability handles GET /v1/availability/month?month=YYYY-MM.
func (h *PublicHandler) GetMonthAvailability(c echo.Context) error {
	month, err := model.ParseMonth(strings.TrimSpace(c.QueryParam("month")))
	if err != nil {
		return badRequest(c, "month must be YYYY-MM")
	}
	days, err := h.availability.AvailabilityForMonth(c.Request().Context(), month)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"month": month.String(), "days": days})
}

// SubmitReservation handles POST /v1/reservations.  The created event is
// emitted after the reservation is committed; failing to load it for the
// event does not fail the request.
func (h *PublicHandler) SubmitReservation(c echo.Context) error {
	var req model.SubmitReservationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx := c.Request().Context()
	id, err := h.admission.Submit(ctx, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.lifecycle.Created(ctx, id); err != nil {
		logging.Resolve(ctx, h.logger).WarnContext(ctx, "created event not emitted", "reservation_id", id, "error", err)
	}
	res, err := h.query.Get(ctx, id)
	if err != nil {
		return c.JSON(http.StatusCreated, echo.Map{"id": id})
	}
	return c.JSON(http.StatusCreated, summarize(res))
}

// GetReservation handles GET /v1/reservations/:id.
func (h *PublicHandler) GetReservation(c echo.Context) error {
	res, err := h.query.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, summarize(res))
}
