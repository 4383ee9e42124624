package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type educationalToggle struct {
	Enabled *bool `json:"enabled"`
}

type defaultCapacity struct {
	Capacity *int `json:"capacity"`
}

// GetEducationalReservations handles GET /v1/admin/config/educational-reservations.
func (h *AdminHandler) GetEducationalReservations(c echo.Context) error {
	enabled, err := h.settings.EducationalReservationsEnabled(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, educationalToggle{Enabled: &enabled})
}

// SetEducationalReservations handles PUT /v1/admin/config/educational-reservations.
func (h *AdminHandler) SetEducationalReservations(c echo.Context) error {
	var req educationalToggle
	if err := c.Bind(&req); err != nil || req.Enabled == nil {
		return badRequest(c, "enabled is required")
	}
	if err := h.settings.SetEducationalReservationsEnabled(c.Request().Context(), *req.Enabled); err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "set_educational_reservations", "enabled", *req.Enabled)
	return c.JSON(http.StatusOK, req)
}

// GetDefaultCapacity handles GET /v1/admin/config/default-capacity.
func (h *AdminHandler) GetDefaultCapacity(c echo.Context) error {
	n, err := h.settings.DefaultCapacity(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, defaultCapacity{Capacity: &n})
}

// SetDefaultCapacity handles PUT /v1/admin/config/default-capacity.
func (h *AdminHandler) SetDefaultCapacity(c echo.Context) error {
	var req defaultCapacity
	if err := c.Bind(&req); err != nil || req.Capacity == nil {
		return badRequest(c, "capacity is required")
	}
	if err := h.settings.SetDefaultCapacity(c.Request().Context(), *req.Capacity); err != nil {
		return respondError(c, h.logger, err)
	}
	h.audit(c, "set_default_capacity", "capacity", *req.Capacity)
	return c.JSON(http.StatusOK, req)
}
