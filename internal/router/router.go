// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visit-reservation/internal/handler"
	"github.com/iliyamo/visit-reservation/internal/middleware"
	"github.com/iliyamo/visit-reservation/internal/utils"
)

// RegisterRoutes registers the health endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterPublic registers the unauthenticated visitor surface.
// Availability reads go through cache; submissions through limit.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/availability", p.GetAvailability, cache)
	g.GET("/availability/month", p.GetMonthAvailability, cache)
	g.POST("/reservations", p.SubmitReservation, limit)
	g.GET("/reservations/:id", p.GetReservation)
}

// RegisterAuth registers the admin login.  It shares the submission
// rate limiter.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit echo.MiddlewareFunc) {
	e.POST("/v1/auth/login", a.Login, limit)
}

// RegisterAdmin registers the back office under /v1/admin.  All routes
// require a valid JWT with the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)

	g.PUT("/availability/:date", h.UpsertCapacity)

	g.GET("/reservations", h.ListReservations)
	g.GET("/reservations/export", h.ExportReservations)
	g.GET("/reservations/:id", h.GetReservation)
	g.POST("/reservations/:id/confirm", h.ConfirmReservation)
	g.POST("/reservations/:id/cancel", h.CancelReservation)
	g.DELETE("/reservations/:id", h.DeleteReservation)

	g.POST("/events", h.CreateEvent)

	g.GET("/config/educational-reservations", h.GetEducationalReservations)
	g.PUT("/config/educational-reservations", h.SetEducationalReservations)
	g.GET("/config/default-capacity", h.GetDefaultCapacity)
	g.PUT("/config/default-capacity", h.SetDefaultCapacity)
}
