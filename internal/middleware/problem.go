// Package middleware holds the echo middleware of the HTTP API: admin
// authentication, rate limiting, response caching, request logging and
// request deadlines.
package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visit-reservation/internal/model"
)

func problem(c echo.Context, p *model.ProblemDetails) error {
	p.Instance = c.Request().URL.Path
	c.Response().Header().Set(echo.HeaderContentType, model.ProblemContentType)
	return c.JSON(p.Status, p)
}
