package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/utils"
)

// JWTAuth validates a Bearer access token signed with secret and stores
// its subject and role in the echo context under ContextSubject and
// ContextRole.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return problem(c, model.NewProblem(http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token"))
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimSpace(raw))
			if err != nil {
				return problem(c, model.NewProblem(http.StatusUnauthorized, "UNAUTHORIZED", "invalid token"))
			}
			c.Set(ContextSubject, claims.Subject)
			c.Set(ContextRole, claims.Role)
			return next(c)
		}
	}
}
