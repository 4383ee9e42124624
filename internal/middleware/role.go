package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visit-reservation/internal/model"
)

// RequireRole rejects requests whose token role is not one of roles.  It
// must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[role(c)] {
				return problem(c, model.NewProblem(http.StatusForbidden, "FORBIDDEN", "insufficient role"))
			}
			return next(c)
		}
	}
}
