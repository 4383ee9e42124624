package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
	ContextSubject = "subject"
	ContextRole    = "role"
)

// Subject returns the authenticated subject stored by JWTAuth, or
// "anon" for unauthenticated requests.
func Subject(c echo.Context) string {
	if s, ok := c.Get(ContextSubject).(string); ok && s != "" {
		return s
	}
	return "anon"
}

func role(c echo.Context) string {
	s, _ := c.Get(ContextRole).(string)
	return s
}
