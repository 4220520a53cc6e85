package middleware

import "github.com/labstack/echo/v4"

// subject returns the authenticated subject stored by JWTAuth, or "anon"
// for unauthenticated requests.
func subject(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
