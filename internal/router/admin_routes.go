package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

// RegisterAdmin registers the admin login and the ADMIN-only operations.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	e.POST("/v1/admin/login", h.Login)

	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)
	g.DELETE("/reservations", h.ClearAll)
}
