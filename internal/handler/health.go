// Package handler implements the HTTP endpoints of the bus reservation
// API on top of service.ReservationService.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
