package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
)

// RegisterReservations registers booking endpoints under /v1.  A
// reservation id acts as the passenger's ticket, so lookup and
// cancellation need no login.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler) {
	g := e.Group("/v1")
	g.POST("/buses/:id/reservations", h.Reserve)
	g.GET("/reservations", h.ListReservations)
	g.GET("/reservations/:id", h.GetReservation)
	g.DELETE("/reservations/:id", h.CancelReservation)
}
