package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// ReservationHandler serves booking, lookup and cancellation.
type ReservationHandler struct {
	Svc *service.ReservationService
}

func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{Svc: svc}
}

// reserveReq addresses a seat with zero-based coordinates.  Pointers tell
// a missing field apart from zero.
type reserveReq struct {
	Row  *int   `json:"row"`
	Seat *int   `json:"seat"`
	Name string `json:"name"`
}

// Reserve books a seat on the bus in the path.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Row == nil || req.Seat == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "row and seat are required"})
	}
	r, err := h.Svc.Reserve(c.Request().Context(), c.Param("id"), *req.Row, *req.Seat, req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, newReservationView(r, true))
}

// ListReservations returns live reservations, optionally for ?bus_id=.
func (h *ReservationHandler) ListReservations(c echo.Context) error {
	rs := h.Svc.ListReservations(c.QueryParam("bus_id"))
	out := make([]reservationView, 0, len(rs))
	for _, r := range rs {
		out = append(out, newReservationView(r, false))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out, "count": len(out)})
}

// GetReservation returns the confirmation for one reservation.
func (h *ReservationHandler) GetReservation(c echo.Context) error {
	r, err := h.Svc.Reservation(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newReservationView(r, true))
}

// CancelReservation cancels one reservation and frees its seat.
func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	r, err := h.Svc.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":     "reservation cancelled",
		"reservation": newReservationView(r, false),
	})
}
