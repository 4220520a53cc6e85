package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// BusHandler serves the read-only fleet endpoints.
type BusHandler struct {
	Svc *service.ReservationService
}

func NewBusHandler(svc *service.ReservationService) *BusHandler {
	return &BusHandler{Svc: svc}
}

// Catalog returns the static fleet without availability, so it can be
// cached.
func (h *BusHandler) Catalog(c echo.Context) error {
	buses := h.Svc.ListBuses()
	out := make([]model.Bus, 0, len(buses))
	for _, b := range buses {
		out = append(out, b.Bus)
	}
	return c.JSON(http.StatusOK, echo.Map{"buses": out})
}

// ListBuses returns every bus with seats left.
func (h *BusHandler) ListBuses(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"buses": h.Svc.ListBuses()})
}

// GetBus returns one bus with its seat layout.
func (h *BusHandler) GetBus(c echo.Context) error {
	b, err := h.Svc.Bus(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newBusDetail(b))
}

// Dashboard returns occupancy per bus.
func (h *BusHandler) Dashboard(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"occupancy": h.Svc.Dashboard()})
}
