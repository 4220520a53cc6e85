package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidSeat), errors.Is(err, model.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrSeatTaken), errors.Is(err, model.ErrAlreadyBooked):
		return http.StatusConflict
	case errors.Is(err, model.ErrIO),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}.  Client errors carry the wrapped
// message; server errors are logged and answered generically.
func respondError(c echo.Context, err error) error {
	status := statusFor(err)
	switch status {
	case http.StatusServiceUnavailable:
		c.Logger().Warnf("request failed: %v", err)
		return c.JSON(status, echo.Map{"error": "storage unavailable, try again"})
	case http.StatusInternalServerError:
		c.Logger().Errorf("request failed: %v", err)
		return c.JSON(status, echo.Map{"error": "internal error"})
	default:
		return c.JSON(status, echo.Map{"error": err.Error()})
	}
}
