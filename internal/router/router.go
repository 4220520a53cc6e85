// Package router defines how HTTP routes are registered for the API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
)

// RegisterRoutes registers the unauthenticated infrastructure endpoints:
// the liveness probe and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(metrics))
}

// RegisterBuses registers the public fleet endpoints under /v1.  Only the
// static catalog goes through the response cache; availability must never
// be served stale.
func RegisterBuses(e *echo.Echo, h *handler.BusHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/catalog", h.Catalog, cache)
	g.GET("/buses", h.ListBuses)
	g.GET("/buses/:id", h.GetBus)
	g.GET("/dashboard", h.Dashboard)
}
