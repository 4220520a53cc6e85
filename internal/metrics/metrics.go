// Package metrics holds the Prometheus collectors of the reservation
// service and the echo middleware that records HTTP traffic.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector.  Build it with New so the collectors
// are registered exactly once per registry.
type Metrics struct {
	RequestTotal    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	Reservations    prometheus.Counter
	Cancellations   prometheus.Counter
	Clears          prometheus.Counter
	SeatConflicts   prometheus.Counter
	PersistFailures prometheus.Counter
	SeatsBooked     *prometheus.GaugeVec
}

// New registers the collectors on reg.  Tests pass a fresh
// prometheus.NewRegistry(); the server passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		Reservations: f.NewCounter(prometheus.CounterOpts{
			Name: "bus_reservations_total",
			Help: "Seats successfully reserved",
		}),
		Cancellations: f.NewCounter(prometheus.CounterOpts{
			Name: "bus_cancellations_total",
			Help: "Reservations successfully cancelled",
		}),
		Clears: f.NewCounter(prometheus.CounterOpts{
			Name: "bus_reservation_clears_total",
			Help: "Administrative clear-all operations",
		}),
		SeatConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "bus_seat_conflicts_total",
			Help: "Reservations rejected because the seat was taken",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "bus_persist_failures_total",
			Help: "Changes rolled back because the snapshot could not be saved",
		}),
		SeatsBooked: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bus_seats_booked",
				Help: "Seats currently booked per bus",
			},
			[]string{"bus_id"},
		),
	}
}

// NormalizePath reduces a raw URL path to its first segment.  It is only
// used for requests that matched no route, to keep label cardinality
// bounded.
func NormalizePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if idx := strings.Index(p, "/"); idx >= 0 {
		p = p[:idx]
	}
	if p == "" {
		return "root"
	}
	return p
}

// Middleware records request count and latency labelled by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == "/metrics" {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			duration := time.Since(start).Seconds()

			path := c.Path()
			if path == "" || path == "/*" {
				path = NormalizePath(c.Request().URL.Path)
			}
			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			method := c.Request().Method
			m.RequestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(method, path).Observe(duration)
			return err
		}
	}
}
