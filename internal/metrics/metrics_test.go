package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/":                     "root",
		"":                      "root",
		"/v1/buses/B1":          "v1",
		"/healthz":              "healthz",
		"unknown/path/segments": "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), in)
	}
}

func TestMiddlewareRecordsHandlerErrors(t *testing.T) {
	m := New(prometheus.NewRegistry())
	e := echo.New()
	e.Use(m.Middleware())
	e.POST("/v1/admin/login", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusUnauthorized, "nope")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/login", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestTotal.WithLabelValues(http.MethodPost, "/v1/admin/login", "401")))
}

func TestMiddlewareLabelsByRoute(t *testing.T) {
	m := New(prometheus.NewRegistry())
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/v1/buses/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id")})
	})
	e.GET("/metrics", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, id := range []string{"B1", "B2"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/buses/"+id, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestTotal.WithLabelValues(http.MethodGet, "/v1/buses/:id", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestTotal))
}
