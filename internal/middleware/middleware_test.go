package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/config"
)

const secret = "s3cret"

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func serve(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	e := echo.New()
	g := e.Group("/admin", JWTAuth(secret), RequireRole("ADMIN"))
	g.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, subject(c))
	})

	exp := time.Now().Add(time.Hour).Unix()
	admin := signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "admin", "role": "ADMIN", "exp": exp})
	guest := signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "bob", "role": "GUEST", "exp": exp})
	expired := signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "admin", "role": "ADMIN", "exp": time.Now().Add(-time.Minute).Unix()})
	forged := signed(t, jwt.SigningMethodHS256, []byte("wrong"), jwt.MapClaims{"sub": "admin", "role": "ADMIN", "exp": exp})
	hs512 := signed(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{"sub": "admin", "role": "ADMIN", "exp": exp})

	tests := []struct {
		description string
		token       string
		want        int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "abc.def.ghi", http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"wrong key", forged, http.StatusUnauthorized},
		{"unexpected algorithm", hs512, http.StatusUnauthorized},
		{"wrong role", guest, http.StatusForbidden},
		{"admin", admin, http.StatusOK},
	}
	for _, test := range tests {
		rec := serve(e, http.MethodGet, "/admin/whoami", test.token)
		assert.Equal(t, test.want, rec.Code, test.description)
	}
	assert.Equal(t, "admin", serve(e, http.MethodGet, "/admin/whoami", admin).Body.String())
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTokenBucket(t *testing.T) {
	_, rdb := newRedis(t)
	clock := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.Use(newTokenBucket(cfg, rdb, func() time.Time { return clock }))
	e.GET("/v1/buses", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/buses", "").Code)
	rec := serve(e, http.MethodGet, "/v1/buses", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, http.MethodGet, "/v1/buses", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	clock = clock.Add(1500 * time.Millisecond)
	rec = serve(e, http.MethodGet, "/v1/buses", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, strconv.Itoa(cfg.Capacity), rec.Header().Get("X-RateLimit-Limit"))
}

func TestTokenBucketFailsOpen(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	e := echo.New()
	e.Use(NewTokenBucket(cfg, rdb))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	mr.Close()
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/", "").Code)
	}
}

func TestRedisCache(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 10,
	}
	calls := 0
	e := echo.New()
	e.GET("/v1/catalog", func(c echo.Context) error {
		calls++
		c.Response().Header().Set("X-Catalog-Version", "1")
		return c.JSON(http.StatusOK, echo.Map{"buses": 4})
	}, NewRedisCache(cfg, rdb))
	e.GET("/v1/broken", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "down"})
	}, NewRedisCache(cfg, rdb))

	first := serve(e, http.MethodGet, "/v1/catalog", "")
	second := serve(e, http.MethodGet, "/v1/catalog", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "1", second.Header().Get("X-Catalog-Version"))
	assert.Equal(t, 1, calls)

	serve(e, http.MethodGet, "/v1/catalog?page=2", "")
	assert.Equal(t, 2, calls)

	serve(e, http.MethodGet, "/v1/broken", "")
	rec := serve(e, http.MethodGet, "/v1/broken", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 4, calls)
}

func TestRedisCacheSkipsOversizedBodies(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 8}
	calls := 0
	e := echo.New()
	e.GET("/big", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "this body is longer than eight bytes")
	}, NewRedisCache(cfg, rdb))

	serve(e, http.MethodGet, "/big", "")
	rec := serve(e, http.MethodGet, "/big", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestDecodePayloadRejectsShortInput(t *testing.T) {
	_, _, _, ok := decodePayload([]byte{0, 0, 0})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)

	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{}`))
	require.NoError(t, err)
	status, hdr, body, ok := decodePayload(payload)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
	assert.Equal(t, `{}`, string(body))
}
