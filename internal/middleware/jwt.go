// Package middleware contains the echo middleware of the reservation API:
// admin authentication, Redis rate limiting and Redis response caching.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// JWTAuth validates a Bearer HS256 token signed with secret and stores
// its subject and role claims in the echo context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	keyFunc := func(*jwt.Token) (any, error) { return []byte(secret), nil }
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			claims := jwt.MapClaims{}
			tok, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, keyFunc)
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			sub, _ := claims.GetSubject()
			role, _ := claims["role"].(string)
			c.Set(ctxUserID, sub)
			c.Set(ctxRole, role)
			return next(c)
		}
	}
}
