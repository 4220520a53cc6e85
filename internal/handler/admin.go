package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/service"
	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

// AdminHandler bundles the admin credential and the operations behind it.
type AdminHandler struct {
	Svc          *service.ReservationService
	JWTSecret    string
	PasswordHash string
	TokenTTL     time.Duration
	Now          func() time.Time
}

func NewAdminHandler(svc *service.ReservationService, jwtSecret, passwordHash string, ttl time.Duration) *AdminHandler {
	return &AdminHandler{Svc: svc, JWTSecret: jwtSecret, PasswordHash: passwordHash, TokenTTL: ttl, Now: time.Now}
}

type loginReq struct {
	Password string `json:"password"`
}

// Login exchanges the admin password for a short-lived token.
func (h *AdminHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Password) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
	}
	if !utils.VerifyPassword(h.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	tok, err := utils.NewAdminToken(h.JWTSecret, h.TokenTTL, h.Now())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"access": tok})
}

// ClearAll removes every reservation.
func (h *AdminHandler) ClearAll(c echo.Context) error {
	n, err := h.Svc.ClearAll(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "all reservations cleared", "cleared": n})
}
