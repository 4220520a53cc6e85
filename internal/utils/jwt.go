// Package utils provides helpers for issuing admin tokens and checking
// admin passwords.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the role claim carried by admin tokens.
const RoleAdmin = "ADMIN"

// AdminSubject is the subject of every admin token; there is a single
// admin credential.
const AdminSubject = "admin"

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires"`
}

// NewAdminToken signs an HS256 token for the admin role valid for ttl
// from now.
func NewAdminToken(secret string, ttl time.Duration, now time.Time) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("empty signing secret")
	}
	now = now.UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  AdminSubject,
		"role": RoleAdmin,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
