// Package auth issues and validates the bearer tokens that identify admins
package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims carried by admin tokens. The subject is the admin id.
type Claims struct {
	jwt.RegisteredClaims

	// Role is informational; every admin may approve any pending request
	Role string `json:"role,omitempty"`
}

// RoleAdmin is the only role issued today
const RoleAdmin = "admin"
