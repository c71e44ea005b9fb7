// Package ratelimit bounds how often unauthenticated device endpoints may
// be called from one client address
package ratelimit

import (
	"context"
	"time"
)

// Key types counted by the device routes
const (
	TypeRegister = "register"
	TypeDevice   = "device"
)

// LimitKey names a counter: one key type per remote address
type LimitKey struct {
	Type     string
	RemoteIP string
}

// Limit is Rate operations per fixed Period window
type Limit struct {
	Rate   int
	Period time.Duration
}

// Store keeps window counters, possibly shared between server instances
type Store interface {
	// Increment adds one to the key's counter in the current window and
	// returns the total so far
	Increment(ctx context.Context, key LimitKey, limit Limit) (int, error)
	Reset(ctx context.Context, key LimitKey) error
}

// Error is a rate limiting failure with a wire code
type Error struct {
	Code    string
	Message string
}

func (e Error) Error() string { return e.Message }

var (
	ErrLimitExceeded = Error{Code: "RATE_LIMITED", Message: "rate limit exceeded"}
	ErrStoreError    = Error{Code: "STORE_ERROR", Message: "rate limit store unavailable"}
	ErrInvalidLimit  = Error{Code: "INVALID_LIMIT", Message: "rate and period must be positive"}
	ErrInvalidKey    = Error{Code: "INVALID_KEY", Message: "rate limit key has no type"}
)
