// Package errors provides the error taxonomy shared by the adsign server.
// Every domain failure is an *Error wrapping one of the sentinel kinds, so
// callers branch with the Is helpers and the HTTP layer maps kinds to
// status codes.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel kinds
var (
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("resource already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrVersionMismatch = errors.New("version mismatch")
)

// Error carries a wire code and the failing operation alongside the cause
type Error struct {
	Code    string
	Message string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a code and message for op
func NewError(code string, message string, op string, err error) *Error {
	return &Error{Code: code, Message: message, Op: op, Err: err}
}

func Validation(op, message string) *Error {
	return NewError("INVALID_INPUT", message, op, ErrInvalidInput)
}

func NotFound(op, message string) *Error {
	return NewError("NOT_FOUND", message, op, ErrNotFound)
}

func Conflict(op, message string) *Error {
	return NewError("CONFLICT", message, op, ErrConflict)
}

func InvalidState(op, message string) *Error {
	return NewError("INVALID_STATE", message, op, ErrInvalidState)
}

// Code returns the outermost code in err's chain, or INTERNAL
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return "INTERNAL"
}

func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool        { return errors.Is(err, ErrConflict) }
func IsInvalidInput(err error) bool    { return errors.Is(err, ErrInvalidInput) }
func IsInvalidState(err error) bool    { return errors.Is(err, ErrInvalidState) }
func IsUnauthorized(err error) bool    { return errors.Is(err, ErrUnauthorized) }
func IsForbidden(err error) bool       { return errors.Is(err, ErrForbidden) }
func IsVersionMismatch(err error) bool { return errors.Is(err, ErrVersionMismatch) }
