package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var resp v1alpha1.ErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		apiErr.Code = resp.Code
		apiErr.Message = resp.Message
		apiErr.RequestID = resp.RequestID
	}
	return apiErr
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports a 404 response
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnauthorized reports a 401 response
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsConflict reports a 409 response
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// transient reports failures worth retrying: network errors, throttling and 5xx
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	status := StatusCode(err)
	if status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

// notProcessed reports responses proving the request had no effect
func notProcessed(err error) bool {
	switch StatusCode(err) {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return false
}
