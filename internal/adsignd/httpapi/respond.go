// Package httpapi holds the JSON conventions and middleware shared by the
// adsignd HTTP handlers
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	werrors "github.com/wrale/adsign/internal/adsignd/errors"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// WriteJSON encodes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// StatusFor maps domain sentinels to HTTP status codes
func StatusFor(err error) int {
	switch {
	case werrors.IsInvalidInput(err):
		return http.StatusBadRequest
	case werrors.IsUnauthorized(err):
		return http.StatusUnauthorized
	case werrors.IsForbidden(err):
		return http.StatusForbidden
	case werrors.IsNotFound(err):
		return http.StatusNotFound
	case werrors.IsConflict(err), werrors.IsVersionMismatch(err), werrors.IsInvalidState(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as an ErrorResponse. Internal errors are logged and
// their detail is hidden from the client.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusFor(err)
	reqID := middleware.GetReqID(r.Context())

	resp := v1alpha1.ErrorResponse{
		Code:      werrors.Code(err),
		Message:   message(err),
		RequestID: reqID,
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"error", err,
			"requestID", reqID,
			"path", r.URL.Path,
		)
		resp.Code = "INTERNAL"
		resp.Message = "an unexpected error occurred"
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="adsign"`)
	}
	WriteJSON(w, status, resp)
}

// message returns the outermost domain message
func message(err error) string {
	var domainErr *werrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// DecodeJSON reads a bounded JSON body into v and rejects unknown fields
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	const op = "httpapi.DecodeJSON"

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return werrors.Validation(op, "request body is required")
		}
		return werrors.NewError("INVALID_INPUT", fmt.Sprintf("invalid request body: %v", err), op, werrors.ErrInvalidInput)
	}
	return nil
}
