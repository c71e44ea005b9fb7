package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/wrale/adsign/internal/adsignd/auth"
	werrors "github.com/wrale/adsign/internal/adsignd/errors"
)

// LogMiddleware logs every request once it completes
func LogMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			reqID := middleware.GetReqID(r.Context())

			defer func() {
				status := ww.Status()
				logFn := logger.Info
				if status >= 500 {
					logFn = logger.Error
				}
				logFn("http request",
					"requestId", reqID,
					"method", r.Method,
					"path", redactToken(r.URL.Path),
					"status", status,
					"duration", time.Since(startTime),
					"size", ww.BytesWritten(),
					"remoteIP", r.RemoteAddr,
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// redactToken hides connection tokens carried in the path
func redactToken(path string) string {
	const marker = "/token/"
	i := strings.Index(path, marker)
	if i < 0 {
		return path
	}
	rest := path[i+len(marker):]
	if j := strings.Index(rest, "/"); j >= 0 {
		return path[:i+len(marker)] + "REDACTED" + rest[j:]
	}
	return path[:i+len(marker)] + "REDACTED"
}

// RequestIDHeader echoes the request id in the response headers
func RequestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// Recover turns panics into 500 responses
func Recover(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic serving request",
						"panic", fmt.Sprint(rec),
						"requestId", middleware.GetReqID(r.Context()),
						"stack", string(debug.Stack()),
					)
					WriteError(w, r, logger, fmt.Errorf("panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type adminKey struct{}

// WithAdminID stores the authenticated admin in ctx
func WithAdminID(ctx context.Context, adminID string) context.Context {
	return context.WithValue(ctx, adminKey{}, adminID)
}

// AdminID returns the authenticated admin, empty outside AdminAuth
func AdminID(ctx context.Context) string {
	id, _ := ctx.Value(adminKey{}).(string)
	return id
}

// AdminAuth requires a valid admin bearer token
func AdminAuth(tokens auth.Service, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "httpapi.AdminAuth"

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				WriteError(w, r, logger, werrors.NewError("UNAUTHORIZED", "missing bearer token", op, werrors.ErrUnauthorized))
				return
			}

			adminID, err := tokens.ValidateToken(r.Context(), token)
			if err != nil {
				logger.Warn("admin token rejected",
					"error", err,
					"requestId", middleware.GetReqID(r.Context()),
				)
				WriteError(w, r, logger, werrors.NewError("UNAUTHORIZED", "invalid or expired token", op, werrors.ErrUnauthorized))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAdminID(r.Context(), adminID)))
		})
	}
}

// Health answers liveness and readiness probes
func Health(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
